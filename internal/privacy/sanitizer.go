// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package privacy

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// =============================================================================
// SANITIZER
// =============================================================================

// maxScrubPasses bounds the fixpoint loop in scrub. Markers never match a
// rule, so real inputs settle in one or two passes.
const maxScrubPasses = 8

// maxDocumentNameLength is the longest string treated as a document name
// rather than document content.
const maxDocumentNameLength = 200

// paymentKeys hold order identity and payment details.
var paymentKeys = map[string]bool{
	"customer":            true,
	"address":             true,
	"payment":             true,
	"card":                true,
	"card_number":         true,
	"card_cvv":            true,
	"card_expiration":     true,
	"billing_postal_code": true,
}

// documentKeys hold document bodies.
var documentKeys = map[string]bool{
	"data":          true,
	"raw_text":      true,
	"document_text": true,
	"context":       true,
}

// Sanitizer scrubs structured data before it leaves the process.
type Sanitizer struct {
	rules RuleSet
}

// NewSanitizer creates a sanitizer over the sanitizing rules in rs.
func NewSanitizer(rs RuleSet) *Sanitizer {
	return &Sanitizer{rules: rs.sanitizing()}
}

// Sanitize returns a scrubbed copy of value. Maps and slices are rebuilt,
// never mutated. Types outside the JSON data model are converted through
// their JSON encoding first.
func (s *Sanitizer) Sanitize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return s.scrub(v)
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64, json.Number:
		return v
	case error:
		return s.scrub(v.Error())
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.Sanitize(item)
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = s.scrub(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = s.sanitizeField(key, item)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = s.sanitizeField(key, item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.Sanitize(item)
		}
		return out
	default:
		generic, err := toGeneric(v)
		if err != nil {
			return s.scrub(fmt.Sprint(v))
		}
		return s.Sanitize(generic)
	}
}

// SanitizeMap is Sanitize for the common payload shape.
func (s *Sanitizer) SanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := s.Sanitize(m).(map[string]any)
	return out
}

// SanitizeString scrubs a single string.
func (s *Sanitizer) SanitizeString(text string) string {
	return s.scrub(text)
}

// sanitizeField applies key-based redaction before recursing.
func (s *Sanitizer) sanitizeField(key string, value any) any {
	k := strings.ToLower(key)
	switch {
	case paymentKeys[k]:
		if value == nil {
			return nil
		}
		return CategoryPayment.Marker()
	case k == "documents":
		return s.documentNames(value)
	case documentKeys[k]:
		if value == nil {
			return nil
		}
		if str, ok := value.(string); ok && str == "" {
			return ""
		}
		return CategoryDocument.Marker()
	default:
		return s.Sanitize(value)
	}
}

// documentNames reduces a documents list to display names.
func (s *Sanitizer) documentNames(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		out := make([]any, len(v))
		for i, doc := range v {
			out[i] = s.documentName(doc, i)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, doc := range v {
			out[i] = s.documentName(doc, i)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, doc := range v {
			out[i] = s.documentName(doc, i)
		}
		return out
	default:
		generic, err := toGeneric(v)
		if err == nil {
			if list, ok := generic.([]any); ok {
				return s.documentNames(list)
			}
		}
		return CategoryDocument.Marker()
	}
}

func (s *Sanitizer) documentName(doc any, index int) any {
	switch d := doc.(type) {
	case string:
		if len(d) > maxDocumentNameLength || strings.ContainsAny(d, "\r\n") {
			return CategoryDocument.Marker()
		}
		return s.scrub(filepath.Base(d))
	case map[string]any:
		for _, key := range []string{"name", "path"} {
			if name, ok := d[key].(string); ok && name != "" {
				return s.documentName(name, index)
			}
		}
		return fmt.Sprintf("Document %d", index+1)
	default:
		return CategoryDocument.Marker()
	}
}

// scrub replaces every sanitizing match with its category marker, repeating
// until no rule matches.
func (s *Sanitizer) scrub(text string) string {
	for pass := 0; pass < maxScrubPasses; pass++ {
		next := text
		for _, rule := range s.rules {
			next = rule.Pattern.ReplaceAllLiteralString(next, rule.Category.Marker())
		}
		if next == text {
			return text
		}
		text = next
	}
	return text
}

// toGeneric converts a Go value into the JSON data model.
func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
