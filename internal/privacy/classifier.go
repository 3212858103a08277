// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package privacy

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// VERDICT
// =============================================================================

// Verdict is the outcome of classifying one piece of text.
type Verdict struct {
	IsPrivate  bool       `json:"is_private"`
	Categories []Category `json:"categories,omitempty"`
}

// Public is the verdict for text with no sensitive matches.
var Public = Verdict{}

// Has reports whether the verdict recorded the category.
func (v Verdict) Has(c Category) bool {
	for _, got := range v.Categories {
		if got == c {
			return true
		}
	}
	return false
}

// Worse merges two verdicts. The result is private if either input is.
func (v Verdict) Worse(other Verdict) Verdict {
	seen := make(map[Category]bool, len(v.Categories)+len(other.Categories))
	for _, c := range v.Categories {
		seen[c] = true
	}
	for _, c := range other.Categories {
		seen[c] = true
	}
	return Verdict{
		IsPrivate:  v.IsPrivate || other.IsPrivate,
		Categories: sortedCategories(seen),
	}
}

// String renders the verdict for logs, e.g. "private[email,token]".
func (v Verdict) String() string {
	if !v.IsPrivate {
		return "public"
	}
	names := make([]string, len(v.Categories))
	for i, c := range v.Categories {
		names[i] = string(c)
	}
	return "private[" + strings.Join(names, ",") + "]"
}

func sortedCategories(set map[Category]bool) []Category {
	if len(set) == 0 {
		return nil
	}
	out := make([]Category, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classifier labels text as private or public. It is safe for concurrent use;
// it holds only the immutable rule table.
type Classifier struct {
	rules RuleSet
}

// NewClassifier creates a classifier over the classifying rules in rs.
func NewClassifier(rs RuleSet) *Classifier {
	return &Classifier{rules: rs.classifying()}
}

// Classify runs every rule over the raw and the normalized text. Any match
// makes the verdict private.
func (c *Classifier) Classify(text string) Verdict {
	if strings.TrimSpace(text) == "" {
		return Public
	}

	normalized := normalizeForDetection(text)
	seen := make(map[Category]bool)
	for _, rule := range c.rules {
		if seen[rule.Category] {
			continue
		}
		if rule.Pattern.MatchString(text) || (normalized != text && rule.Pattern.MatchString(normalized)) {
			seen[rule.Category] = true
		}
	}

	if len(seen) == 0 {
		return Public
	}
	return Verdict{IsPrivate: true, Categories: sortedCategories(seen)}
}

// zeroWidth matches invisible code points used to split keywords.
var zeroWidth = runes.Predicate(func(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff', '\u00ad':
		return true
	}
	return false
})

// normalizeForDetection folds compatibility forms (fullwidth digits,
// ligatures), strips combining marks and removes zero-width characters.
func normalizeForDetection(text string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(zeroWidth),
		norm.NFKC,
	)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}
