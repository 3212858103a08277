// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// denyKeys are attribute key fragments that may carry user content.
var denyKeys = []string{
	"prompt",
	"content",
	"question",
	"body",
	"payload",
	"authorization",
	"api_key",
	"token",
	"password",
	"email",
	"phone",
	"card",
}

const (
	maxAttrString = 256
	maxAttrSlice  = 32
)

// SafeAttributes filters out unsafe keys and oversized values and returns
// OpenTelemetry attributes. Unsupported value types are dropped.
func SafeAttributes(values map[string]any) []attribute.KeyValue {
	if len(values) == 0 {
		return nil
	}
	var attrs []attribute.KeyValue
	for k, v := range values {
		if deniedKey(k) {
			continue
		}
		switch val := v.(type) {
		case string:
			if len(val) > maxAttrString {
				continue
			}
			attrs = append(attrs, attribute.String(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case []string:
			if len(val) > maxAttrSlice {
				val = val[:maxAttrSlice]
			}
			attrs = append(attrs, attribute.StringSlice(k, val))
		case fmt.Stringer:
			if s := val.String(); len(s) <= maxAttrString {
				attrs = append(attrs, attribute.String(k, s))
			}
		}
	}
	return attrs
}

func deniedKey(k string) bool {
	lk := strings.ToLower(k)
	for _, bad := range denyKeys {
		if strings.Contains(lk, bad) {
			return true
		}
	}
	return false
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
