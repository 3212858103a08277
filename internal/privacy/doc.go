// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package privacy decides what text is sensitive and scrubs what leaves.
//
// One rule table (category -> pattern) drives both the inbound classifier and
// the outbound sanitizer, so the two never disagree about what is sensitive.
//
// # Key Types
//
//   - RuleSet: Ordered category rules, extendable from a YAML file
//   - Classifier: Labels text private/public with the matched categories
//   - Redactor: One-way placeholder substitution ([EMAIL_0], [PHONE_1])
//   - Guard: Classify, redact, classify again; keeps the worse verdict
//   - Sanitizer: Recursive, idempotent scrubbing of response data
//
// # Usage
//
//	rules := privacy.DefaultRules()
//	guard := privacy.NewGuard(rules)
//	screened := guard.Screen("email alice@example.com about the report")
//	if screened.Verdict.IsPrivate {
//	    // local backend only
//	}
//
//	clean := privacy.NewSanitizer(rules).Sanitize(response)
//
// # Security
//
// The classifier is conservative: a keyword mention is enough to keep a
// prompt local. False positives cost a remote call; false negatives leak
// data. Placeholder numbering is scoped to one call and never reversed.
package privacy
