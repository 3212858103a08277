// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package privacy

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// CATEGORIES
// =============================================================================

// Category identifies a kind of sensitive content.
type Category string

const (
	CategoryPassword      Category = "password"
	CategoryToken         Category = "token"
	CategoryEmail         Category = "email"
	CategoryCardNumber    Category = "card_number"
	CategorySSN           Category = "ssn"
	CategoryDateOfBirth   Category = "date_of_birth"
	CategoryPhone         Category = "phone"
	CategoryAccountNumber Category = "account_number"
	CategoryMarker        Category = "private_marker"

	// Output-only categories. They are detected by structure (map keys),
	// not by text patterns.
	CategoryDocument Category = "document_content"
	CategoryPayment  Category = "payment_block"
)

// markers is the fixed redaction marker per category. None of these strings
// can be matched by any default rule.
var markers = map[Category]string{
	CategoryPassword:      "[REDACTED-CREDENTIAL]",
	CategoryToken:         "[REDACTED-CREDENTIAL]",
	CategoryEmail:         "[REDACTED-EMAIL]",
	CategoryCardNumber:    "[REDACTED-CARD]",
	CategorySSN:           "[REDACTED-SSN]",
	CategoryDateOfBirth:   "[REDACTED-DOB]",
	CategoryPhone:         "[REDACTED-PHONE]",
	CategoryAccountNumber: "[REDACTED-ACCOUNT]",
	CategoryMarker:        "[REDACTED]",
	CategoryDocument:      "[REDACTED-DOCUMENT]",
	CategoryPayment:       "[REDACTED-PAYMENT]",
}

// Marker returns the output redaction marker for a category.
func (c Category) Marker() string {
	if m, ok := markers[c]; ok {
		return m
	}
	return "[REDACTED]"
}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// =============================================================================
// RULE TABLE
// =============================================================================

// Rule maps a category to a text matcher.
//
// Classify rules feed the PrivacyClassifier; Sanitize rules are replaced with
// the category marker on the way out. A rule may be both.
type Rule struct {
	Category Category
	Pattern  *regexp.Regexp
	Classify bool
	Sanitize bool
}

// RuleSet is an ordered list of rules. Order matters for sanitization:
// credential assignments are consumed before the values inside them.
type RuleSet []Rule

func classifyRule(c Category, expr string) Rule {
	return Rule{Category: c, Pattern: regexp.MustCompile(expr), Classify: true}
}

func sanitizeRule(c Category, expr string) Rule {
	return Rule{Category: c, Pattern: regexp.MustCompile(expr), Sanitize: true}
}

func bothRule(c Category, expr string) Rule {
	return Rule{Category: c, Pattern: regexp.MustCompile(expr), Classify: true, Sanitize: true}
}

// EmailPattern matches an email address. It is the one definition shared by
// the rule table and any caller that needs to find addresses in text.
var EmailPattern = regexp.MustCompile(emailExpr)

const (
	emailExpr = `(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`
	cardExpr  = `(?:\d[ -]?){13,16}`
	ssnExpr   = `\b\d{3}-\d{2}-\d{4}\b`
)

// DefaultRules returns the built-in rule table.
func DefaultRules() RuleSet {
	return RuleSet{
		// Credential assignments ("password: hunter2", "api_key=...").
		bothRule(CategoryPassword, `(?i)\b(?:password|passwd|pwd|passcode|pin)\b\s*(?:is|[:=])\s*[^\s,;]+`),
		bothRule(CategoryToken, `(?i)\b(?:secret|token|api[_ -]?key|access[_ -]?key|client[_ -]?secret)\b\s*(?:is|[:=])\s*[^\s,;]+`),
		bothRule(CategoryToken, `(?i)\bbearer\s+[A-Za-z0-9._~+/=-]{8,}`),
		bothRule(CategoryToken, `\b(?:sk|pk|rk|ghp|gho|xox[abpr])[-_][A-Za-z0-9_-]{16,}\b`),

		// Structured identifiers.
		bothRule(CategoryEmail, emailExpr),
		bothRule(CategorySSN, ssnExpr),
		bothRule(CategoryCardNumber, `\b(?:\d[ -]?){12,15}\d\b`),
		classifyRule(CategoryCardNumber, cardExpr),
		bothRule(CategoryAccountNumber, `(?i)\b(?:account|acct|routing|iban)(?:\s*(?:number|no\.?|#))?\s*[:=#]?\s*\d{6,17}\b`),
		bothRule(CategoryDateOfBirth, `(?i)\b(?:dob|date of birth|birth ?date|born(?: on)?)\b\s*[:=]?\s*\d{1,4}[/.-]\d{1,2}[/.-]\d{1,4}`),
		sanitizeRule(CategoryPhone, `(?:\+\d{1,2}[\s.-]?)?\(?\b\d{3}\)?[\s.-]?\d{3}[\s.-]\d{4}\b`),

		// Keywords. Conservative: mentioning the topic is enough to stay local.
		classifyRule(CategoryPassword, `(?i)\bpassword\b`),
		classifyRule(CategoryToken, `(?i)\b(?:secret|token|auth)\b`),
		classifyRule(CategorySSN, `(?i)\bssn\b|social security`),
		classifyRule(CategoryCardNumber, `(?i)\bcredit card\b`),
		classifyRule(CategoryAccountNumber, `(?i)\b(?:account|routing|bank)\b`),
		classifyRule(CategoryDateOfBirth, `(?i)\bdob\b|\bbirth(?:date)?\b`),
		classifyRule(CategoryPhone, `(?i)\bphone\b`),
		classifyRule(CategoryMarker, `(?i)\b(?:private|confidential|personal)\b`),
	}
}

// classifying returns the rules used by the classifier.
func (rs RuleSet) classifying() RuleSet {
	out := make(RuleSet, 0, len(rs))
	for _, r := range rs {
		if r.Classify {
			out = append(out, r)
		}
	}
	return out
}

// sanitizing returns the rules used by the sanitizer.
func (rs RuleSet) sanitizing() RuleSet {
	out := make(RuleSet, 0, len(rs))
	for _, r := range rs {
		if r.Sanitize {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// RULE FILES
// =============================================================================

// ruleFile is the YAML layout for site-specific rules:
//
//	rules:
//	  - category: token
//	    pattern: '\bACME-[0-9]{6}\b'
//	    sanitize: true
type ruleFile struct {
	Rules []struct {
		Category string `yaml:"category"`
		Pattern  string `yaml:"pattern"`
		Classify *bool  `yaml:"classify"`
		Sanitize bool   `yaml:"sanitize"`
	} `yaml:"rules"`
}

// knownCategories lists the categories a rule file may reference.
var knownCategories = map[Category]bool{
	CategoryPassword:      true,
	CategoryToken:         true,
	CategoryEmail:         true,
	CategoryCardNumber:    true,
	CategorySSN:           true,
	CategoryDateOfBirth:   true,
	CategoryPhone:         true,
	CategoryAccountNumber: true,
	CategoryMarker:        true,
}

// ParseRules decodes extra rules from YAML. Rules classify unless
// classify is explicitly false.
func ParseRules(data []byte) (RuleSet, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	rules := make(RuleSet, 0, len(file.Rules))
	for i, entry := range file.Rules {
		cat := Category(strings.ToLower(strings.TrimSpace(entry.Category)))
		if !knownCategories[cat] {
			return nil, fmt.Errorf("rule %d: unknown category %q", i, entry.Category)
		}
		re, err := regexp.Compile(entry.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if entry.Sanitize {
			for _, marker := range markers {
				if re.MatchString(marker) {
					return nil, fmt.Errorf("rule %d: pattern matches redaction marker %s", i, marker)
				}
			}
		}
		classify := true
		if entry.Classify != nil {
			classify = *entry.Classify
		}
		rules = append(rules, Rule{
			Category: cat,
			Pattern:  re,
			Classify: classify,
			Sanitize: entry.Sanitize,
		})
	}
	return rules, nil
}

// LoadRules returns the default rules extended with the rules in path.
// An empty path yields the defaults.
func LoadRules(path string) (RuleSet, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	extra, err := ParseRules(data)
	if err != nil {
		return nil, err
	}
	return append(rules, extra...), nil
}
