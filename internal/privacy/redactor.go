// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package privacy

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// REDACTOR
// =============================================================================

// placeholderRule is an identifiable fragment type replaced before a prompt
// leaves the machine.
type placeholderRule struct {
	label   string
	pattern *regexp.Regexp
}

// placeholderRules run in order. Cards are taken before phones so a card
// number is not labelled as a phone.
var placeholderRules = []placeholderRule{
	{label: "EMAIL", pattern: regexp.MustCompile(emailExpr)},
	{label: "CARD", pattern: regexp.MustCompile(cardExpr)},
	{label: "PHONE", pattern: regexp.MustCompile(`\+?\d[\d\-\s]{7,}\d`)},
}

// RedactionMap counts placeholders issued per label during one call.
// It only numbers placeholders; it never holds the original values.
type RedactionMap map[string]int

// Total returns the number of distinct values replaced.
func (m RedactionMap) Total() int {
	n := 0
	for _, c := range m {
		n += c
	}
	return n
}

// Redactor replaces identifiable fragments with placeholders such as
// [EMAIL_0]. The transform is one-way.
type Redactor struct {
	rules []placeholderRule
}

// NewRedactor creates a redactor with the built-in fragment rules.
func NewRedactor() *Redactor {
	return &Redactor{rules: placeholderRules}
}

// Placeholderize replaces every identifiable fragment in text. Identical
// values share a placeholder; distinct values get distinct ones. Numbering
// starts at zero on every call.
func (r *Redactor) Placeholderize(text string) (string, RedactionMap) {
	counts := make(RedactionMap)
	for _, rule := range r.rules {
		assigned := make(map[string]string)
		text = rule.pattern.ReplaceAllStringFunc(text, func(match string) string {
			value := strings.TrimRight(match, " -")
			suffix := match[len(value):]
			placeholder, ok := assigned[value]
			if !ok {
				placeholder = fmt.Sprintf("[%s_%d]", rule.label, counts[rule.label])
				counts[rule.label]++
				assigned[value] = placeholder
			}
			return placeholder + suffix
		})
	}
	return text, counts
}

// =============================================================================
// GUARD
// =============================================================================

// Screened is a prompt after privacy screening.
type Screened struct {
	// Text is what may be shown to the selected backend: the raw prompt
	// when private, the placeholder version otherwise.
	Text       string
	Verdict    Verdict
	Redacted   bool
	Redactions RedactionMap
}

// Guard combines the classifier and redactor into the two-pass screening
// applied to every prompt.
type Guard struct {
	classifier *Classifier
	redactor   *Redactor
}

// NewGuard creates a guard over the given rule table.
func NewGuard(rs RuleSet) *Guard {
	return &Guard{
		classifier: NewClassifier(rs),
		redactor:   NewRedactor(),
	}
}

// Classifier returns the guard's classifier.
func (g *Guard) Classifier() *Classifier {
	return g.classifier
}

// Screen classifies the raw prompt. Private prompts are returned untouched
// (they only go to the local backend). Public prompts are redacted and
// classified again; the result carries the worse of both verdicts.
func (g *Guard) Screen(prompt string) Screened {
	raw := g.classifier.Classify(prompt)
	if raw.IsPrivate {
		return Screened{Text: prompt, Verdict: raw}
	}

	redacted, counts := g.redactor.Placeholderize(prompt)
	second := g.classifier.Classify(redacted)
	return Screened{
		Text:       redacted,
		Verdict:    raw.Worse(second),
		Redacted:   counts.Total() > 0,
		Redactions: counts,
	}
}
