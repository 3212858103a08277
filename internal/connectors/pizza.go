// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectors

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/jeranaias/rigrun-assist/internal/model"
	"github.com/jeranaias/rigrun-assist/internal/storage"
)

// Pizza order messages.
const (
	MsgLiveModeOff    = "Live pizza ordering is switched off. Set PIZZA_LIVE_MODE=true when you are ready."
	MsgPaymentMissing = "Payment info missing. Add card details or set environment variables to place the order."
	MsgLiveRecorded   = "Order validated and recorded. Submit it to the store to complete payment."
)

var (
	customerFields = []string{"email", "first_name", "last_name", "phone"}
	addressFields  = []string{"city", "postal_code", "region", "street"}
	paymentFields  = []struct{ key, env string }{
		{"card_number", "PIZZA_CARD_NUMBER"},
		{"card_expiration", "PIZZA_CARD_EXPIRATION"},
		{"card_cvv", "PIZZA_CARD_CVV"},
		{"billing_postal_code", "PIZZA_BILLING_POSTAL_CODE"},
	}
)

// DefaultMenu prices a few common menu codes in USD.
func DefaultMenu() map[string]float64 {
	return map[string]float64{
		"10SCREEN": 9.99,
		"12SCREEN": 11.99,
		"14SCREEN": 13.99,
		"P12IPAZA": 12.99,
		"P14IRECZ": 14.99,
		"W08PHOTW": 8.99,
		"B8PCGT":   6.99,
		"20BCOKE":  2.49,
		"2LCOKE":   3.49,
	}
}

// PizzaOrderer is a FoodOrderer that validates orders and records them as
// previews. Customer and payment details are never stored.
type PizzaOrderer struct {
	store  *storage.Store
	live   bool
	menu   map[string]float64
	getenv func(string) string
}

// NewPizzaOrderer creates an orderer. live enables the live-mode flow.
func NewPizzaOrderer(store *storage.Store, live bool) *PizzaOrderer {
	return &PizzaOrderer{store: store, live: live, menu: DefaultMenu(), getenv: os.Getenv}
}

// ParseLiveMode reads a PIZZA_LIVE_MODE style flag.
func ParseLiveMode(raw string) bool {
	v := strings.ToLower(strings.Trim(strings.TrimSpace(raw), `"'`))
	switch v {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Live reports whether live mode is on.
func (p *PizzaOrderer) Live() bool {
	return p.live
}

// Validate checks the order payload and returns a *MissingFieldError
// describing the first problem.
func (p *PizzaOrderer) Validate(payload model.Payload) error {
	for _, key := range []string{"customer", "address", "items"} {
		if _, ok := payload[key]; !ok {
			return missingOrderDetails(fmt.Sprintf("Missing %s details for the order.", key))
		}
	}
	if missing := missingKeys(payload.Map("customer"), customerFields); len(missing) > 0 {
		return missingOrderDetails(fmt.Sprintf("Customer details missing: %s.", strings.Join(missing, ", ")))
	}
	if missing := missingKeys(payload.Map("address"), addressFields); len(missing) > 0 {
		return missingOrderDetails(fmt.Sprintf("Address details missing: %s.", strings.Join(missing, ", ")))
	}
	if len(payload.List("items")) == 0 {
		return missingOrderDetails("Add at least one Domino's menu code to items.")
	}
	return nil
}

// Order validates payload and records it.
func (p *PizzaOrderer) Order(ctx context.Context, payload model.Payload) (*OrderReceipt, error) {
	if err := p.Validate(payload); err != nil {
		return nil, err
	}
	items, err := normalizeItems(payload.List("items"))
	if err != nil {
		return nil, err
	}
	if p.store == nil {
		return nil, Failure("pizza", "order storage is not configured", nil)
	}

	status, message := "preview", MsgLiveModeOff
	if p.live {
		message = MsgPaymentMissing
		if p.hasPayment(payload.Map("payment")) {
			status, message = "recorded", MsgLiveRecorded
		}
	}

	rec := &storage.OrderRecord{
		Status:   status,
		Items:    items,
		Total:    p.total(items),
		Currency: "USD",
	}
	if err := p.store.SaveOrder(ctx, rec); err != nil {
		return nil, Failure("pizza", "could not record the order", err)
	}

	return &OrderReceipt{
		ID:       rec.ID,
		Status:   rec.Status,
		Items:    rec.Items,
		Total:    rec.Total,
		Currency: rec.Currency,
		Message:  message,
	}, nil
}

// total prices items from the menu. It is nil when any code is unknown.
func (p *PizzaOrderer) total(items []storage.OrderItem) *float64 {
	var sum float64
	for _, it := range items {
		price, ok := p.menu[it.Code]
		if !ok {
			return nil
		}
		sum += price * float64(it.Quantity)
	}
	sum = math.Round(sum*100) / 100
	return &sum
}

func (p *PizzaOrderer) hasPayment(payment map[string]any) bool {
	given := model.Payload(payment)
	for _, f := range paymentFields {
		if given.String(f.key) == "" && strings.TrimSpace(p.getenv(f.env)) == "" {
			return false
		}
	}
	return true
}

// normalizeItems keeps the first token of each code and clamps quantities
// to at least one. Bare strings are codes with quantity one.
func normalizeItems(raw []any) ([]storage.OrderItem, error) {
	items := make([]storage.OrderItem, 0, len(raw))
	for _, entry := range raw {
		var code string
		qty := 1
		switch v := entry.(type) {
		case string:
			code = v
		case map[string]any:
			p := model.Payload(v)
			code = p.String("code")
			qty = p.Int("quantity", 1)
		}
		fields := strings.Fields(code)
		if len(fields) == 0 {
			return nil, missingOrderDetails("Each item needs a Domino's menu or coupon code.")
		}
		if qty < 1 {
			qty = 1
		}
		items = append(items, storage.OrderItem{Code: strings.ToUpper(fields[0]), Quantity: qty})
	}
	return items, nil
}

func missingKeys(m map[string]any, required []string) []string {
	var missing []string
	for _, key := range required {
		if _, ok := m[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

func missingOrderDetails(prompt string) *MissingFieldError {
	return Missing("order_pizza", "order_details", prompt)
}
