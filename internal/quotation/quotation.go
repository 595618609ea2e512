// Package quotation renders one-page PDF quotations from submitted form data.
package quotation

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("quotation: invalid input")

// Party is the company issuing the quotation or the customer receiving it.
type Party struct {
	Name    string
	Address string
	Phone   string
	TaxID   string
}

// Item is one priced line.
type Item struct {
	Description string
	Quantity    float64
	UnitPrice   float64
}

// Amount is quantity times unit price rounded to satang.
func (i Item) Amount() float64 {
	return round2(i.Quantity * i.UnitPrice)
}

// Quotation is the document to render.
type Quotation struct {
	Number     string
	Date       time.Time
	Company    Party
	Customer   Party
	Items      []Item
	VATPercent float64
	Notes      string
}

// Totals holds the computed money figures.
type Totals struct {
	Subtotal float64
	VAT      float64
	Total    float64
}

func (q Quotation) Totals() Totals {
	var sub float64
	for _, it := range q.Items {
		sub += it.Amount()
	}
	sub = round2(sub)
	vat := round2(sub * q.VATPercent / 100)
	return Totals{Subtotal: sub, VAT: vat, Total: round2(sub + vat)}
}

// Validate checks the fields a printable quotation needs.
func (q Quotation) Validate() error {
	if strings.TrimSpace(q.Company.Name) == "" {
		return fmt.Errorf("%w: company name required", ErrInvalid)
	}
	if strings.TrimSpace(q.Customer.Name) == "" {
		return fmt.Errorf("%w: customer name required", ErrInvalid)
	}
	if len(q.Items) == 0 {
		return fmt.Errorf("%w: at least one item required", ErrInvalid)
	}
	if limit := MaxItems(); len(q.Items) > limit {
		return fmt.Errorf("%w: at most %d items fit on one page", ErrInvalid, limit)
	}
	for i, it := range q.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrInvalid, i+1)
		}
		if it.UnitPrice < 0 {
			return fmt.Errorf("%w: item %d unit price must not be negative", ErrInvalid, i+1)
		}
	}
	if q.VATPercent < 0 {
		return fmt.Errorf("%w: vat percent must not be negative", ErrInvalid)
	}
	return nil
}

// FromForm builds a quotation from submitted form values. Line items come
// from the parallel item_description, item_quantity and item_unit_price
// fields; rows with a blank description are ignored. defaultVAT applies when
// vat_percent is absent.
func FromForm(form url.Values, defaultVAT float64, now time.Time) (Quotation, error) {
	q := Quotation{
		Number: strings.TrimSpace(form.Get("quotation_no")),
		Date:   now,
		Company: Party{
			Name:    strings.TrimSpace(form.Get("company_name")),
			Address: strings.TrimSpace(form.Get("company_address")),
			Phone:   strings.TrimSpace(form.Get("company_phone")),
			TaxID:   strings.TrimSpace(form.Get("company_tax_id")),
		},
		Customer: Party{
			Name:    strings.TrimSpace(form.Get("customer_name")),
			Address: strings.TrimSpace(form.Get("customer_address")),
			Phone:   strings.TrimSpace(form.Get("customer_phone")),
			TaxID:   strings.TrimSpace(form.Get("customer_tax_id")),
		},
		VATPercent: defaultVAT,
		Notes:      strings.TrimSpace(form.Get("notes")),
	}
	if q.Number == "" {
		q.Number = "Q-" + now.Format("20060102-150405")
	}
	if raw := strings.TrimSpace(form.Get("date")); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return Quotation{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
		}
		q.Date = d
	}
	if raw := strings.TrimSpace(form.Get("vat_percent")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Quotation{}, fmt.Errorf("%w: vat_percent: %v", ErrInvalid, err)
		}
		q.VATPercent = v
	}

	descs := form["item_description"]
	qtys := form["item_quantity"]
	prices := form["item_unit_price"]
	for i, desc := range descs {
		desc = strings.TrimSpace(desc)
		if desc == "" {
			continue
		}
		qty, err := parseNumber(at(qtys, i), 1)
		if err != nil {
			return Quotation{}, fmt.Errorf("%w: item %d quantity: %v", ErrInvalid, i+1, err)
		}
		price, err := parseNumber(at(prices, i), 0)
		if err != nil {
			return Quotation{}, fmt.Errorf("%w: item %d unit price: %v", ErrInvalid, i+1, err)
		}
		q.Items = append(q.Items, Item{Description: desc, Quantity: qty, UnitPrice: price})
	}

	if err := q.Validate(); err != nil {
		return Quotation{}, err
	}
	return q, nil
}

func at(values []string, i int) string {
	if i < len(values) {
		return strings.TrimSpace(values[i])
	}
	return ""
}

func parseNumber(raw string, fallback float64) (float64, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatMoney renders v with two decimals and thousands separators.
func FormatMoney(v float64) string {
	s := strconv.FormatFloat(math.Abs(round2(v)), 'f', 2, 64)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var b strings.Builder
	if v < 0 && round2(v) != 0 {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
