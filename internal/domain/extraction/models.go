// Package extraction turns bank notification emails into structured charges.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"chreosis/internal/domain/ledger"
)

// Status is the verdict of an extraction.
type Status string

const (
	Approved Status = "APROBADA"
	Rejected Status = "RECHAZADA"
)

// Unknown fills fields a rejected extraction could not determine.
const Unknown = "DESCONOCIDO"

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006", time.RFC3339}

// Extraction is a charge read from an email.
type Extraction struct {
	Amount   decimal.Decimal
	Date     time.Time
	Category string
	Currency string
	Place    string
	Status   Status
	Error    string
}

// Approved reports whether the extraction can be booked.
func (e Extraction) Approved() bool {
	return e.Status == Approved
}

// Extractor reads a charge from an email body. It never fails: problems are
// reported as a Rejected extraction with Error set.
type Extractor interface {
	Extract(ctx context.Context, body string) Extraction
}

// RejectedFrom builds the fallback returned when extraction fails.
func RejectedFrom(err error, now time.Time) Extraction {
	return Extraction{
		Amount:   decimal.Zero,
		Date:     now,
		Category: Unknown,
		Currency: Unknown,
		Place:    "ERROR",
		Status:   Rejected,
		Error:    err.Error(),
	}
}

// payload is the JSON object the model is asked to return.
type payload struct {
	Monto     json.RawMessage `json:"Monto"`
	Fecha     string          `json:"Fecha"`
	Categoria string          `json:"Categoria"`
	Moneda    string          `json:"Moneda"`
	Lugar     string          `json:"Lugar"`
	Status    string          `json:"Status"`
}

// Parse decodes a model answer. An approved answer must carry a positive amount.
// Unparseable dates fall back to now.
func Parse(raw []byte, now time.Time) (Extraction, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Extraction{}, fmt.Errorf("failed to decode extraction: %w", err)
	}

	e := Extraction{
		Date:     parseDate(p.Fecha, now),
		Category: strings.TrimSpace(p.Categoria),
		Currency: strings.ToUpper(strings.TrimSpace(p.Moneda)),
		Place:    strings.TrimSpace(p.Lugar),
		Status:   Status(strings.ToUpper(strings.TrimSpace(p.Status))),
	}

	if e.Status != Approved && e.Status != Rejected {
		return Extraction{}, fmt.Errorf("unknown extraction status %q", p.Status)
	}

	if len(p.Monto) > 0 && string(p.Monto) != "null" {
		if err := e.Amount.UnmarshalJSON(p.Monto); err != nil {
			return Extraction{}, fmt.Errorf("invalid amount %s: %w", p.Monto, err)
		}
	}

	if e.Approved() {
		amount, err := ledger.NormalizeAmount(e.Amount)
		if err != nil {
			return Extraction{}, err
		}
		e.Amount = amount
		if e.Category == "" {
			e.Category = Unknown
		}
	}

	return e, nil
}

func parseDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return now
}
