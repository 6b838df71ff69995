// Package ledger records print orders and enforces their status lifecycle.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/local/pisoprint/internal/paper"
)

var (
	ErrInvalidOrder      = errors.New("invalid order")
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConflict means the order changed between read and write.
	ErrConflict = errors.New("order was modified concurrently")
)

// ValidationError names the offending field of a rejected order.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidOrder }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type Status string

const (
	Pending   Status = "pending"
	Printing  Status = "printing"
	Completed Status = "completed"
	Cancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case Pending, Printing, Completed, Cancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool { return s == Completed || s == Cancelled }

// CanTransition reports whether an order in status from may move to to.
// Staying in the same non-terminal status is allowed so amount-only updates
// pass through.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return !from.Terminal()
	}
	switch from {
	case Pending:
		return to == Printing || to == Cancelled
	case Printing:
		return to == Completed || to == Cancelled
	}
	return false
}

const maxFilePathLen = 200

var pagesPattern = regexp.MustCompile(`^[0-9,\-\s]+$`)

type Order struct {
	ID        int64           `json:"id"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Color     string          `json:"color"`
	Pages     string          `json:"pages"`
	Copies    int             `json:"copies"`
	PaperSize paper.Size      `json:"paperSize"`
	FilePath  string          `json:"filePath"`
	Status    Status          `json:"status"`
}

// Scalar holds a JSON number or string as text. Decoding never fails, so a
// malformed value reaches Normalize instead of rejecting the whole payload.
type Scalar string

func (v *Scalar) UnmarshalJSON(b []byte) error {
	var s string
	switch {
	case string(b) == "null":
		*v = ""
	case json.Unmarshal(b, &s) == nil:
		*v = Scalar(s)
	default:
		*v = Scalar(b)
	}
	return nil
}

func (v Scalar) String() string { return strings.TrimSpace(string(v)) }

// RawOrder is the create payload as the kiosk UI sends it. Amount and
// Copies arrive either as numbers or as numeric strings.
type RawOrder struct {
	Date      string `json:"Date"`
	Amount    Scalar `json:"Amount"`
	Color     string `json:"Color"`
	Pages     string `json:"Pages"`
	Copies    Scalar `json:"Copies"`
	PaperSize string `json:"Paper_Size"`
	FilePath  string `json:"File_Path"`
	Status    string `json:"Status"`
}

// Normalize validates r and turns it into an Order. A negative or unparsable
// amount becomes zero and an unknown status becomes pending; every other
// invalid field is a ValidationError.
func (r RawOrder) Normalize() (Order, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return Order{}, err
	}

	amount := decimal.Zero
	if a, err := decimal.NewFromString(r.Amount.String()); err == nil && !a.IsNegative() {
		amount = a
	}

	color := strings.ToLower(strings.TrimSpace(r.Color))
	if color != "bw" && color != "color" {
		return Order{}, invalid("Color", "must be bw or color, got %q", r.Color)
	}

	pages := strings.TrimSpace(r.Pages)
	if !pagesPattern.MatchString(pages) {
		return Order{}, invalid("Pages", "must contain only digits, commas, hyphens and spaces")
	}

	copies, err := strconv.Atoi(r.Copies.String())
	if err != nil || copies < 1 {
		return Order{}, invalid("Copies", "must be a positive integer, got %q", r.Copies.String())
	}

	size, err := paper.Parse(strings.ToLower(strings.TrimSpace(r.PaperSize)))
	if err != nil {
		return Order{}, invalid("Paper_Size", "must be letter or legal, got %q", r.PaperSize)
	}

	path := strings.TrimSpace(r.FilePath)
	if path == "" {
		return Order{}, invalid("File_Path", "required")
	}
	if len(path) > maxFilePathLen {
		return Order{}, invalid("File_Path", "longer than %d characters", maxFilePathLen)
	}

	status := Status(strings.ToLower(strings.TrimSpace(r.Status)))
	if !status.Valid() {
		status = Pending
	}

	return Order{
		Date:      date,
		Amount:    amount,
		Color:     color,
		Pages:     pages,
		Copies:    copies,
		PaperSize: size,
		FilePath:  path,
		Status:    status,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalid("Date", "must be an ISO-8601 date, got %q", s)
}

// RawUpdate is the update payload. Only amount and status may change.
type RawUpdate struct {
	ID     Scalar  `json:"id"`
	Amount *Scalar `json:"Amount,omitempty"`
	Status *string `json:"Status,omitempty"`
}

type Update struct {
	ID     int64
	Amount *decimal.Decimal
	Status *Status
}

// Normalize validates an update. Unlike creation, an unknown status or a bad
// amount is rejected rather than defaulted.
func (r RawUpdate) Normalize() (Update, error) {
	id, err := strconv.ParseInt(r.ID.String(), 10, 64)
	if err != nil || id < 1 {
		return Update{}, invalid("id", "must be a positive integer")
	}
	u := Update{ID: id}
	if r.Amount != nil {
		a, err := decimal.NewFromString(r.Amount.String())
		if err != nil || a.IsNegative() {
			return Update{}, invalid("Amount", "must be a non-negative number")
		}
		u.Amount = &a
	}
	if r.Status != nil {
		s := Status(strings.ToLower(strings.TrimSpace(*r.Status)))
		if !s.Valid() {
			return Update{}, invalid("Status", "unknown status %q", *r.Status)
		}
		u.Status = &s
	}
	if u.Amount == nil && u.Status == nil {
		return Update{}, invalid("body", "nothing to update")
	}
	return u, nil
}
