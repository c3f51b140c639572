package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/candleworks/candle/internal/types"
)

// MaxNameLength bounds the display name of a birthday record.
const MaxNameLength = 200

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// dateFormats are the accepted record date layouts: a full ISO date or
// a year-less month-day form.
var dateFormats = []string{"2006-01-02", "--01-02"}

// ValidateRecordPayload checks a create/update payload and returns all
// field failures at once.
func ValidateRecordPayload(p types.RecordPayload) []ValidationError {
	var c Collector
	c.Add(ValidateRequired("name", p.Name))
	c.Add(ValidateUTF8("name", p.Name))
	c.Add(ValidateNoNullBytes("name", p.Name))
	c.Add(ValidateMaxLength("name", p.Name, MaxNameLength))
	c.Add(ValidateRequired("date", p.Date))
	c.Add(ValidateDate("date", p.Date))
	return c.Errors()
}

// ValidateDate returns an error if the value parses in none of the
// accepted date layouts.
func ValidateDate(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return nil // required-ness is a separate check
	}
	for _, layout := range dateFormats {
		if _, err := time.Parse(layout, value); err == nil {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: "must be an ISO date (2006-01-02) or month-day (--01-02)",
	}
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{
			Field:   field,
			Message: "must not contain null bytes",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateULID returns an error if the value is not a valid ULID format.
// ULIDs are 26 characters using Crockford Base32 (excludes I, L, O, U).
func ValidateULID(field, value string) *ValidationError {
	if len(value) != 26 {
		return &ValidationError{
			Field:   field,
			Message: "must be a valid ULID (26 characters)",
		}
	}

	const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	for _, r := range value {
		upper := strings.ToUpper(string(r))
		if !strings.Contains(crockfordBase32, upper) {
			return &ValidationError{
				Field:   field,
				Message: "must be a valid ULID (invalid character)",
			}
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}
