package validation

import (
	"strings"
	"testing"

	"github.com/candleworks/candle/internal/types"
)

// --- ValidateRecordPayload Tests ---

func TestValidateRecordPayload_Valid(t *testing.T) {
	tests := []struct {
		name    string
		payload types.RecordPayload
	}{
		{"full_date", types.RecordPayload{Name: "Sam", Date: "1990-03-10"}},
		{"month_day", types.RecordPayload{Name: "Sam", Date: "--03-10"}},
		{"with_extras", types.RecordPayload{Name: "Sam", Date: "1990-03-10", Relation: "friend", Avatar: "cake"}},
		{"unicode_name", types.RecordPayload{Name: "Müller 世界", Date: "1990-03-10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if errs := ValidateRecordPayload(tt.payload); len(errs) != 0 {
				t.Errorf("ValidateRecordPayload(%+v) = %v, want no errors", tt.payload, errs)
			}
		})
	}
}

func TestValidateRecordPayload_MissingName(t *testing.T) {
	errs := ValidateRecordPayload(types.RecordPayload{Name: "  ", Date: "1990-03-10"})
	hasNameError := false
	for _, e := range errs {
		if e.Field == "name" && strings.Contains(e.Message, "required") {
			hasNameError = true
		}
	}
	if !hasNameError {
		t.Errorf("expected name required error, got: %v", errs)
	}
}

func TestValidateRecordPayload_BadDate(t *testing.T) {
	tests := []string{"tomorrow", "1990/03/10", "03-10", "1990-13-01"}
	for _, date := range tests {
		t.Run(date, func(t *testing.T) {
			errs := ValidateRecordPayload(types.RecordPayload{Name: "Sam", Date: date})
			hasDateError := false
			for _, e := range errs {
				if e.Field == "date" {
					hasDateError = true
				}
			}
			if !hasDateError {
				t.Errorf("ValidateRecordPayload(date=%q) should fail on date, got: %v", date, errs)
			}
		})
	}
}

func TestValidateRecordPayload_CollectsAllFailures(t *testing.T) {
	errs := ValidateRecordPayload(types.RecordPayload{Name: "", Date: "nonsense"})
	if len(errs) < 2 {
		t.Errorf("expected both name and date errors, got: %v", errs)
	}
}

// --- ValidateUTF8 Tests ---

func TestValidateUTF8_Valid(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"ascii", "hello world"},
		{"empty", ""},
		{"unicode", "Hello, 世界"},
		{"emoji", "Hello 👋🏻"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUTF8("field", tt.value)
			if err != nil {
				t.Errorf("ValidateUTF8(%q) = %v, want nil", tt.value, err)
			}
		})
	}
}

func TestValidateUTF8_Invalid(t *testing.T) {
	// Invalid UTF-8 byte sequence
	invalidUTF8 := string([]byte{0xff, 0xfe})

	err := ValidateUTF8("name", invalidUTF8)
	if err == nil {
		t.Error("ValidateUTF8(invalid) = nil, want error")
	}
	if err != nil && err.Field != "name" {
		t.Errorf("error.Field = %q, want %q", err.Field, "name")
	}
}

// --- ValidateNoNullBytes Tests ---

func TestValidateNoNullBytes_Clean(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"normal", "hello world"},
		{"empty", ""},
		{"unicode", "Hello, 世界"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNoNullBytes("field", tt.value)
			if err != nil {
				t.Errorf("ValidateNoNullBytes(%q) = %v, want nil", tt.value, err)
			}
		})
	}
}

func TestValidateNoNullBytes_WithNull(t *testing.T) {
	err := ValidateNoNullBytes("name", "hello\x00world")
	if err == nil {
		t.Error("ValidateNoNullBytes(with null) = nil, want error")
	}
	if err != nil && err.Field != "name" {
		t.Errorf("error.Field = %q, want %q", err.Field, "name")
	}
}

// --- ValidateMaxLength Tests ---

func TestValidateMaxLength_Within(t *testing.T) {
	value := strings.Repeat("a", 100)
	err := ValidateMaxLength("name", value, MaxNameLength)
	if err != nil {
		t.Errorf("ValidateMaxLength(100 chars, max %d) = %v, want nil", MaxNameLength, err)
	}
}

func TestValidateMaxLength_AtLimit(t *testing.T) {
	value := strings.Repeat("a", MaxNameLength)
	err := ValidateMaxLength("name", value, MaxNameLength)
	if err != nil {
		t.Errorf("ValidateMaxLength(at limit) = %v, want nil", err)
	}
}

func TestValidateMaxLength_Exceeds(t *testing.T) {
	value := strings.Repeat("a", MaxNameLength+1)
	err := ValidateMaxLength("name", value, MaxNameLength)
	if err == nil {
		t.Error("ValidateMaxLength(over limit) = nil, want error")
	}
}

func TestValidateMaxLength_MultibyteRunes(t *testing.T) {
	// Each emoji is 4 bytes in UTF-8 but counts as 1 rune.
	value := strings.Repeat("👋", MaxNameLength)
	err := ValidateMaxLength("name", value, MaxNameLength)
	if err != nil {
		t.Errorf("ValidateMaxLength(emoji at limit) = %v, want nil (counts runes)", err)
	}
}

// --- ValidateULID Tests ---

func TestValidateULID_Valid(t *testing.T) {
	// Valid ULIDs use Crockford Base32 (excludes I, L, O, U)
	validULIDs := []string{
		"01ARYZ6S41TSV4RRFFQ69G5FAV",
		"01HGW2N5E56F2ZXQWRR78YQRZ8",
		"00000000000000000000000000", // minimum ULID
		"7ZZZZZZZZZZZZZZZZZZZZZZZZZ", // maximum ULID
	}

	for _, ulid := range validULIDs {
		t.Run(ulid, func(t *testing.T) {
			err := ValidateULID("id", ulid)
			if err != nil {
				t.Errorf("ValidateULID(%q) = %v, want nil", ulid, err)
			}
		})
	}
}

func TestValidateULID_Invalid(t *testing.T) {
	invalidULIDs := []string{
		"",
		"01ARYZ6S41",                  // too short
		"01ARYZ6S41TSV4RRFFQ69G5FAVX", // too long
		"01ARYZ6S41TSV4RRFFQ69GILOU",  // contains I, L, O, U
	}

	for _, ulid := range invalidULIDs {
		t.Run(ulid, func(t *testing.T) {
			if err := ValidateULID("id", ulid); err == nil {
				t.Errorf("ValidateULID(%q) = nil, want error", ulid)
			}
		})
	}
}

// --- ValidateRequired Tests ---

func TestValidateRequired_NonEmpty(t *testing.T) {
	err := ValidateRequired("field", "value")
	if err != nil {
		t.Errorf("ValidateRequired(value) = %v, want nil", err)
	}
}

func TestValidateRequired_Empty(t *testing.T) {
	err := ValidateRequired("owner_id", "")
	if err == nil {
		t.Error("ValidateRequired(empty) = nil, want error")
	}
	if err != nil && err.Field != "owner_id" {
		t.Errorf("error.Field = %q, want %q", err.Field, "owner_id")
	}
}

func TestValidateRequired_WhitespaceOnly(t *testing.T) {
	tests := []string{" ", "   ", "\t", "\n", "  \t\n  "}
	for _, value := range tests {
		t.Run("whitespace", func(t *testing.T) {
			err := ValidateRequired("field", value)
			if err == nil {
				t.Errorf("ValidateRequired(%q) = nil, want error", value)
			}
		})
	}
}

// --- Collector Tests ---

func TestCollector_AccumulatesErrors(t *testing.T) {
	c := &Collector{}
	c.Add(&ValidationError{Field: "field1", Message: "error1"})
	c.Add(&ValidationError{Field: "field2", Message: "error2"})
	c.Add(&ValidationError{Field: "field3", Message: "error3"})

	errors := c.Errors()
	if len(errors) != 3 {
		t.Errorf("len(Errors()) = %d, want 3", len(errors))
	}
}

func TestCollector_IgnoresNil(t *testing.T) {
	c := &Collector{}
	c.Add(nil)
	c.Add(&ValidationError{Field: "field", Message: "error"})
	c.Add(nil)

	errors := c.Errors()
	if len(errors) != 1 {
		t.Errorf("len(Errors()) = %d, want 1 (nil should be ignored)", len(errors))
	}
}

func TestCollector_HasErrors(t *testing.T) {
	c := &Collector{}
	if c.HasErrors() {
		t.Error("HasErrors() = true, want false for empty collector")
	}
	c.Add(&ValidationError{Field: "field", Message: "error"})
	if !c.HasErrors() {
		t.Error("HasErrors() = false, want true for collector with errors")
	}
}
