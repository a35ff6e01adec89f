package delivery

import (
	"sort"
	"strings"
	"unicode"
)

const (
	PostalCodeDigits = 10
	PhoneDigits      = 11
)

// Address is the mailing address collected for a physical card.
type Address struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Phone      string `json:"phone"`
}

// DigitsOnly drops every non-digit rune, including Persian and Arabic-Indic
// digits converted to ASCII first.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		}
	}
	return b.String()
}

// Normalize trims free text and strips non-digits from postal code and phone.
func (a Address) Normalize() Address {
	return Address{
		Address:    strings.TrimFunc(a.Address, unicode.IsSpace),
		City:       strings.TrimFunc(a.City, unicode.IsSpace),
		PostalCode: DigitsOnly(a.PostalCode),
		Phone:      DigitsOnly(a.Phone),
	}
}

// ValidationErrors maps a field name to the message shown for it.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "invalid address: " + strings.Join(parts, "; ")
}

// Validate expects a normalized address and returns nil when every field passes.
func (a Address) Validate() ValidationErrors {
	errs := ValidationErrors{}
	if a.Address == "" {
		errs["address"] = "address is required"
	}
	if a.City == "" {
		errs["city"] = "city is required"
	}
	switch {
	case a.PostalCode == "":
		errs["postalCode"] = "postal code is required"
	case len(a.PostalCode) != PostalCodeDigits:
		errs["postalCode"] = "postal code must be exactly 10 digits"
	}
	switch {
	case a.Phone == "":
		errs["phone"] = "phone number is required"
	case len(a.Phone) != PhoneDigits:
		errs["phone"] = "phone number must be exactly 11 digits"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
