package aireg_protocol

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// AllowedURISchemes are the schemes accepted for endpoint and metadata URIs.
var AllowedURISchemes = []string{"http://", "https://", "ipfs://", "ar://"}

func validateRequired(field, value string, max int) error {
	if value == "" {
		return &ValidationError{Field: field, Constraint: "must not be empty"}
	}
	return validateLength(field, value, max)
}

func validateLength(field, value string, max int) error {
	if !utf8.ValidString(value) {
		return &ValidationError{Field: field, Constraint: "must be valid UTF-8"}
	}
	if len(value) > max {
		return &ValidationError{Field: field, Constraint: fmt.Sprintf("length %d exceeds maximum %d bytes", len(value), max)}
	}
	return nil
}

func validateOptional(field string, value *string, max int) error {
	if value == nil {
		return nil
	}
	return validateLength(field, *value, max)
}

// ValidateURI checks the scheme allow-list and, for http(s), that a host is present.
func ValidateURI(field, value string, max int) error {
	if err := validateRequired(field, value, max); err != nil {
		return err
	}
	allowed := false
	for _, scheme := range AllowedURISchemes {
		if strings.HasPrefix(value, scheme) {
			allowed = true
			break
		}
	}
	if !allowed {
		return &ValidationError{Field: field, Constraint: "must start with one of: " + strings.Join(AllowedURISchemes, ", ")}
	}
	u, err := url.Parse(value)
	if err != nil {
		return &ValidationError{Field: field, Constraint: fmt.Sprintf("malformed URI: %v", err)}
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return &ValidationError{Field: field, Constraint: "missing host"}
	}
	return nil
}

func validateOptionalURI(field string, value *string, max int) error {
	if value == nil {
		return nil
	}
	return ValidateURI(field, *value, max)
}

func validateOptionalStatus(s *Status) error {
	if s != nil && !s.Valid() {
		return &ValidationError{Field: "status", Constraint: fmt.Sprintf("unknown status %d", uint8(*s))}
	}
	return nil
}
