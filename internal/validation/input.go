package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Validation limits
const (
	MinEventNameLength  = 2
	MaxEventNameLength  = 200
	MaxVenueLength      = 200
	MaxCityLength       = 100
	MaxTicketTypeLength = 100

	MaxProofURLLength = 500
	MaxProofURLs      = 10

	MinStatementLength = 10
	MaxStatementLength = 5000

	MaxReferenceCodeLength = 100

	MinQuantity = 1
	MaxQuantity = 10
)

// ValidateLength checks the rune length of a string field.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s must be at most %d characters", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty checks that a string is not blank.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateEventName checks the listing's event name.
func ValidateEventName(name string) error {
	if err := ValidateNonEmpty("event name", name); err != nil {
		return err
	}
	return ValidateLength("event name", strings.TrimSpace(name), MinEventNameLength, MaxEventNameLength)
}

// ValidateQuantity checks the ticket count of a listing or order.
func ValidateQuantity(quantity int) error {
	if quantity < MinQuantity || quantity > MaxQuantity {
		return fmt.Errorf("quantity must be between %d and %d", MinQuantity, MaxQuantity)
	}
	return nil
}

// ValidateProofURL checks one evidence or proof link: http(s) with a host.
func ValidateProofURL(link string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return fmt.Errorf("proof url cannot be empty")
	}
	if err := ValidateLength("proof url", link, 0, MaxProofURLLength); err != nil {
		return err
	}

	parsedURL, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("proof url is not a valid URL")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("proof url must start with http:// or https://")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("proof url must contain a host name")
	}
	return nil
}

// ValidateProofURLs checks a proof list: at least one link, no duplicates.
func ValidateProofURLs(links []string) error {
	if len(links) == 0 {
		return fmt.Errorf("at least one proof url is required")
	}
	if len(links) > MaxProofURLs {
		return fmt.Errorf("at most %d proof urls are allowed", MaxProofURLs)
	}

	seen := make(map[string]bool)
	for _, link := range links {
		if err := ValidateProofURL(link); err != nil {
			return err
		}
		normalized := strings.ToLower(strings.TrimSpace(link))
		if seen[normalized] {
			return fmt.Errorf("proof url '%s' listed twice", link)
		}
		seen[normalized] = true
	}
	return nil
}

// ValidateStatement checks a dispute statement.
func ValidateStatement(statement string) error {
	if err := ValidateNonEmpty("statement", statement); err != nil {
		return err
	}
	return ValidateLength("statement", strings.TrimSpace(statement), MinStatementLength, MaxStatementLength)
}
