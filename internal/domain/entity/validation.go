package entity

import (
	"fmt"
	"net/url"
)

// maxURLLength defines the maximum allowed length for configured URLs.
const maxURLLength = 2048

// ValidateURL checks that a configured URL is absolute and uses http or https.
// Failures are reported as ConfigurationError for the given field.
func ValidateURL(field, rawURL string) error {
	if rawURL == "" {
		return &ConfigurationError{Field: field, Message: "URL is required"}
	}

	if len(rawURL) > maxURLLength {
		return &ConfigurationError{
			Field:   field,
			Message: fmt.Sprintf("URL must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return &ConfigurationError{Field: field, Message: fmt.Sprintf("parse URL: %v", err)}
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ConfigurationError{Field: field, Message: "URL must use http or https scheme"}
	}

	if parsedURL.Host == "" {
		return &ConfigurationError{Field: field, Message: "URL must have a valid host"}
	}

	return nil
}
