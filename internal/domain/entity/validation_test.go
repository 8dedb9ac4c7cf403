package entity

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "valid https URL", url: "https://www.sheinindia.in", wantErr: false},
		{name: "valid http URL with port", url: "http://localhost:8080/api", wantErr: false},
		{name: "valid URL with query", url: "https://example.com/c/sverse?page=1", wantErr: false},
		{name: "empty URL", url: "", wantErr: true},
		{name: "ftp scheme", url: "ftp://example.com", wantErr: true},
		{name: "missing host", url: "https://", wantErr: true},
		{name: "relative path", url: "/c/sverse-5939-37961", wantErr: true},
		{name: "too long", url: "https://example.com/" + strings.Repeat("a", maxURLLength), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL("CATALOG_BASE_URL", tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL_ErrorTypes(t *testing.T) {
	err := ValidateURL("DISCORD_WEBHOOK_URL", "mailto:someone@example.com")

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
	if cfgErr.Field != "DISCORD_WEBHOOK_URL" {
		t.Errorf("Field = %q, want DISCORD_WEBHOOK_URL", cfgErr.Field)
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected errors.Is(err, ErrConfiguration)")
	}
}
