package auth

import (
	"context"
	"testing"
)

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"bearer", "Bearer wsk_abc12345", "wsk_abc12345", nil},
		{"lowercase bearer", "bearer wsk_abc12345", "wsk_abc12345", nil},
		{"bare key", "wsk_abc12345", "wsk_abc12345", nil},
		{"padded", "  Bearer   wsk_abc12345  ", "wsk_abc12345", nil},
		{"empty", "", "", ErrMissingAPIKey},
		{"wrong prefix", "Bearer tsk_abc12345", "", ErrInvalidAPIKey},
		{"too short", "Bearer wsk_a", "", ErrInvalidAPIKey},
		{"basic scheme", "Basic d3NrX2FiYw==", "", ErrInvalidAPIKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractAPIKey(tt.header)
			if err != tt.wantErr {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdminAuthenticator(t *testing.T) {
	a := NewAdminAuthenticator("s3cret")

	c, err := a.Authenticate(context.Background(), "Bearer s3cret")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if c.ClientID != "admin" {
		t.Errorf("client = %s, want admin", c.ClientID)
	}

	if _, err := a.Authenticate(context.Background(), "Bearer nope"); err != ErrInvalidAPIKey {
		t.Errorf("wrong token: err = %v, want ErrInvalidAPIKey", err)
	}
	if _, err := a.Authenticate(context.Background(), ""); err != ErrMissingAPIKey {
		t.Errorf("empty header: err = %v, want ErrMissingAPIKey", err)
	}
}

func TestAdminAuthenticator_EmptyTokenRejectsAll(t *testing.T) {
	a := NewAdminAuthenticator("")
	if _, err := a.Authenticate(context.Background(), "Bearer anything"); err != ErrInvalidAPIKey {
		t.Errorf("err = %v, want ErrInvalidAPIKey", err)
	}
}
