package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestUserIsActive(t *testing.T) {
	tests := []struct {
		status AccountStatus
		want   bool
	}{
		{AccountStatusActive, true},
		{"", true},
		{AccountStatusSuspended, false},
	}

	for _, tt := range tests {
		u := &User{AccountStatus: tt.status}
		if got := u.IsActive(); got != tt.want {
			t.Errorf("IsActive() for %q = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestUserPasswordHashNotSerialized(t *testing.T) {
	u := User{ID: "u-1", Email: "a@b.com", PasswordHash: "$2a$10$secret"}

	data, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	if strings.Contains(string(data), "secret") {
		t.Errorf("password hash leaked into JSON: %s", data)
	}
}

func TestDefaultLanguagesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, lang := range DefaultLanguages {
		if lang.Code != strings.ToLower(lang.Code) {
			t.Errorf("language code %q should be lower case", lang.Code)
		}
		if seen[lang.Code] {
			t.Errorf("duplicate language code %q", lang.Code)
		}
		seen[lang.Code] = true
	}

	if !seen["en"] {
		t.Error("default language en must be seeded")
	}
}
