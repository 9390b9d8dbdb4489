package session

import (
	"errors"
	"testing"

	"github.com/collatz-app/collatz/internal/config"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "lab2024", false},
		{"valid with hyphen", "study-group", false},
		{"valid with underscore", "study_group", false},
		{"valid single char", "a", false},
		{"valid max length", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"space", "my session", true},
		{"dot", "my.session", true},
		{"too long", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},
		{"special chars", "my@session", true},
		{"slash", "../escape", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Errorf("ValidateName(%q) error does not wrap ErrInvalidName", tt.input)
			}
		})
	}
}

func TestResolvePrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("COLLATZ_HOME", home)

	if got := Resolve(""); got != DefaultSessionName {
		t.Errorf("Resolve(\"\") without config = %q, want %q", got, DefaultSessionName)
	}

	if err := config.Save(ConfigPath(), &config.Config{DefaultSession: "lab"}); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "lab" {
		t.Errorf("Resolve(\"\") = %q, want lab", got)
	}
	if got := Resolve("  work "); got != "work" {
		t.Errorf("Resolve(flag) = %q, want work", got)
	}
}

func TestResolveValidRejectsBadConfigName(t *testing.T) {
	t.Setenv("COLLATZ_HOME", t.TempDir())
	if err := config.Save(ConfigPath(), &config.Config{DefaultSession: "Bad Name"}); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveValid(""); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("ResolveValid() error = %v, want ErrInvalidName", err)
	}
}
