package tui

import (
	"slices"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantArgs string
	}{
		{"chat ada", "chat", "ada"},
		{":search  hello world ", "search", "hello world"},
		{"Q", "quit", ""},
		{"img /tmp/a.png nice shot", "image", "/tmp/a.png nice shot"},
		{"  refresh", "refresh", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		got := ParseCommand(tt.in)
		if got.Name != tt.wantName || got.Args != tt.wantArgs {
			t.Errorf("ParseCommand(%q) = %+v, want {%s %s}", tt.in, got, tt.wantName, tt.wantArgs)
		}
	}
}

func TestCommandFields(t *testing.T) {
	path, caption := ParseCommand("image /tmp/a.png  look at this").Fields()
	if path != "/tmp/a.png" || caption != "look at this" {
		t.Errorf("Fields() = %q, %q", path, caption)
	}
	path, caption = ParseCommand("image").Fields()
	if path != "" || caption != "" {
		t.Errorf("Fields() on empty = %q, %q", path, caption)
	}
}

func TestCommandNamesCoverAliases(t *testing.T) {
	if !slices.IsSorted(commandNames) {
		t.Error("commandNames not sorted")
	}
	for alias, full := range commandAliases {
		if !slices.Contains(commandNames, full) {
			t.Errorf("alias %q points at unknown command %q", alias, full)
		}
	}
}
