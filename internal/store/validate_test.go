package store

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	img := "https://example.com/cat.png"
	blank := "   "

	tests := []struct {
		name     string
		text     string
		imageURL *string
		want     string
		wantErr  bool
	}{
		{name: "plain text", text: "hello", want: "hello"},
		{name: "trims text", text: "  hi  ", want: "hi"},
		{name: "empty without image", text: "", wantErr: true},
		{name: "whitespace without image", text: " \t\n", wantErr: true},
		{name: "blank image does not count", text: "", imageURL: &blank, wantErr: true},
		{name: "image only", text: "", imageURL: &img, want: ""},
		{name: "at limit", text: strings.Repeat("a", MaxTextLength), want: strings.Repeat("a", MaxTextLength)},
		{name: "over limit", text: strings.Repeat("a", MaxTextLength+1), wantErr: true},
		{name: "multibyte at limit", text: strings.Repeat("é", MaxTextLength), want: strings.Repeat("é", MaxTextLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.text, tt.imageURL)
			if tt.wantErr {
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAuthorOrAnonymous(t *testing.T) {
	if got := AuthorOrAnonymous(""); got != AnonymousName {
		t.Fatalf("expected %q, got %q", AnonymousName, got)
	}
	if got := AuthorOrAnonymous("  "); got != AnonymousName {
		t.Fatalf("expected %q, got %q", AnonymousName, got)
	}
	if got := AuthorOrAnonymous(" alice "); got != "alice" {
		t.Fatalf("expected alice, got %q", got)
	}
}
