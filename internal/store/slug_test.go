package store

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Pun Intended", "pun-intended"},
		{"Gifts for the Cold Brew Fanatic!", "gifts-for-the-cold-brew-fanatic"},
		{"  --- weird   input ---  ", "weird-input"},
		{"Ünïcode & Émoji 🎁", "n-code-moji"},
		{"already-a-slug", "already-a-slug"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugify_CapsLength(t *testing.T) {
	long := strings.Repeat("verylongword ", 20)
	got := slugify(long)
	if len(got) > 61 {
		t.Errorf("slug length = %d, want <= 61", len(got))
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("slug %q has a trailing hyphen", got)
	}
}

func TestNewSlug(t *testing.T) {
	got := newSlug("Pun Intended")
	if !strings.HasPrefix(got, "pun-intended-") {
		t.Fatalf("slug %q does not start with the slugified title", got)
	}
	suffix := strings.TrimPrefix(got, "pun-intended-")
	if len(suffix) != 6 {
		t.Errorf("suffix %q has length %d, want 6", suffix, len(suffix))
	}

	if newSlug("Pun Intended") == got {
		t.Error("two slugs for the same title collided")
	}
}

func TestNewSlug_EmptyTitle(t *testing.T) {
	got := newSlug("!!!")
	if len(got) != 6 || strings.Contains(got, "-") {
		t.Errorf("slug for unusable title = %q, want bare 6-char suffix", got)
	}
}
