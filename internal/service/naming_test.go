package service

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
)

func TestLabel_Scenario(t *testing.T) {
	g := NewNameGenerator("jptr.host", 12)

	req, err := g.Generate("Survival #1", 25565, "pelican-server-wings-ds-01.jptr.host")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := regexp.MustCompile(`^survival-1-[a-z0-9]{12}\.jptr\.host$`)
	if !want.MatchString(req.Hostname) {
		t.Errorf("hostname %q does not match %s", req.Hostname, want)
	}
	if req.Port != 25565 || req.TargetHost != "pelican-server-wings-ds-01.jptr.host" {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestLabel_AlwaysValid(t *testing.T) {
	g := NewNameGenerator("jptr.host", 12)
	suffixed := regexp.MustCompile(`^[a-z0-9-]*-[a-z0-9]{12}$`)

	names := []string{
		"Survival #1",
		"ÜBER Server",
		"my_server.prod",
		"ALL CAPS!!!",
		"emoji 🎮 world",
		"1234 5678",
		strings.Repeat("Long Name ", 20),
	}
	for _, name := range names {
		label, err := g.Label(name)
		if err != nil {
			t.Fatalf("Label(%q): %v", name, err)
		}
		if !suffixed.MatchString(label) {
			t.Errorf("Label(%q) = %q, want lowercase name, dash and 12-char suffix", name, label)
		}
		if len(label) > maxLabelLength {
			t.Errorf("Label(%q) is %d octets, want <= %d", name, len(label), maxLabelLength)
		}
	}
}

func TestLabel_DegenerateName(t *testing.T) {
	g := NewNameGenerator("jptr.host", 12)
	dashesOnly := regexp.MustCompile(`^-+[a-z0-9]{12}$`)

	for _, name := range []string{"", "---", "!!!", "🎮"} {
		t.Run("dashes only "+name, func(t *testing.T) {
			label, err := g.Label(name)
			if err != nil {
				t.Fatal(err)
			}
			if !dashesOnly.MatchString(label) {
				t.Errorf("Label(%q) = %q, want only dashes before the suffix", name, label)
			}
		})
	}
}

func TestLabel_Deterministic(t *testing.T) {
	g := NewNameGenerator("jptr.host", 4)
	g.Rand = bytes.NewReader(make([]byte, 64))

	label, err := g.Label("Lobby")
	if err != nil {
		t.Fatal(err)
	}
	if label != "lobby-aaaa" {
		t.Errorf("expected lobby-aaaa, got %q", label)
	}
}

func TestLabel_Unique(t *testing.T) {
	g := NewNameGenerator("jptr.host", 12)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		label, err := g.Label("Survival #1")
		if err != nil {
			t.Fatal(err)
		}
		if seen[label] {
			t.Fatalf("duplicate label %q after %d iterations", label, i)
		}
		seen[label] = true
	}
}

func TestLabel_RandomSourceFailure(t *testing.T) {
	g := NewNameGenerator("jptr.host", 12)
	g.Rand = bytes.NewReader(nil)

	if _, err := g.Label("Lobby"); err == nil {
		t.Fatal("expected error from exhausted random source")
	}
}

func TestNewNameGenerator_SuffixBounds(t *testing.T) {
	if g := NewNameGenerator("jptr.host", 0); g.SuffixLength != DefaultSuffixLength {
		t.Errorf("expected default suffix length %d, got %d", DefaultSuffixLength, g.SuffixLength)
	}

	g := NewNameGenerator("jptr.host", 100)
	if g.SuffixLength != maxSuffixLength {
		t.Fatalf("expected suffix length capped at %d, got %d", maxSuffixLength, g.SuffixLength)
	}
	label, err := g.Label("Survival #1")
	if err != nil {
		t.Fatal(err)
	}
	if len(label) != maxLabelLength {
		t.Errorf("expected a %d-octet label, got %d (%q)", maxLabelLength, len(label), label)
	}
}

func TestLabel_SuffixTooLong(t *testing.T) {
	g := &NameGenerator{ParentDomain: "jptr.host", SuffixLength: 70}

	if _, err := g.Label("Survival #1"); err == nil {
		t.Fatal("expected error for a suffix that cannot fit in a label")
	}
}
