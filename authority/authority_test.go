package authority

import (
	"strings"
	"testing"

	"github.com/giygas/pbs-authority-api/pbscatalog/entities"
)

func TestFormat(t *testing.T) {
	got := Format("000000", "12119W", "Patient must have WHO status 0 or 1")
	want := "Hospital Provider Number [000000]\n12119W\nPatient must have WHO status 0 or 1"
	if got != want {
		t.Errorf("Format mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatTrimsEachField(t *testing.T) {
	got := Format("  000000 ", " 12119W\n", "\n\nSome criteria  ")
	want := "Hospital Provider Number [000000]\n12119W\nSome criteria"
	if got != want {
		t.Errorf("Format mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatPreservesMultilineRestrictionText(t *testing.T) {
	text := "Initial treatment\n\n• WHO status 0 or 1\n• No more than 4 doses"
	got := Format("123ABC", "12119W", text)

	lines := strings.SplitN(got, "\n", 3)
	if len(lines) != 3 {
		t.Fatalf("Expected at least 3 lines, got %d", len(lines))
	}
	if lines[0] != "Hospital Provider Number [123ABC]" {
		t.Errorf("Unexpected first line: %q", lines[0])
	}
	if lines[1] != "12119W" {
		t.Errorf("Unexpected second line: %q", lines[1])
	}
	if lines[2] != text {
		t.Errorf("Restriction text must pass through verbatim, got %q", lines[2])
	}
}

func TestFormatApplication(t *testing.T) {
	app := entities.Application{
		ProviderNumber:  "123ABC",
		ItemCode:        "10763L",
		RestrictionText: "Continuing treatment",
	}
	got := FormatApplication(app)
	want := "Hospital Provider Number [123ABC]\n10763L\nContinuing treatment"
	if got != want {
		t.Errorf("FormatApplication mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"12119W", "authority_12119W.txt"},
		{"12119w", "authority_12119W.txt"},
		{"  10763l ", "authority_10763L.txt"},
	}

	for _, tt := range tests {
		if got := FileName(tt.code); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestBuild(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		app := Build("", "12119w", "")
		if app.ProviderNumber != DefaultProviderNumber {
			t.Errorf("Expected placeholder provider, got %q", app.ProviderNumber)
		}
		if app.ItemCode != "12119W" {
			t.Errorf("Expected uppercased code, got %q", app.ItemCode)
		}
		if app.RestrictionText != NoRestrictionsPlaceholder {
			t.Errorf("Expected %q, got %q", NoRestrictionsPlaceholder, app.RestrictionText)
		}
	})

	t.Run("explicit values kept", func(t *testing.T) {
		app := Build("123ABC", "12119W", "Initial treatment")
		if app.ProviderNumber != "123ABC" {
			t.Errorf("Expected provider 123ABC, got %q", app.ProviderNumber)
		}
		if app.RestrictionText != "Initial treatment" {
			t.Errorf("Expected restriction text kept, got %q", app.RestrictionText)
		}
	})

	t.Run("whitespace-only treated as absent", func(t *testing.T) {
		app := Build("   ", "12119W", "\n\t ")
		if app.ProviderNumber != DefaultProviderNumber {
			t.Errorf("Expected placeholder provider, got %q", app.ProviderNumber)
		}
		if app.RestrictionText != NoRestrictionsPlaceholder {
			t.Errorf("Expected %q, got %q", NoRestrictionsPlaceholder, app.RestrictionText)
		}
	})
}
