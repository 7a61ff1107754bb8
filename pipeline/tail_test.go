package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestErrorTail_KeepsLinesWithNewlines(t *testing.T) {
	tail := NewErrorTail(100)
	tail.AppendLine("first")
	tail.AppendLine("second")

	if got := tail.String(); got != "first\nsecond\n" {
		t.Errorf("String() = %q", got)
	}
}

func TestErrorTail_EvictsOldest(t *testing.T) {
	tail := NewErrorTail(8)
	tail.AppendLine("abcdef")
	tail.AppendLine("xyz")

	// "abcdef\nxyz\n" is 11 characters; the last 8 survive.
	if got := tail.String(); got != "def\nxyz\n" {
		t.Errorf("String() = %q", got)
	}
}

func TestErrorTail_CountsRunes(t *testing.T) {
	tail := NewErrorTail(4)
	tail.AppendLine("错误信息")

	got := tail.String()
	if utf8.RuneCountInString(got) != 4 {
		t.Errorf("kept %d runes, want 4", utf8.RuneCountInString(got))
	}
	if got != "误信息\n" {
		t.Errorf("String() = %q", got)
	}
}

func TestErrorTail_DefaultSize(t *testing.T) {
	tail := NewErrorTail(0)
	tail.AppendLine(strings.Repeat("x", 5000))
	if n := len(tail.String()); n != DefaultErrorTailSize {
		t.Errorf("len = %d, want %d", n, DefaultErrorTailSize)
	}
}
