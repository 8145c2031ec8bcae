package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func newTestConsole(t *testing.T) (*Console, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	return New(&buf), &buf
}

func TestError_UsesMarker(t *testing.T) {
	c, buf := newTestConsole(t)

	c.Error(errors.New("chat request failed: quota exceeded"))

	want := "❌ Error: chat request failed: quota exceeded\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestReply(t *testing.T) {
	c, buf := newTestConsole(t)

	c.Reply("Paris.")

	if buf.String() != "Assistant: Paris.\n\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestSection(t *testing.T) {
	c, buf := newTestConsole(t)

	c.Section("Example 1")

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 || lines[0] != "Example 1" || lines[1] != strings.Repeat("-", 50) {
		t.Errorf("unexpected section output %q", buf.String())
	}
}
