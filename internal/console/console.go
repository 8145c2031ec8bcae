// Package console renders the conversation and status messages.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorMarker prefixes every error shown to the user
const ErrorMarker = "❌ Error:"

var (
	titleText   = color.New(color.FgHiCyan, color.Bold)
	userLabel   = color.New(color.FgGreen, color.Bold)
	botLabel    = color.New(color.FgMagenta, color.Bold)
	errorText   = color.New(color.FgRed, color.Bold)
	successText = color.New(color.FgGreen)
	mutedText   = color.New(color.FgHiBlack)
	headingText = color.New(color.FgYellow, color.Bold)
)

// Console writes styled output to w
type Console struct {
	w io.Writer
}

func New(w io.Writer) *Console {
	return &Console{w: w}
}

// Writer exposes the underlying writer for plain output
func (c *Console) Writer() io.Writer {
	return c.w
}

func (c *Console) Banner(title, hint string) {
	titleText.Fprintln(c.w, title)
	mutedText.Fprintln(c.w, hint)
	fmt.Fprintln(c.w)
}

// Prompt prints the input prompt without a newline
func (c *Console) Prompt() {
	userLabel.Fprint(c.w, "You: ")
}

func (c *Console) Reply(content string) {
	botLabel.Fprint(c.w, "Assistant: ")
	fmt.Fprintln(c.w, content)
	fmt.Fprintln(c.w)
}

func (c *Console) Error(err error) {
	errorText.Fprint(c.w, ErrorMarker)
	fmt.Fprintf(c.w, " %v\n", err)
}

func (c *Console) Success(msg string) {
	successText.Fprintln(c.w, msg)
}

func (c *Console) Info(msg string) {
	fmt.Fprintln(c.w, msg)
}

func (c *Console) Muted(msg string) {
	mutedText.Fprintln(c.w, msg)
}

// Section prints a heading followed by a separator line
func (c *Console) Section(title string) {
	headingText.Fprintln(c.w, title)
	fmt.Fprintln(c.w, strings.Repeat("-", 50))
}
