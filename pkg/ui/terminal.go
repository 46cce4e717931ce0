// Package ui renders command output for the bridgypoll CLI.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Printer writes styled messages to a terminal
type Printer struct {
	out   io.Writer
	quiet bool
}

// NewPrinter creates a printer writing to out, stdout when nil
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out}
}

// SetQuiet suppresses everything except errors
func (p *Printer) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// Error prints an error message with an optional detail
func (p *Printer) Error(msg string, detail ...interface{}) {
	if len(detail) > 0 && detail[0] != nil {
		msg = fmt.Sprintf("%s: %v", msg, detail[0])
	}
	fmt.Fprintln(p.out, errorStyle.Render(msg))
}

// Warning prints a warning message
func (p *Printer) Warning(msg string, detail ...interface{}) {
	if p.quiet {
		return
	}
	if len(detail) > 0 && detail[0] != nil {
		msg = fmt.Sprintf("%s: %v", msg, detail[0])
	}
	fmt.Fprintln(p.out, warningStyle.Render(msg))
}

// Success prints a success message
func (p *Printer) Success(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, successStyle.Render(msg))
}

// Info prints a label and its value
func (p *Printer) Info(label, value string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s: %s\n", labelStyle.Render(label), valueStyle.Render(value))
}

// Highlight prints an emphasized line
func (p *Printer) Highlight(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, highlightStyle.Render(msg))
}

// Table prints rows under headers with a rounded border
func (p *Printer) Table(headers []string, rows [][]string) {
	if p.quiet {
		return
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(p.out, t.Render())
}
