package ui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinterMessages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Success("Token stored")
	p.Info("Silo", "facebook")
	p.Warning("No source key", "facebook")
	p.Error("Poll failed", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "Token stored")
	assert.Contains(t, out, "Silo")
	assert.Contains(t, out, "facebook")
	assert.Contains(t, out, "No source key: facebook")
	assert.Contains(t, out, "Poll failed: boom")
}

func TestPrinterQuiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.SetQuiet(true)

	p.Success("hidden")
	p.Info("hidden", "too")
	p.Table([]string{"A"}, [][]string{{"hidden"}})
	p.Error("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestPrinterTable(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Table(
		[]string{"NAME", "PERIOD"},
		[][]string{{"bridgy-facebook-poll", "30m0s"}},
	)

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "bridgy-facebook-poll")
	assert.Contains(t, out, "30m0s")
}
