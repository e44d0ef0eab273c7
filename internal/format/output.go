// Package format renders command results as JSON, EDN or terminal tables.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	JSON  = "json"
	EDN   = "edn"
	Table = "table"
)

// Tabular values can render themselves for the table format.
type Tabular interface {
	RenderTable(opts TableOptions) string
}

// Valid reports whether name is a supported output format.
func Valid(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", JSON, EDN, Table:
		return true
	}
	return false
}

// Write writes v in the requested format. The table format needs v to be
// Tabular; anything else falls back to indented JSON.
func Write(w io.Writer, v any, format string, pretty bool, opts TableOptions) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", JSON:
		return WriteJSON(w, v, pretty)
	case EDN:
		return WriteEDN(w, v, pretty)
	case Table:
		t, ok := v.(Tabular)
		if !ok {
			return WriteJSON(w, v, true)
		}
		if opts.Writer == nil {
			opts.Writer = w
		}
		_, err := fmt.Fprintln(w, strings.TrimRight(t.RenderTable(opts), "\n"))
		return err
	default:
		return fmt.Errorf("unknown format: %s (expected json|edn|table)", format)
	}
}

// WriteJSON writes one JSON document followed by a newline.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
