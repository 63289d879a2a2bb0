package shell

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/alecthomas/chroma/v2/quick"
)

// Printer writes values as indented JSON, highlighted when color is on.
type Printer struct {
	color bool
	style string
}

func NewPrinter(color bool, style string) *Printer {
	if style == "" {
		style = "monokai"
	}
	return &Printer{color: color, style: style}
}

// JSON prints v to w. Non-ASCII text is written as is.
func (p *Printer) JSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	if !p.color {
		_, err := w.Write(buf.Bytes())
		return err
	}
	if err := quick.Highlight(w, buf.String(), "json", "terminal256", p.style); err != nil {
		return fmt.Errorf("highlighting output: %w", err)
	}
	return nil
}
