// Package output streams confirmed proxies to a writer (stdout or
// --output-file) in one of three formats as they arrive, rather than
// buffering the whole run and writing a summary file at the end.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"proxyprobe/internal/model"
)

// Format selects the per-proxy rendering (spec §6).
type Format string

const (
	FormatDefault Format = "default"
	FormatText    Format = "text"
	FormatJSON    Format = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatDefault, FormatText, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("invalid format %q: want default, text, or json", s)
	}
}

// Writer streams proxies to w in the configured Format. Not safe for
// concurrent use; the pipeline has a single final consumer.
type Writer struct {
	w       io.Writer
	format  Format
	limit   int
	written int
	started bool
}

// NewWriter builds a Writer. limit <= 0 means unlimited (spec §6's
// --limit default of 0).
func NewWriter(w io.Writer, format Format, limit int) *Writer {
	return &Writer{w: w, format: format, limit: limit}
}

// Write renders one proxy. It returns (false, nil) once the configured
// limit has been reached, signalling the caller to stop pulling from the
// validator; a non-nil error means the underlying writer failed.
func (o *Writer) Write(p *model.Proxy) (bool, error) {
	if o.limit > 0 && o.written >= o.limit {
		return false, nil
	}

	var err error
	switch o.format {
	case FormatText:
		_, err = fmt.Fprintf(o.w, "%s\n", p.Addr())
	case FormatJSON:
		err = o.writeJSONItem(p)
	default:
		_, err = fmt.Fprintf(o.w, "%s\n", p.String())
	}
	if err != nil {
		return false, err
	}

	o.written++
	if o.limit > 0 && o.written >= o.limit {
		return false, nil
	}
	return true, nil
}

func (o *Writer) writeJSONItem(p *model.Proxy) error {
	if !o.started {
		if _, err := io.WriteString(o.w, "[\n"); err != nil {
			return err
		}
		o.started = true
	} else {
		if _, err := io.WriteString(o.w, ",\n"); err != nil {
			return err
		}
	}
	body, err := json.MarshalIndent(p, "  ", "  ")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(o.w, "  "); err != nil {
		return err
	}
	_, err = o.w.Write(body)
	return err
}

// Close finishes the JSON array (a no-op for the other formats). Safe to
// call even if Write was never called for FormatJSON: an empty run still
// produces a valid, empty "[]" array.
func (o *Writer) Close() error {
	if o.format != FormatJSON {
		return nil
	}
	if !o.started {
		_, err := io.WriteString(o.w, "[]\n")
		return err
	}
	_, err := io.WriteString(o.w, "\n]\n")
	return err
}

// Written reports how many proxies have been rendered so far.
func (o *Writer) Written() int { return o.written }
