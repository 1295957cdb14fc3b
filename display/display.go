// Package display renders command output: record tables through pterm,
// and any value as JSON, YAML or TOML.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/record"
)

// Format is an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML, FormatTOML:
		return f, nil
	}
	return "", errors.WithHint(
		errors.NewInvalidRequestError("unsupported format %q", s),
		"use one of: table, json, yaml, toml",
	)
}

// MarshalJSON marshals with indentation for human consumption.
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// Render writes v in a document format. YAML and TOML go through v's JSON
// form so custom MarshalJSON methods and json tags shape every format alike.
func Render(w io.Writer, format Format, v interface{}) error {
	if format == FormatJSON {
		data, err := MarshalJSON(v)
		if err != nil {
			return errors.Wrap(err, "failed to marshal JSON")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	generic, err := toGeneric(v)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(generic)
	case FormatTOML:
		m, ok := generic.(map[string]interface{})
		if !ok {
			// TOML documents are tables
			m = map[string]interface{}{"items": generic}
		}
		data, err = toml.Marshal(m)
	default:
		return errors.NewInvalidRequestError("cannot render %s as %q", "document", format)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", format)
	}
	_, err = w.Write(data)
	return err
}

// RenderTable writes t as a pterm table, or delegates document formats to
// Render.
func RenderTable(w io.Writer, format Format, t *record.Table) error {
	if format != FormatTable {
		return Render(w, format, t)
	}
	if t.Len() == 0 {
		_, err := fmt.Fprintln(w, "(no rows)")
		return err
	}
	data := pterm.TableData{t.Columns}
	data = append(data, t.Values(Cell)...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "render table")
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// Cell formats one value for a table cell.
func Cell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	case []byte:
		return string(x)
	case map[string]any, []any, record.Record:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

// toGeneric converts v to maps, slices and scalars through JSON, dropping
// nulls, which TOML cannot express.
func toGeneric(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal")
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrap(err, "failed to decode")
	}
	return dropNulls(out), nil
}

func dropNulls(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		for k, e := range x {
			if e == nil {
				delete(x, k)
				continue
			}
			x[k] = dropNulls(e)
		}
	case []interface{}:
		for i, e := range x {
			x[i] = dropNulls(e)
		}
	}
	return v
}
