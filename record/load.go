package record

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teranos/inout/errors"
)

// Format is an input file format for LoadFile.
type Format string

const (
	FormatJSON  Format = "json"  // array of objects
	FormatJSONL Format = "jsonl" // one object per line
	FormatYAML  Format = "yaml"  // sequence of mappings
	FormatCSV   Format = "csv"   // header row, then values
)

// FormatFromPath picks a format by file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", errors.WithHint(
		errors.NewInvalidRequestError("cannot infer input format from %q", path),
		"use a .json, .jsonl, .yaml or .csv file, or pass --format",
	)
}

// LoadFile reads records from path. An empty format is inferred from the
// extension.
func LoadFile(path string, format Format) ([]Record, error) {
	if format == "" {
		var err error
		if format, err = FormatFromPath(path); err != nil {
			return nil, err
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open input %s", path)
	}
	defer f.Close()
	return Load(f, format)
}

// Load reads records in the given format.
func Load(r io.Reader, format Format) ([]Record, error) {
	switch format {
	case FormatJSON:
		return loadJSON(r)
	case FormatJSONL:
		return loadJSONL(r)
	case FormatYAML:
		return loadYAML(r)
	case FormatCSV:
		return loadCSV(r)
	}
	return nil, errors.NewInvalidRequestError("unsupported input format %q", format)
}

func loadJSON(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode JSON records")
	}
	return fromMaps(raw), nil
}

func loadJSONL(r io.Reader) ([]Record, error) {
	var out []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return nil, errors.Wrapf(err, "decode JSON line %d", line)
		}
		out = append(out, Record(normalize(m).(map[string]any)))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read JSON lines")
	}
	return out, nil
}

func loadYAML(r io.Reader) ([]Record, error) {
	var raw []map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.Wrap(err, "decode YAML records")
	}
	return fromMaps(raw), nil
}

func loadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read CSV header")
	}

	var out []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read CSV row")
		}
		rec := make(Record, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = parseCell(row[i])
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseCell gives CSV cells the scalar kind they look like; empty cells are nil.
func parseCell(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	// NaN and Inf parse as floats but cannot be encoded as JSON.
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	switch s {
	case "true", "TRUE", "True":
		return true
	case "false", "FALSE", "False":
		return false
	}
	return s
}

func fromMaps(raw []map[string]any) []Record {
	out := make([]Record, len(raw))
	for i, m := range raw {
		out[i] = Record(normalize(m).(map[string]any))
	}
	return out
}

// normalize turns json.Number into int64/float64 and YAML's
// map[string]interface{} trees into plain maps, recursively.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	}
	return v
}
