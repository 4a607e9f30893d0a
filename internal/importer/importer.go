// Package importer decodes uploaded item batches from JSON, YAML or Excel
// workbooks into content inputs.
package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-content/internal/content"
)

// Format is an upload encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for content types that cannot be parsed.
var ErrUnsupportedFormat = errors.New("importer: unsupported format")

// FormatFor maps a Content-Type header or file name to a Format.
func FormatFor(contentType, filename string) (Format, error) {
	if filename != "" {
		switch {
		case strings.HasSuffix(strings.ToLower(filename), ".xlsx"):
			return FormatXLSX, nil
		case strings.HasSuffix(strings.ToLower(filename), ".yaml"), strings.HasSuffix(strings.ToLower(filename), ".yml"):
			return FormatYAML, nil
		case strings.HasSuffix(strings.ToLower(filename), ".json"):
			return FormatJSON, nil
		}
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil && contentType != "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, contentType)
	}
	switch mediaType {
	case "", "application/json":
		return FormatJSON, nil
	case "application/yaml", "application/x-yaml", "text/yaml":
		return FormatYAML, nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, contentType)
}

// batch is the document shape accepted by the JSON and YAML decoders, besides
// a bare list of items.
type batch struct {
	Items []content.Input `json:"items" yaml:"items"`
}

// Parse decodes r as format.
func Parse(format Format, r io.Reader) ([]content.Input, error) {
	switch format {
	case FormatJSON:
		return parseJSON(r)
	case FormatYAML:
		return parseYAML(r)
	case FormatXLSX:
		return ParseXLSX(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func parseJSON(r io.Reader) ([]content.Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	var items []content.Input
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var b batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing JSON items: %w", err)
	}
	return b.Items, nil
}

// parseYAML decodes a YAML list of items or a document with an items key.
func parseYAML(r io.Reader) ([]content.Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	var items []content.Input
	if err := yaml.Unmarshal(data, &items); err == nil {
		return normalizeYAML(items), nil
	}
	var b batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing YAML items: %w", err)
	}
	return normalizeYAML(b.Items), nil
}

// normalizeYAML turns nested YAML maps into string-keyed maps so metadata can
// be encoded as JSON.
func normalizeYAML(items []content.Input) []content.Input {
	for i := range items {
		for k, v := range items[i].Metadata {
			items[i].Metadata[k] = normalizeValue(v)
		}
	}
	return items
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeValue(val)
		}
		return m
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeValue(val)
		}
		return t
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	}
	return v
}

// optionSeparator splits the options column of a workbook.
const optionSeparator = "|"

// ParseXLSX reads items from the first sheet of a workbook. The first row is
// the header. Known columns map onto item fields by case-insensitive name;
// other non-empty cells are kept as string metadata.
func ParseXLSX(r io.Reader) ([]content.Input, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return []content.Input{}, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = columnKey(h)
	}

	items := make([]content.Input, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		var in content.Input
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if err := setField(&in, header[i], rows[0][i], cell); err != nil {
				return nil, fmt.Errorf("row %d: %w", n+2, err)
			}
		}
		items = append(items, in)
	}
	return items, nil
}

func setField(in *content.Input, key, column, cell string) error {
	switch key {
	case "name":
		in.Name = cell
	case "displayname":
		in.DisplayName = cell
	case "description":
		in.Description = cell
	case "period":
		in.Period = cell
	case "topic":
		in.Topic = cell
	case "year":
		y, err := strconv.Atoi(cell)
		if err != nil {
			return fmt.Errorf("year %q is not a number", cell)
		}
		in.Year = y
	case "question":
		in.Question = cell
	case "options":
		for _, o := range strings.Split(cell, optionSeparator) {
			if o = strings.TrimSpace(o); o != "" {
				in.Options = append(in.Options, o)
			}
		}
	case "answer":
		in.Answer = cell
	case "explanation":
		in.Explanation = cell
	default:
		if in.Metadata == nil {
			in.Metadata = map[string]any{}
		}
		in.Metadata[strings.TrimSpace(column)] = cell
	}
	return nil
}

// columnKey folds a header to its lookup key ("Display Name" → "displayname").
func columnKey(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if r != ' ' && r != '_' && r != '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
