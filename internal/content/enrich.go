package content

import (
	"fmt"
	"maps"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-content/internal/apperr"
	"github.com/p-n-ai/pai-content/internal/period"
)

// metadataSchemas are the required period fields of each track type.
var metadataSchemas = map[period.TrackType]string{
	period.Weeks: `{
		"type": "object",
		"required": ["week", "timeBasedContent"],
		"properties": {
			"week": {"type": "integer", "minimum": 1},
			"timeBasedContent": {"enum": [true]}
		}
	}`,
	period.Days: `{
		"type": "object",
		"required": ["day", "timeBasedContent"],
		"properties": {
			"day": {"type": "integer", "minimum": 1},
			"timeBasedContent": {"enum": [true]}
		}
	}`,
	period.Months: `{
		"type": "object",
		"required": ["month", "timeBasedContent"],
		"properties": {
			"month": {"type": "integer", "minimum": 1},
			"timeBasedContent": {"enum": [true]}
		}
	}`,
	period.Semester: `{
		"type": "object",
		"required": ["semester", "semesterName", "timeBasedContent"],
		"properties": {
			"semester": {"type": "integer", "minimum": 1},
			"semesterName": {"type": "string", "minLength": 1},
			"timeBasedContent": {"enum": [true]}
		}
	}`,
	period.Years: `{
		"type": "object",
		"required": ["year", "timeBasedContent"],
		"properties": {
			"year": {"type": "integer", "minimum": 1900, "maximum": 9999},
			"timeBasedContent": {"enum": [true]}
		}
	}`,
}

// ItemError reports a rejected item of a batch.
type ItemError struct {
	Index  int      `json:"index"`
	Name   string   `json:"name"`
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// Enricher turns caller-supplied inputs into stored items for one period.
type Enricher struct {
	schemas map[period.TrackType]*gojsonschema.Schema
}

// NewEnricher compiles the metadata schemas.
func NewEnricher() (*Enricher, error) {
	e := &Enricher{schemas: make(map[period.TrackType]*gojsonschema.Schema, len(metadataSchemas))}
	for _, t := range period.TrackTypes {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(metadataSchemas[t]))
		if err != nil {
			return nil, fmt.Errorf("compile %s metadata schema: %w", t, err)
		}
		e.schemas[t] = s
	}
	return e, nil
}

// Enrich builds the stored items of inputs in the period q. topicIDs holds
// the validated topic of each input ("" when it has none) and may be nil.
//
// Names get the period prefix unless they already carry it, display names the
// period label, and metadata the period fields, which override caller values.
// OrderIndex follows input order. Inputs that fail validation reject the whole
// batch with an InvalidInput error listing every failure.
func (e *Enricher) Enrich(q PeriodQuery, inputs []Input, topicIDs []string) ([]Item, error) {
	enc := q.Period
	if err := enc.CheckCapacity(len(inputs)); err != nil {
		return nil, err
	}
	schema, ok := e.schemas[enc.Type]
	if !ok {
		return nil, apperr.Newf(apperr.KindInvalidInput, "unknown track type %q", enc.Type)
	}

	items := make([]Item, 0, len(inputs))
	var failures []ItemError
	for i, in := range inputs {
		it, fields, err := e.enrichOne(schema, q, i, in)
		if err != nil {
			failures = append(failures, ItemError{Index: i, Name: in.Name, Error: err.Error(), Fields: fields})
			continue
		}
		if i < len(topicIDs) {
			it.TopicID = topicIDs[i]
		}
		items = append(items, it)
	}
	if len(failures) > 0 {
		return nil, apperr.New(apperr.KindInvalidInput,
			fmt.Sprintf("%d of %d items are invalid", len(failures), len(inputs)), failures)
	}
	return items, nil
}

func (e *Enricher) enrichOne(schema *gojsonschema.Schema, q PeriodQuery, index int, in Input) (Item, []string, error) {
	enc := q.Period
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Item{}, nil, fmt.Errorf("name is required")
	}

	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = name
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = fmt.Sprintf("%s: %s", enc.Label, strings.TrimPrefix(display, enc.DisplayPrefix()))
	}
	if !strings.HasPrefix(display, enc.DisplayPrefix()) {
		display = enc.DisplayPrefix() + display
	}

	meta := maps.Clone(in.Metadata)
	if meta == nil {
		meta = make(map[string]any, 3)
	}
	maps.Copy(meta, enc.Fields())
	meta[period.KeyTimeBasedContent] = true

	result, err := schema.Validate(gojsonschema.NewGoLoader(meta))
	if err != nil {
		return Item{}, nil, fmt.Errorf("validate metadata: %w", err)
	}
	if !result.Valid() {
		fields := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			fields = append(fields, re.String())
		}
		return Item{}, fields, fmt.Errorf("metadata does not match the %s schema", enc.Type)
	}

	it := Item{
		Kind:        KindContent,
		Scope:       q.Scope,
		Name:        ResolveName(enc, name),
		DisplayName: display,
		Description: description,
		OrderIndex:  enc.OrderIndex(index),
		PeriodKey:   enc.Key(),
		Metadata:    meta,
		IsActive:    true,
	}

	if in.IsQuestion() {
		it.Kind = KindQuestion
		it.Topic = strings.TrimSpace(in.Topic)
		it.Question = in.Question
		it.Options = in.Options
		it.Answer = in.Answer
		it.Explanation = in.Explanation
		it.Year = in.Year
		if it.Year == 0 && enc.Type == period.Years {
			it.Year = enc.Number
		}
	}
	return it, nil, nil
}
