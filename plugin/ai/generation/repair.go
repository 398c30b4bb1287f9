package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Parse stages, in the order Repair tries them.
const (
	StageStrict    = "strict"
	StageFenced    = "fenced"
	StageBraceSpan = "brace_span"
	StageUnparsed  = "unparsed"
)

// ErrorMarker is the marker carried by records that no parser could recover.
const ErrorMarker = "Failed to parse JSON"

var (
	errNoFencedBlock = errors.New("no fenced block")
	errNoBraceSpan   = errors.New("no balanced brace span")

	fencedBlockRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")
)

// Parser turns raw model output into a JSON object.
type Parser func(raw string) (map[string]any, error)

// Ladder is the ordered fallback chain used by Repair.
var Ladder = []struct {
	Stage  string
	Parser Parser
}{
	{StageStrict, ParseStrict},
	{StageFenced, ParseFenced},
	{StageBraceSpan, ParseBraceSpan},
}

// ParseStrict parses raw as a single JSON object.
func ParseStrict(raw string) (map[string]any, error) {
	var out map[string]any
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	if out == nil {
		return nil, errors.New("JSON value is not an object")
	}
	return out, nil
}

// ParseFenced parses the first fenced code block that holds a JSON object.
func ParseFenced(raw string) (map[string]any, error) {
	matches := fencedBlockRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil, errNoFencedBlock
	}
	var lastErr error
	for _, m := range matches {
		out, err := ParseStrict(m[1])
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fenced block: %w", lastErr)
}

// ParseBraceSpan parses the first balanced {...} span, honouring JSON strings.
func ParseBraceSpan(raw string) (map[string]any, error) {
	span, ok := firstBraceSpan(raw)
	if !ok {
		return nil, errNoBraceSpan
	}
	out, err := ParseStrict(span)
	if err != nil {
		return nil, fmt.Errorf("brace span: %w", err)
	}
	return out, nil
}

func firstBraceSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// StructuredResult is the outcome of a structured generation.
// When no parser succeeded, Stage is StageUnparsed, Fields is nil and
// ErrorMarker is set; callers must check Parsed before using Fields.
type StructuredResult struct {
	Fields      map[string]any
	Raw         string
	Stage       string
	ErrorMarker string
	Missing     []string
}

// Parsed reports whether one of the parsers recovered an object.
func (r *StructuredResult) Parsed() bool {
	return r.ErrorMarker == "" && r.Fields != nil
}

// Complete reports whether the object was parsed and has every expected field.
func (r *StructuredResult) Complete() bool {
	return r.Parsed() && len(r.Missing) == 0
}

// Decode unmarshals the recovered object into v.
func (r *StructuredResult) Decode(v any) error {
	if !r.Parsed() {
		return fmt.Errorf("decode unparsed result: %s", r.ErrorMarker)
	}
	data, err := json.Marshal(r.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Unparsed returns the typed record for text no parser could recover, in the
// shape {"text": raw, "error": marker}.
func (r *StructuredResult) Unparsed() map[string]any {
	return map[string]any{"text": r.Raw, "error": r.ErrorMarker}
}

// Repair runs the ladder over raw and never fails: the last rung is a typed unparsed record.
func Repair(raw string, expectedFields []string) *StructuredResult {
	for _, rung := range Ladder {
		fields, err := rung.Parser(raw)
		if err != nil {
			continue
		}
		return &StructuredResult{
			Fields:  fields,
			Raw:     raw,
			Stage:   rung.Stage,
			Missing: missingFields(fields, expectedFields),
		}
	}
	return &StructuredResult{
		Raw:         raw,
		Stage:       StageUnparsed,
		ErrorMarker: ErrorMarker,
		Missing:     append([]string(nil), expectedFields...),
	}
}

func missingFields(fields map[string]any, expected []string) []string {
	var missing []string
	for _, name := range expected {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
