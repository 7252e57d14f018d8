package enricher

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/heartmarshall/lexiflow-backend/internal/domain"
)

const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["detail", "eg_en", "eg_cn"],
  "properties": {
    "detail": {"type": "string", "minLength": 1},
    "eg_en":  {"type": "string", "minLength": 1},
    "eg_cn":  {"type": "string", "minLength": 1}
  }
}`

var errNoFields = errors.New("enricher: response has no usable fields")

type payload struct {
	Detail string `json:"detail"`
	EgEN   string `json:"eg_en"`
	EgCN   string `json:"eg_cn"`
}

// parser turns raw model output into an Enrichment.
type parser struct {
	schema *jsonschema.Schema
	policy *bluemonday.Policy
}

func newParser() (*parser, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("enrichment.json", strings.NewReader(payloadSchema)); err != nil {
		return nil, fmt.Errorf("enricher: add schema: %w", err)
	}
	schema, err := compiler.Compile("enrichment.json")
	if err != nil {
		return nil, fmt.Errorf("enricher: compile schema: %w", err)
	}
	return &parser{schema: schema, policy: bluemonday.StrictPolicy()}, nil
}

// parse tries the structured form first and falls back to the label scan.
func (p *parser) parse(text string) (domain.Enrichment, error) {
	if e, err := p.parseStructured(text); err == nil {
		return e, nil
	}
	return p.parseLabelled(text)
}

func (p *parser) parseStructured(text string) (domain.Enrichment, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return domain.Enrichment{}, err
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return domain.Enrichment{}, fmt.Errorf("enricher: decode json: %w", err)
	}
	if err := p.schema.Validate(v); err != nil {
		return domain.Enrichment{}, fmt.Errorf("enricher: schema: %w", err)
	}

	var pl payload
	if err := json.Unmarshal([]byte(raw), &pl); err != nil {
		return domain.Enrichment{}, fmt.Errorf("enricher: decode payload: %w", err)
	}
	return p.finish(pl.Detail, pl.EgEN, pl.EgCN)
}

type field int

const (
	fieldDetail field = iota
	fieldExample
	fieldTranslation
)

// Longer labels come first so "例句翻译" is not read as "例句".
var labelRe = regexp.MustCompile(`(?im)^[ \t]*(?:[-*•][ \t]*)?(?:\d+[.、)][ \t]*)?\**[ \t]*(核心解析|例句翻译|英文例句|中文翻译|解析|例句|翻译|detail|example|translation|eg_en|eg_cn)[ \t]*\**[ \t]*[:：]`)

var labelFields = map[string]field{
	"核心解析":        fieldDetail,
	"解析":          fieldDetail,
	"detail":      fieldDetail,
	"英文例句":        fieldExample,
	"例句":          fieldExample,
	"example":     fieldExample,
	"eg_en":       fieldExample,
	"例句翻译":        fieldTranslation,
	"中文翻译":        fieldTranslation,
	"翻译":          fieldTranslation,
	"translation": fieldTranslation,
	"eg_cn":       fieldTranslation,
}

// parseLabelled reads "解析：… 例句：… 翻译：…" style answers. A value runs
// until the next label line; the first occurrence of a label wins.
func (p *parser) parseLabelled(text string) (domain.Enrichment, error) {
	matches := labelRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return domain.Enrichment{}, errNoFields
	}

	values := make(map[field]string, 3)
	for i, m := range matches {
		f, ok := labelFields[strings.ToLower(text[m[2]:m[3]])]
		if !ok {
			continue
		}
		if _, seen := values[f]; seen {
			continue
		}
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		values[f] = text[m[1]:end]
	}

	return p.finish(values[fieldDetail], values[fieldExample], values[fieldTranslation])
}

// finish sanitises the three values and requires all of them.
func (p *parser) finish(detail, exampleEN, exampleCN string) (domain.Enrichment, error) {
	e := domain.Enrichment{
		Detail:    p.clean(detail),
		ExampleEN: p.clean(exampleEN),
		ExampleCN: p.clean(exampleCN),
	}
	if !e.IsComplete() {
		return domain.Enrichment{}, errNoFields
	}
	return e, nil
}

// clean strips markup and surrounding decoration.
func (p *parser) clean(s string) string {
	s = html.UnescapeString(p.policy.Sanitize(s))
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*`")
	return strings.TrimSpace(s)
}

// extractJSON finds the outermost JSON object in a string.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("enricher: no JSON object found in response")
	}
	return s[start : end+1], nil
}
