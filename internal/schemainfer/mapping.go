package schemainfer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/reasoning"
)

type FileType string

const (
	FileHoldings     FileType = "holdings"
	FileTransactions FileType = "transactions"
)

// Sign conventions an amount column may declare.
const (
	NegativeForDebits = "negative_for_debits"
	PositiveForDebits = "positive_for_debits"
)

// CalcMarketValueMinusGainLoss derives cost basis from two columns.
const CalcMarketValueMinusGainLoss = "market_value - gain_loss"

// FieldSpec says where a canonical field comes from. It carries column names
// and formats only, never data.
type FieldSpec struct {
	Column         string
	Format         string
	SignConvention string
	Default        string
	Calculation    string
	UsesColumns    []string
}

// Mapping is an inferred layout for one CSV shape.
type Mapping struct {
	FileType FileType
	Fields   map[string]FieldSpec
	// Raw is the backend's response text as received.
	Raw string
}

// Field returns the spec for name, or the zero spec.
func (m *Mapping) Field(name string) FieldSpec {
	return m.Fields[name]
}

// DecodeMapping parses the backend's text into a Mapping. Errors wrap
// domain.ErrSchemaInference.
func DecodeMapping(text string) (*Mapping, error) {
	obj, ok := reasoning.ExtractObject(reasoning.CleanJSON(text))
	if !ok {
		return nil, fmt.Errorf("%w: response has no JSON object", domain.ErrSchemaInference)
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", domain.ErrSchemaInference, err)
	}

	ft, err := scalar(doc, "$.file_type")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchemaInference, err)
	}
	fileType := FileType(strings.ToLower(fmt.Sprint(ft)))
	if fileType != FileHoldings && fileType != FileTransactions {
		return nil, fmt.Errorf("%w: unrecognized file type %q", domain.ErrSchemaInference, fileType)
	}

	rawSchema, err := jsonpath.Get("$.schema", doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchemaInference, err)
	}
	schema, ok := rawSchema.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: schema is %T, want object", domain.ErrSchemaInference, rawSchema)
	}

	m := &Mapping{FileType: fileType, Fields: make(map[string]FieldSpec, len(schema)), Raw: text}
	for name, v := range schema {
		spec, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		m.Fields[name] = FieldSpec{
			Column:         stringAt(spec, "$.column"),
			Format:         stringAt(spec, "$.format"),
			SignConvention: stringAt(spec, "$.sign_convention"),
			Default:        stringAt(spec, "$.default"),
			Calculation:    stringAt(spec, "$.calculation"),
			UsesColumns:    stringsAt(spec, "$.uses_columns"),
		}
	}
	return m, nil
}

// scalar evaluates path and unwraps single-element list results, since
// jsonpath may answer either way.
func scalar(doc interface{}, path string) (interface{}, error) {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, err
	}
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return nil, fmt.Errorf("%s: no match", path)
		}
		v = list[0]
	}
	return v, nil
}

func stringAt(doc interface{}, path string) string {
	v, err := scalar(doc, path)
	if err != nil || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func stringsAt(doc interface{}, path string) []string {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
