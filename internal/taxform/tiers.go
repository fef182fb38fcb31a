package taxform

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-ingest/internal/normalize"
	"github.com/dvloznov/finance-ingest/internal/pii"
	"github.com/dvloznov/finance-ingest/internal/reasoning"
)

// Extraction method tags.
const (
	MethodStructured = "structured_pdf"
	MethodLayout     = "unstructured"
	MethodOCR        = "ocr"
	MethodReasoning  = "llm_assisted"
)

// Input is the document handed to every tier.
type Input struct {
	PDF      []byte
	FormType FormType
}

// TierResult is what a single tier produced.
type TierResult struct {
	Method     string
	FormType   FormType
	Fields     map[string]any
	Confidence map[string]float64
	Trace      map[string]any
}

// Mean is the tier's aggregate confidence.
func (r *TierResult) Mean() float64 {
	if r == nil {
		return 0
	}
	return MeanConfidence(r.Confidence)
}

// Tier is one extraction strategy. previous is the best result of the earlier
// tiers, or nil.
type Tier interface {
	Method() string
	Extract(ctx context.Context, in Input, previous *TierResult) (*TierResult, error)
}

// TextSource turns a PDF into text. pdftext.Poppler satisfies it.
type TextSource interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// OCRPort recognises text in a scanned PDF. ocr.Tesseract satisfies it.
type OCRPort interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// TextTier applies the form's label patterns to text from Source.
type TextTier struct {
	Name   string
	Source TextSource
}

func NewStructuredTier(src TextSource) *TextTier {
	return &TextTier{Name: MethodStructured, Source: src}
}

func NewLayoutTier(src TextSource) *TextTier {
	return &TextTier{Name: MethodLayout, Source: src}
}

func NewOCRTier(port OCRPort) *TextTier {
	return &TextTier{Name: MethodOCR, Source: port}
}

func (t *TextTier) Method() string { return t.Name }

func (t *TextTier) Extract(ctx context.Context, in Input, _ *TierResult) (*TierResult, error) {
	text, err := t.Source.ExtractText(ctx, in.PDF)
	if err != nil {
		return nil, fmt.Errorf("%s: extract text: %w", t.Name, err)
	}

	form := in.FormType
	if form == FormUnknown {
		form = DetectFormType(text)
	}
	if form == FormUnknown {
		return &TierResult{
			Method:     t.Name,
			Fields:     map[string]any{},
			Confidence: map[string]float64{},
			Trace:      map[string]any{"text_length": len(text), "form_type": "unknown"},
		}, nil
	}

	fields := ExtractFields(form, text)
	return &TierResult{
		Method:     t.Name,
		FormType:   form,
		Fields:     fields,
		Confidence: ScoreFields(fields),
		Trace:      map[string]any{"text_length": len(text), "fields_found": len(fields)},
	}, nil
}

// ReasoningTier asks a language model to fill in and correct the boxes found
// so far. Only masked values are sent, so identifiers and personal details
// always come from the earlier tiers.
type ReasoningTier struct {
	Model reasoning.TextModel
}

func NewReasoningTier(model reasoning.TextModel) *ReasoningTier {
	return &ReasoningTier{Model: model}
}

func (t *ReasoningTier) Method() string { return MethodReasoning }

func (t *ReasoningTier) Extract(ctx context.Context, in Input, previous *TierResult) (*TierResult, error) {
	if t.Model == nil {
		return nil, reasoning.ErrNotConfigured
	}

	form := in.FormType
	prevFields := map[string]any{}
	prevConf := map[string]float64{}
	if previous != nil {
		if form == FormUnknown {
			form = previous.FormType
		}
		for k, v := range previous.Fields {
			prevFields[k] = v
		}
		for k, v := range previous.Confidence {
			prevConf[k] = v
		}
	}
	if form == FormUnknown {
		return nil, fmt.Errorf("%s: form type unknown", MethodReasoning)
	}

	prompt, err := BuildPrompt(form, prevFields)
	if err != nil {
		return nil, err
	}
	answer, err := t.Model.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%s: generate: %w", MethodReasoning, err)
	}

	fields, conf, err := decodeAnswer(form, answer)
	if err != nil {
		return nil, err
	}
	for name, v := range fields {
		prevFields[name] = v
		prevConf[name] = conf[name]
	}
	accepted := len(fields)

	return &TierResult{
		Method:     MethodReasoning,
		FormType:   form,
		Fields:     prevFields,
		Confidence: prevConf,
		Trace:      map[string]any{"fields_accepted": accepted, "carried_forward": len(prevFields) - accepted},
	}, nil
}

// BuildPrompt renders the reasoning request. Every value passes through
// pii.MaskForReasoning first.
func BuildPrompt(form FormType, fields map[string]any) (string, error) {
	masked := pii.MaskForReasoning(fields)
	payload, err := json.MarshalIndent(masked, "", "  ")
	if err != nil {
		return "", fmt.Errorf("BuildPrompt: marshal fields: %w", err)
	}

	var names []string
	for _, f := range Fields(form) {
		if !f.PII {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "You are reviewing values extracted from an IRS form %s.\n", form)
	b.WriteString("Identifiers and personal details have been masked; do not return them.\n")
	b.WriteString("Correct obvious OCR mistakes and fill in boxes that are missing when they can be inferred.\n\n")
	b.WriteString("Boxes: " + strings.Join(names, ", ") + "\n\n")
	b.WriteString("Extracted so far:\n")
	b.Write(payload)
	b.WriteString("\n\nRespond with JSON only: ")
	b.WriteString(`{"fields": {"<box>": <value>}, "confidence": {"<box>": <0.0-1.0>}}`)
	b.WriteString("\nAmounts are plain numbers, checkboxes are true/false, box_12_codes is a list of {\"code\", \"amount\"}.\n")
	return b.String(), nil
}

// decodeAnswer keeps only non-PII boxes of form whose values have the
// expected kind.
func decodeAnswer(form FormType, answer string) (map[string]any, map[string]float64, error) {
	obj, ok := reasoning.ExtractObject(reasoning.CleanJSON(answer))
	if !ok {
		return nil, nil, fmt.Errorf("%s: no JSON object in response", MethodReasoning)
	}
	var doc any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return nil, nil, fmt.Errorf("%s: decode response: %w", MethodReasoning, err)
	}

	rawFields, err := jsonpath.Get("$.fields", doc)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: response has no fields: %w", MethodReasoning, err)
	}
	values, ok := rawFields.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%s: fields is not an object", MethodReasoning)
	}
	reported := map[string]any{}
	if rc, err := jsonpath.Get("$.confidence", doc); err == nil {
		if m, ok := rc.(map[string]any); ok {
			reported = m
		}
	}

	fields := make(map[string]any)
	conf := make(map[string]float64)
	for name, raw := range values {
		spec, ok := lookupField(form, name)
		if !ok || spec.PII {
			continue
		}
		v, ok := coerce(spec.Kind, raw)
		if !ok {
			continue
		}
		fields[name] = v
		if c, ok := reported[name].(float64); ok {
			conf[name] = clamp(c)
		} else {
			conf[name] = Score(v)
		}
	}
	return fields, conf, nil
}

func coerce(kind FieldKind, raw any) (any, bool) {
	switch kind {
	case KindMoney:
		return toDecimal(raw)
	case KindText:
		s, ok := raw.(string)
		return strings.TrimSpace(s), ok && strings.TrimSpace(s) != ""
	case KindBool:
		b, ok := raw.(bool)
		return b, ok
	case KindCodes:
		list, ok := raw.([]any)
		if !ok {
			return nil, false
		}
		var codes []Box12Code
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			code, _ := m["code"].(string)
			amount, ok := toDecimal(m["amount"])
			if code == "" || !ok {
				continue
			}
			codes = append(codes, Box12Code{Code: strings.ToUpper(code), Amount: amount})
		}
		return codes, len(codes) > 0
	}
	return nil, false
}

func toDecimal(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v).Round(2), true
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.Zero, false
		}
		return normalize.ParseAmount(v), true
	}
	return decimal.Zero, false
}
