package taxform

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dvloznov/finance-ingest/internal/config"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/ocr"
	"github.com/dvloznov/finance-ingest/internal/pdftext"
	"github.com/dvloznov/finance-ingest/internal/pii"
	"github.com/dvloznov/finance-ingest/internal/reasoning"
)

var (
	taxMeter           = otel.Meter("finance-ingest/taxform")
	tierAttempts, _    = taxMeter.Int64Counter("taxform.tier.attempts", metric.WithDescription("Extraction tier attempts by method and outcome"))
	tierEscalations, _ = taxMeter.Int64Counter("taxform.tier.escalations", metric.WithDescription("Escalations past a tier that fell below the threshold"))
)

// Attempt records one tier's outcome in the extraction trace.
type Attempt struct {
	Method     string         `json:"method"`
	Confidence float64        `json:"confidence"`
	Fields     int            `json:"fields"`
	Error      string         `json:"error,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// ExtractionResult is the outcome of the whole ladder.
type ExtractionResult struct {
	FormType    FormType
	Fields      map[string]any
	Confidence  map[string]float64
	Mean        float64
	Method      string
	NeedsReview bool
	Trace       []Attempt
}

// StorageFields returns the fields with identifiers hashed, as they may be
// persisted.
func (r *ExtractionResult) StorageFields() map[string]any {
	return pii.PrepareForStorage(r.Fields)
}

// StorageConfidence returns per-field confidence rounded for persistence.
func (r *ExtractionResult) StorageConfidence() map[string]float64 {
	out := make(map[string]float64, len(r.Confidence))
	for k, v := range r.Confidence {
		out[k] = pii.RoundConfidence(v)
	}
	return out
}

// Extractor runs tiers in order until one reaches Threshold.
type Extractor struct {
	Tiers       []Tier
	Threshold   float64
	TierTimeout time.Duration
}

// NewExtractor builds the default four tiers: raw pdftotext, layout
// pdftotext, tesseract OCR and the reasoning model. model may be nil, in
// which case the last tier always fails and low-confidence forms are flagged.
func NewExtractor(cfg config.ExtractConfig, model reasoning.TextModel) *Extractor {
	return &Extractor{
		Tiers: []Tier{
			NewStructuredTier(pdftext.NewPoppler(cfg.PdftotextPath, false)),
			NewLayoutTier(pdftext.NewPoppler(cfg.PdftotextPath, true)),
			NewOCRTier(ocr.NewTesseract(cfg.PdftoppmPath, cfg.TesseractPath)),
			NewReasoningTier(model),
		},
		Threshold:   cfg.Threshold,
		TierTimeout: cfg.TierTimeout,
	}
}

// Extract runs the ladder over pdf. It fails only when ctx is done before a
// tier starts; a form no tier can read comes back with NeedsReview set.
func (e *Extractor) Extract(ctx context.Context, pdf []byte, form FormType) (*ExtractionResult, error) {
	log := logger.Component(ctx, "taxform")

	threshold := e.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	in := Input{PDF: pdf, FormType: form}
	var (
		last    *TierResult
		carried *TierResult
		attempt []Attempt
	)

	for i, tier := range e.Tiers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("Extract: abandoned before tier %d (%s): %w", i+1, tier.Method(), err)
		}

		res, err := e.runTier(ctx, tier, in, carried)
		a := Attempt{Method: tier.Method()}
		if err != nil {
			log.Warn().Err(err).Str("method", tier.Method()).Msg("extraction tier failed")
			tierAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("method", tier.Method()), attribute.String("outcome", "error")))
			a.Error = err.Error()
			res = &TierResult{Method: tier.Method(), FormType: in.FormType, Fields: map[string]any{}, Confidence: map[string]float64{}}
		} else {
			a.Detail = res.Trace
		}
		a.Confidence = pii.RoundConfidence(res.Mean())
		a.Fields = len(res.Fields)
		attempt = append(attempt, a)
		last = res

		if in.FormType == FormUnknown && res.FormType != FormUnknown {
			in.FormType = res.FormType
		}
		if len(res.Fields) > 0 {
			carried = res
		}

		log.Info().Str("method", tier.Method()).Float64("confidence", res.Mean()).Int("fields", len(res.Fields)).Msg("extraction tier finished")

		if err == nil && res.Mean() >= threshold {
			tierAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("method", tier.Method()), attribute.String("outcome", "accepted")))
			return e.result(res, in.FormType, false, attempt), nil
		}
		if err == nil {
			tierAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("method", tier.Method()), attribute.String("outcome", "low_confidence")))
		}
		if i < len(e.Tiers)-1 {
			tierEscalations.Add(ctx, 1, metric.WithAttributes(attribute.String("from", tier.Method())))
		}
	}

	// Nothing reached the threshold. The last tier's output stands unless it
	// produced nothing, in which case the latest non-empty output is kept.
	final := last
	if (final == nil || len(final.Fields) == 0) && carried != nil {
		final = carried
	}
	if final == nil {
		final = &TierResult{Fields: map[string]any{}, Confidence: map[string]float64{}}
	}
	log.Warn().Str("method", final.Method).Float64("confidence", final.Mean()).Msg("tax form flagged for review")
	return e.result(final, in.FormType, true, attempt), nil
}

func (e *Extractor) runTier(ctx context.Context, tier Tier, in Input, previous *TierResult) (*TierResult, error) {
	if e.TierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.TierTimeout)
		defer cancel()
	}
	res, err := tier.Extract(ctx, in, previous)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%s: no result", tier.Method())
	}
	if res.Fields == nil {
		res.Fields = map[string]any{}
	}
	if res.Confidence == nil {
		res.Confidence = ScoreFields(res.Fields)
	}
	if res.Method == "" {
		res.Method = tier.Method()
	}
	return res, nil
}

func (e *Extractor) result(r *TierResult, form FormType, review bool, trace []Attempt) *ExtractionResult {
	if r.FormType != FormUnknown {
		form = r.FormType
	}
	conf := make(map[string]float64, len(r.Confidence))
	for k, v := range r.Confidence {
		conf[k] = clamp(v)
	}
	return &ExtractionResult{
		FormType:    form,
		Fields:      r.Fields,
		Confidence:  conf,
		Mean:        MeanConfidence(conf),
		Method:      r.Method,
		NeedsReview: review,
		Trace:       trace,
	}
}
