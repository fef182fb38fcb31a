package schemainfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-ingest/internal/domain"
	"github.com/dvloznov/finance-ingest/internal/logger"
	"github.com/dvloznov/finance-ingest/internal/reasoning"
)

// Metadata keys set on every result.
const (
	MetaSchemaSource   = "schema_source"
	MetaFileType       = "file_type"
	MetaSchemaMapping  = "schema_mapping_raw"
	MetaFallbackReason = "fallback_reason"
)

// Port asks an external reasoning service for a column mapping.
type Port interface {
	InferSchema(ctx context.Context, req Request) (*Mapping, error)
}

// PortFunc adapts a function to Port.
type PortFunc func(ctx context.Context, req Request) (*Mapping, error)

func (f PortFunc) InferSchema(ctx context.Context, req Request) (*Mapping, error) {
	return f(ctx, req)
}

// ModelPort implements Port on top of a text model.
type ModelPort struct {
	Model reasoning.TextModel
}

func (p ModelPort) InferSchema(ctx context.Context, req Request) (*Mapping, error) {
	text, err := p.Model.Generate(ctx, req.Prompt())
	if err != nil {
		return nil, err
	}
	return DecodeMapping(text)
}

// Parser handles CSV layouts no institution parser knows. Port may be nil,
// in which case every file goes through the heuristic.
type Parser struct {
	Port Port
}

// NewParser returns a Parser using port.
func NewParser(port Port) *Parser {
	return &Parser{Port: port}
}

// Parse fails only when the CSV itself is unreadable.
func (p *Parser) Parse(ctx context.Context, content []byte, filename string) (*domain.ParseResult, error) {
	log := logger.Component(ctx, "schemainfer")

	t, err := ReadTable(content)
	if err != nil {
		return nil, err
	}

	res := domain.NewParseResult()
	mapping, err := p.infer(ctx, t)
	if err != nil {
		log.Warn().Err(err).Str("filename", filename).Msg("schema inference unavailable, using heuristic parser")
		res.Holdings = Heuristic(t)
		res.Metadata[MetaSchemaSource] = "heuristic"
		res.Metadata[MetaFileType] = string(FileHoldings)
		res.Metadata[MetaFallbackReason] = err.Error()
		return res, nil
	}

	res.Metadata[MetaSchemaSource] = "inferred"
	res.Metadata[MetaFileType] = string(mapping.FileType)
	res.Metadata[MetaSchemaMapping] = mapping.Raw
	switch mapping.FileType {
	case FileHoldings:
		res.Holdings = ApplyHoldings(ctx, mapping, t)
	case FileTransactions:
		res.Transactions = ApplyTransactions(ctx, mapping, t)
	}

	log.Info().
		Str("filename", filename).
		Str("file_type", string(mapping.FileType)).
		Int("rows", len(t.Rows)).
		Msg("applied inferred schema locally")
	return res, nil
}

func (p *Parser) infer(ctx context.Context, t *Table) (*Mapping, error) {
	if p.Port == nil {
		return nil, fmt.Errorf("%w: no reasoning backend configured", domain.ErrSchemaInference)
	}
	mapping, err := p.Port.InferSchema(ctx, BuildRequest(t.Headers, t.Rows))
	if err != nil {
		if errors.Is(err, domain.ErrSchemaInference) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrSchemaInference, err)
	}
	if mapping == nil {
		return nil, fmt.Errorf("%w: empty mapping", domain.ErrSchemaInference)
	}
	if err := mapping.Validate(t); err != nil {
		return nil, err
	}
	return mapping, nil
}
