package datasource

import (
	"context"

	"github.com/rs/zerolog/log"

	"sldpreview/internal/domain"
	"sldpreview/internal/style"
)

// ConnectRequest is what a strategy needs to build its descriptors.
type ConnectRequest struct {
	Document   *style.Document
	Properties domain.ConnectionProperties

	// Fields is the field list the caller already holds (user added or
	// corrected). Strategies must not modify it.
	Fields domain.FieldList

	// Values are stored sample values, matched to fields by name.
	Values []domain.AttributeField
}

// Strategy builds source descriptors for a document.
type Strategy interface {
	Connect(ctx context.Context, req ConnectRequest) ([]*SourceDescriptor, error)
}

// ErrorReporter receives failures that are surfaced rather than handled.
type ErrorReporter interface {
	Report(source string, err error)
}

// ReporterFunc adapts a function to ErrorReporter.
type ReporterFunc func(source string, err error)

func (f ReporterFunc) Report(source string, err error) { f(source, err) }

// LogReporter reports to the global zerolog logger.
type LogReporter struct{}

func (LogReporter) Report(source string, err error) {
	log.Error().Str("source", source).Err(err).Msg("data source error")
}
