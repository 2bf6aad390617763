package datasource

import (
	"context"
	"errors"
	"regexp"

	"github.com/rs/zerolog/log"

	"sldpreview/internal/domain"
	"sldpreview/internal/render"
	"sldpreview/internal/style"
)

// Renderer performs a trial render of one symbolizer against a feature.
type Renderer interface {
	Render(ctx context.Context, ft *domain.FeatureType, f *domain.Feature, sym *style.Symbolizer) error
}

// FieldTypeUpdater changes the type of a held field.
type FieldTypeUpdater interface {
	UpdateFieldType(name string, t domain.ScalarType)
}

// Corrector widens fields whose synthesized values a trial render could not
// read as numbers.
type Corrector struct {
	Renderer Renderer
	Reporter ErrorReporter
}

func NewCorrector(r Renderer, reporter ErrorReporter) *Corrector {
	if r == nil {
		r = render.NewEvaluator(nil)
	}
	if reporter == nil {
		reporter = LogReporter{}
	}
	return &Corrector{Renderer: r, Reporter: reporter}
}

// Attempt renders every symbolizer of doc against the first feature of src,
// once. Each number-decode failure widens its field to Long. It reports
// whether any field was changed; the caller rebuilds and retries.
func (c *Corrector) Attempt(ctx context.Context, doc *style.Document, src *SourceDescriptor, updater FieldTypeUpdater) bool {
	if doc == nil || !src.HasData() || updater == nil {
		return false
	}
	feature, err := src.FirstFeature(ctx)
	if err != nil {
		c.Reporter.Report("Corrector", err)
		return false
	}
	if feature == nil {
		return false
	}

	corrected := false
	for _, sym := range doc.Symbolizers() {
		err := c.Renderer.Render(ctx, src.FeatureType(), feature, sym)
		if err == nil {
			continue
		}
		if field, ok := NumberDecodeField(err); ok {
			log.Info().Str("field", field).Msg("widening field to Long")
			updater.UpdateFieldType(field, domain.TypeLong)
			corrected = true
			continue
		}
		c.Reporter.Report("Corrector", err)
	}
	return corrected
}

var (
	inputStringPattern = regexp.MustCompile(`For input string: "([^"]*)"`)
	fieldNamePattern   = regexp.MustCompile(`field "([^"]+)"`)
)

// NumberDecodeField recognizes a number-decode failure and returns the field
// it names. Structured render errors are checked first; for renderers that
// only return text, a message of the form
//
//	field "<name>": For input string: "<value>"
//
// is accepted too.
func NumberDecodeField(err error) (string, bool) {
	var rerr *render.Error
	if errors.As(err, &rerr) {
		if rerr.Kind == render.KindNumberDecode && rerr.Field != "" {
			return rerr.Field, true
		}
		return "", false
	}

	msg := err.Error()
	if !inputStringPattern.MatchString(msg) {
		return "", false
	}
	m := fieldNamePattern.FindStringSubmatch(msg)
	if m == nil {
		return "", false
	}
	return m[1], true
}
