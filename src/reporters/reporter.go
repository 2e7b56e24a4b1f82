package reporters

import (
	"context"
	"io"

	"github.com/username/pitfolio/src/fifo"
	"github.com/username/pitfolio/src/models"
)

// Reporter is the boundary every data-source adapter implements to feed the
// aggregation engine. The registry routes persisted configurations to
// constructors by a stable kind tag, so "which reporter" needs no type
// lookup beyond a tag-to-factory mapping.
type Reporter interface {
	// Name returns the display name used for log attribution.
	Name() string

	// Validators maps constructor parameter names to the validation applied
	// before the reporter is built from user input.
	Validators() map[string]ValidatorFunc

	// Details returns the one-line row shown in registry listings.
	Details() string

	// Params returns the constructor payload persisted by the registry.
	Params() map[string]string

	// Generate runs the reporter's pipeline and appends its audit changes to
	// the shared log.
	Generate(ctx context.Context, logs *models.TaxReportLogs) (models.TaxReport, error)
}

// EntrySource is additionally implemented by file- and API-backed reporters:
// it normalizes one raw source into canonical entries. Malformed rows are
// rejected, never coerced.
type EntrySource interface {
	ToEntryData(r io.Reader) ([]models.Entry, error)
}

// Deps carries the engine collaborators injected into reporters, so test
// runs can supply deterministic fixture rates without process-wide state.
type Deps struct {
	Rates   fifo.RateResolver
	Matcher *fifo.Matcher
}

// logChange appends one audit line for a record delta.
func logChange(logs *models.TaxReportLogs, reporter string, change models.LogChange) {
	if logs == nil {
		return
	}
	change.Reporter = reporter
	logs.Append(change)
}
