// Package export mirrors persisted transaction changes to external sinks.
// Export runs from the job queue and never affects an API response.
package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/finlog/finlog/internal/jobs"
	"github.com/rs/zerolog"
)

// Sink receives transaction changes.
type Sink interface {
	Name() string
	Export(ctx context.Context, job *jobs.ExportTransactionJob) error
}

// Dispatcher fans a job out to every configured sink.
type Dispatcher struct {
	sinks []Sink
	log   zerolog.Logger
}

// NewDispatcher creates a dispatcher over sinks.
func NewDispatcher(log zerolog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, log: log}
}

// Enabled reports whether any sink is configured.
func (d *Dispatcher) Enabled() bool {
	return len(d.sinks) > 0
}

// Handle implements jobs.JobHandler. Every sink is attempted; the job is
// retried if any of them failed.
func (d *Dispatcher) Handle(ctx context.Context, job jobs.Job) error {
	export, ok := job.(*jobs.ExportTransactionJob)
	if !ok {
		return fmt.Errorf("Handle: unsupported job type %s", job.GetType())
	}
	if export.Action == jobs.ExportUpsert && export.Transaction == nil {
		return fmt.Errorf("Handle: upsert job %s has no transaction", export.JobID)
	}

	var errs []error
	for _, sink := range d.sinks {
		if err := sink.Export(ctx, export); err != nil {
			d.log.Error().Err(err).
				Str("sink", sink.Name()).
				Str("job_id", export.JobID).
				Str("transaction_id", export.TransactionID).
				Msg("Export failed")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		d.log.Debug().
			Str("sink", sink.Name()).
			Str("transaction_id", export.TransactionID).
			Str("action", string(export.Action)).
			Msg("Exported transaction")
	}
	return errors.Join(errs...)
}
