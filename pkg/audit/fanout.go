package audit

import (
	"context"
	"errors"
)

// Fanout records every event into each underlying sink. Query is served by
// the first sink that returns history, so a slog or webhook sink can sit in
// front of a database-backed one.
type Fanout struct {
	recorders []Recorder
}

// NewFanout creates a Fanout over the given sinks, in order.
func NewFanout(recorders ...Recorder) *Fanout {
	return &Fanout{recorders: recorders}
}

// Record delivers the event to every sink. Sink errors are joined, not
// short-circuited: one failing sink must not starve the others.
func (f *Fanout) Record(ctx context.Context, event Event) error {
	var errs []error
	for _, r := range f.recorders {
		if err := r.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Query returns the first non-empty result among the sinks.
func (f *Fanout) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	for _, r := range f.recorders {
		events, err := r.Query(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(events) > 0 {
			return events, nil
		}
	}
	return nil, nil
}

// Close closes every sink, joining their errors.
func (f *Fanout) Close() error {
	var errs []error
	for _, r := range f.recorders {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Verify interface compliance.
var _ Recorder = (*Fanout)(nil)
