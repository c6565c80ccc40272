package relay

import (
	"context"
	"sync"

	"tessera/internal/platform/stream"
)

// Reporter publishes terminal deposit outcomes back toward whatever accepted
// the original deposit. Delivery is at least once; a report may be published
// again after a crash between publishing and forgetting the delivery.
type Reporter interface {
	Report(ctx context.Context, r Report) error
}

// StreamReporter publishes reports to the results stream keyed by event ID.
type StreamReporter struct {
	results stream.Log
}

// NewStreamReporter builds a reporter appending to the given stream.
func NewStreamReporter(results stream.Log) *StreamReporter {
	return &StreamReporter{results: results}
}

func (p *StreamReporter) Report(ctx context.Context, r Report) error {
	payload, err := r.Encode()
	if err != nil {
		return err
	}
	_, err = p.results.Append(ctx, []byte(r.EventID), payload)
	return err
}

// MemoryReporter records reports in process memory for tests and dev mode.
type MemoryReporter struct {
	mu      sync.Mutex
	reports []Report
	fail    error
}

func NewMemoryReporter() *MemoryReporter {
	return &MemoryReporter{}
}

func (p *MemoryReporter) Report(_ context.Context, r Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.reports = append(p.reports, r)
	return nil
}

// Reports returns a copy of everything published so far.
func (p *MemoryReporter) Reports() []Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Report, len(p.reports))
	copy(out, p.reports)
	return out
}

// FailWith makes every subsequent Report return err until cleared with nil.
func (p *MemoryReporter) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}
