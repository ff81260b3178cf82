// Package moderation defines the compliance evaluation capability. The
// orchestration core only depends on the Evaluator interface, so a real
// model integration can replace the placeholder without touching the
// coordinator or the worker.
package moderation

import (
	"context"
	"time"

	"github.com/safeart/postercheck/internal/job"
)

// Evaluator takes raw image bytes and returns a compliance verdict. It is
// explicitly fallible: transport, model, or policy failures surface as
// errors and flow through the job's FAILED transition.
type Evaluator interface {
	Evaluate(ctx context.Context, data []byte) (*job.Verdict, error)
}

// Placeholder is a deterministic evaluator that approves everything.
// It stands in until the vision model integration lands.
type Placeholder struct {
	// Latency simulates model inference time. Zero means no delay.
	Latency time.Duration
}

// Evaluate returns a compliant verdict after the configured delay.
func (p *Placeholder) Evaluate(ctx context.Context, _ []byte) (*job.Verdict, error) {
	if p.Latency > 0 {
		timer := time.NewTimer(p.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return &job.Verdict{
		IsCompliant:  true,
		Violations:   []job.Violation{},
		ProcessedAt:  time.Now().UTC(),
		ModelVersion: "placeholder-v1",
	}, nil
}
