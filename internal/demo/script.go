package demo

import (
	"time"

	"github.com/kingrea/kmap/internal/signal"
)

// Step is one immutable entry of a demo script.
type Step struct {
	ID       int
	Name     string
	Signal   string
	Duration time.Duration
}

// Script is an ordered sequence of steps.
type Script []Step

// DefaultScript is the six-step walkthrough from ticket to provenance.
func DefaultScript() Script {
	return Script{
		{ID: 1, Name: "Select a support ticket", Signal: signal.SelectTicket, Duration: 2500 * time.Millisecond},
		{ID: 2, Name: "Generate a grounded draft", Signal: signal.GenerateDraft, Duration: 4000 * time.Millisecond},
		{ID: 3, Name: "Approve at the governance gate", Signal: signal.ApproveDraft, Duration: 3000 * time.Millisecond},
		{ID: 4, Name: "Publish article v1", Signal: signal.PublishV1, Duration: 3500 * time.Millisecond},
		{ID: 5, Name: "Publish revision v2", Signal: signal.PublishV2, Duration: 3500 * time.Millisecond},
		{ID: 6, Name: "Open provenance", Signal: signal.OpenProvenance, Duration: 3000 * time.Millisecond},
	}
}

// Total is the sum of every step duration.
func (s Script) Total() time.Duration {
	var total time.Duration
	for _, step := range s {
		total += step.Duration
	}
	return total
}

// elapsedBefore sums the durations of the steps before index i.
func (s Script) elapsedBefore(i int) time.Duration {
	var total time.Duration
	for idx := 0; idx < i && idx < len(s); idx++ {
		total += s[idx].Duration
	}
	return total
}
