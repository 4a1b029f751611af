package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360studio/sleuthbench/pipeline"
)

// Subjects for run result publication.
const (
	RunCompletedSubject = "sleuthbench.run.completed"
	RunAbortedSubject   = "sleuthbench.run.aborted"
)

// RunEventMessage is the wire format for published run results. Heavy
// payloads (interactions, full summaries) stay in the on-disk record; the
// event carries scoring fields only.
type RunEventMessage struct {
	RunID            string    `json:"run_id"`
	Worker           string    `json:"worker"`
	CaseNumber       int       `json:"case_number"`
	Status           string    `json:"status"`
	CulpritMentioned bool      `json:"culprit_mentioned"`
	WindowsProcessed int       `json:"windows_processed"`
	WindowCount      int       `json:"window_count"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Publisher emits run results to NATS for downstream dashboards.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher wraps an existing connection. A nil connection is valid and
// turns every publish into a no-op (graceful degradation when no broker is
// configured).
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// Connect dials the broker and returns a Publisher. An empty URL yields a
// degraded no-op publisher without error.
func Connect(url string) (*Publisher, error) {
	if url == "" {
		return &Publisher{}, nil
	}
	nc, err := nats.Connect(url,
		nats.Name("sleuthbench"),
		nats.MaxReconnects(3),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Publisher{nc: nc}, nil
}

// PublishRun emits the scoring outcome of one completed run.
func (p *Publisher) PublishRun(rec *pipeline.RunRecord) error {
	if p == nil || p.nc == nil {
		return nil // Skip publishing if no broker (graceful degradation)
	}

	msg := RunEventMessage{
		RunID:            rec.RunID,
		Worker:           rec.Worker,
		CaseNumber:       rec.CaseNumber,
		Status:           string(rec.Verdict.Status),
		CulpritMentioned: rec.Verdict.CulpritMentioned,
		WindowsProcessed: rec.Outcome.WindowsProcessed,
		WindowCount:      rec.WindowCount,
		CompletedAt:      rec.CompletedAt,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding run event: %w", err)
	}

	subject := RunCompletedSubject
	if !rec.Verdict.Scored() {
		subject = RunAbortedSubject
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing run event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying connection, if any.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	_ = p.nc.Flush()
	p.nc.Close()
}
