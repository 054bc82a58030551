// Package trace streams decision telemetry to Kafka. With no brokers
// configured the publisher is inert and every call is a no-op.
package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "mucbot.trace"

const (
	KindDecision = "decision"
	KindReply    = "reply"
	KindSkip     = "skip"
	KindError    = "error"
	KindHealth   = "health"
	KindSession  = "session"
)

// Event is one telemetry record on the trace topic. Events from the
// same pipeline run share a TraceID.
type Event struct {
	TraceID    string    `json:"trace_id,omitempty"`
	Kind       string    `json:"kind"`
	Room       string    `json:"room,omitempty"`
	Nick       string    `json:"nick,omitempty"`
	Body       string    `json:"body,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Model      string    `json:"model,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type Publisher struct {
	writer   *kafka.Writer
	clientID string
	active   bool
}

// NewPublisher builds a publisher for the given brokers. An empty
// broker list yields an inactive publisher.
func NewPublisher(brokers []string, topic, clientID string) *Publisher {
	if len(brokers) == 0 {
		return &Publisher{}
	}
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Warn("Trace publish failed", "count", len(messages), "error", err)
			}
		},
	}
	return &Publisher{writer: w, clientID: clientID, active: true}
}

func (p *Publisher) Active() bool {
	return p != nil && p.active
}

// Publish enqueues ev. The write is async; delivery failures are
// logged, never returned to the caller's hot path.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if !p.Active() {
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal trace event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(p.clientID),
		Value: data,
		Time:  ev.Timestamp,
	})
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// NewReader builds a consumer for tailing the trace topic.
func NewReader(brokers []string, topic string, fromStart bool) *kafka.Reader {
	if topic == "" {
		topic = DefaultTopic
	}
	offset := kafka.LastOffset
	if fromStart {
		offset = kafka.FirstOffset
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		Partition:   0,
		StartOffset: offset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     3 * time.Second,
	})
}
