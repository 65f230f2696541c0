// Package events publishes match lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/jonathan/resume-matcher/internal/logger"
	"github.com/jonathan/resume-matcher/internal/metrics"
	"github.com/jonathan/resume-matcher/internal/types"
)

// Event types
const (
	TypeMatchComputed = "match.computed"
	TypeMatchCleared  = "match.cleared"
)

// MatchEvent is the payload of a lifecycle event
type MatchEvent struct {
	EventType            string    `json:"event_type"`
	JobID                uuid.UUID `json:"job_id"`
	ResumeID             uuid.UUID `json:"resume_id"`
	CandidateID          uuid.UUID `json:"candidate_id"`
	Score                float64   `json:"score,omitempty"`
	ScoringConfigVersion int       `json:"scoring_config_version,omitempty"`
	Source               string    `json:"source,omitempty"`
	Forced               bool      `json:"forced,omitempty"`
	RequestID            string    `json:"request_id,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}

// Computed builds a match.computed event from a stored record
func Computed(rec *types.MatchRecord, forced bool, requestID string) *MatchEvent {
	return &MatchEvent{
		EventType:            TypeMatchComputed,
		JobID:                rec.JobID,
		ResumeID:             rec.ResumeID,
		CandidateID:          rec.CandidateID,
		Score:                rec.Score,
		ScoringConfigVersion: rec.ScoringConfigVersion,
		Source:               rec.Explanation.Source,
		Forced:               forced,
		RequestID:            requestID,
	}
}

// Cleared builds a match.cleared event
func Cleared(key types.MatchKey) *MatchEvent {
	return &MatchEvent{
		EventType: TypeMatchCleared,
		JobID:     key.JobID,
		ResumeID:  key.ResumeID,
	}
}

// Publisher emits match lifecycle events
type Publisher interface {
	Publish(ctx context.Context, event *MatchEvent) error
}

// Nop discards every event
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(context.Context, *MatchEvent) error { return nil }

// messageWriter is the subset of *kafka.Writer the producer uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	RequiredAcks int
}

// Producer publishes events to one Kafka topic, keyed by match key so events for
// the same pair stay ordered within a partition.
type Producer struct {
	writer  messageWriter
	topic   string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewProducer creates a Kafka producer
func NewProducer(cfg ProducerConfig, log *zap.Logger, m *metrics.Metrics) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, cfg.Topic, log, m), nil
}

func newProducer(w messageWriter, topic string, log *zap.Logger, m *metrics.Metrics) *Producer {
	return &Producer{
		writer:  w,
		topic:   topic,
		logger:  logger.OrNop(log).Named("events"),
		metrics: m,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Publish writes one event
func (p *Producer) Publish(ctx context.Context, event *MatchEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.EventType, err)
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
	}
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	for _, k := range carrier.Keys() {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(carrier.Get(k))})
	}

	key := types.MatchKey{JobID: event.JobID, ResumeID: event.ResumeID}
	msg := kafka.Message{
		Key:     []byte(key.String()),
		Value:   data,
		Headers: headers,
	}

	err = p.writer.WriteMessages(ctx, msg)
	p.metrics.ObserveEvent(event.EventType, err)
	if err != nil {
		p.logger.Error("failed to publish event", append(logger.MatchKey(key), zap.String("event_type", event.EventType), zap.Error(err))...)
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}

	p.logger.Debug("published event", append(logger.MatchKey(key), zap.String("event_type", event.EventType))...)
	return nil
}
