// Package publish sends recommendations to Kafka.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"kickbase-market-lab/internal/domain"
	"kickbase-market-lab/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message kinds, sent in the "kind" header.
const (
	KindMarket = "market"
	KindSquad  = "squad"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds producer settings.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Publisher writes one message per recommendation, keyed by player id.
type Publisher struct {
	writer MessageWriter
	topic  string
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a Publisher backed by a kafka.Writer.
func New(cfg Config, logger zerolog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic is required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: time.Second,
	}
	return NewWithWriter(w, cfg.Topic, logger), nil
}

// NewWithWriter creates a Publisher over an existing writer.
func NewWithWriter(w MessageWriter, topic string, logger zerolog.Logger) *Publisher {
	return &Publisher{writer: w, topic: topic, now: time.Now, logger: logger}
}

// Publish sends every market and squad recommendation of a run.
func (p *Publisher) Publish(ctx context.Context, runID string, market []domain.MarketRecommendation, squad []domain.SquadRecommendation) error {
	msgs, err := BuildMessages(runID, p.now(), market, squad)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), p.topic, err)
	}
	observability.RecordMessagesPublished(len(msgs))
	p.logger.Info().Str("topic", p.topic).Int("messages", len(msgs)).Str("run_id", runID).Msg("recommendations published")
	return nil
}

// Close closes the underlying writer.
func (p *Publisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// BuildMessages encodes recommendations as JSON messages.
func BuildMessages(runID string, at time.Time, market []domain.MarketRecommendation, squad []domain.SquadRecommendation) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(market)+len(squad))
	for _, m := range market {
		msg, err := newMessage(runID, KindMarket, m.PlayerID, at, m)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	for _, s := range squad {
		msg, err := newMessage(runID, KindSquad, s.PlayerID, at, s)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func newMessage(runID, kind, playerID string, at time.Time, value any) (kafka.Message, error) {
	v, err := json.Marshal(value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s recommendation %s: %w", kind, playerID, err)
	}
	return kafka.Message{
		Key:   []byte(playerID),
		Value: v,
		Time:  at,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(kind)},
			{Key: "run_id", Value: []byte(runID)},
		},
	}, nil
}
