package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/etmur007/rainfall-risk-dashboard/internal/config"
	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces risk assessments to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured assessment topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: cfg.FetchTimeout,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes a run's assessments and writes them in a single
// WriteMessages call. Messages are keyed by location so one well's history
// stays on one partition.
func (p *Publisher) Publish(ctx context.Context, runID string, rows []domain.RiskAssessment) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(runID, rows[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d assessments to %s: %w", len(msgs), p.writer.Topic, err)
	}
	p.logger.Debug("published assessments", "topic", p.writer.Topic, "count", len(msgs), "run_id", runID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// assessmentMessage is the wire form of a RiskAssessment.
type assessmentMessage struct {
	LocationID  string   `json:"twp_id"`
	Name        string   `json:"name"`
	Lon         float64  `json:"lon"`
	Lat         float64  `json:"lat"`
	Date        string   `json:"date"`
	Rolling7d   *float64 `json:"rolling_7d"`
	FailureRisk float64  `json:"failure_risk"`
	RiskLevel   string   `json:"risk_level"`
	FetchedAt   string   `json:"date_fetched"`
}

// serializeToMessage marshals a RiskAssessment into a Kafka message.
func serializeToMessage(runID string, a domain.RiskAssessment) (kafkago.Message, error) {
	body := assessmentMessage{
		LocationID:  a.LocationID,
		Name:        a.Name,
		Lon:         a.Geo.Lon,
		Lat:         a.Geo.Lat,
		Date:        a.Date.Format(domain.DateFormat),
		FailureRisk: a.FailureRisk,
		RiskLevel:   string(a.RiskLevel),
		FetchedAt:   a.FetchedAt.Format(domain.DateFormat),
	}
	if a.Rolling7d.Valid {
		v := a.Rolling7d.Value
		body.Rolling7d = &v
	}
	data, err := json.Marshal(body)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize risk assessment: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(a.LocationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "risk_level", Value: []byte(a.RiskLevel)},
			{Key: "produced_at", Value: []byte(domain.Now().UTC().Format(time.RFC3339))},
		},
	}, nil
}
