package messaging

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

type Producer struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

func NewProducer(url string, subjectPrefix string, logger *slog.Logger) (*Producer, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}

	logger.Info("NATS producer initialized", "url", url, "subject_prefix", subjectPrefix)

	return &Producer{
		conn:   nc,
		prefix: subjectPrefix,
		logger: logger,
	}, nil
}

// Publish sends value as JSON on prefix.subject. Event delivery is best
// effort; callers treat failures as log-only.
func (p *Producer) Publish(subject string, value interface{}) error {
	full := subject
	if p.prefix != "" {
		full = p.prefix + "." + subject
	}

	valueBytes, err := json.Marshal(value)
	if err != nil {
		p.logger.Error("failed to marshal event", "error", err, "subject", full)
		return err
	}

	if err := p.conn.Publish(full, valueBytes); err != nil {
		p.logger.Error("failed to publish event to NATS", "error", err, "subject", full)
		return err
	}

	p.logger.Info("event published to NATS", "subject", full)
	return nil
}

func (p *Producer) Close() error {
	p.conn.Close()
	return nil
}
