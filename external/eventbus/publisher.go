package eventbus

import (
	"context"
	"fmt"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	kafka "github.com/segmentio/kafka-go"

	"github.com/riskibarqy/predictor-league/internal/platform/logging"
	"github.com/riskibarqy/predictor-league/internal/platform/resilience"
)

var errKafkaTransient = crerr.New("event bus transient failure")

// Publisher publishes outbox events to a durable, ordered log. Ordering is
// per partition key, which callers set to the aggregate id (matchId or
// resultId) so that events about the same match are never observed
// out of order by a consumer (spec.md §5: "outbox serialization on
// (matchId, version)").
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

// KafkaPublisherConfig configures the Kafka-backed Publisher.
type KafkaPublisherConfig struct {
	Brokers        []string
	Timeout        time.Duration
	CircuitBreaker resilience.CircuitBreakerConfig
}

// KafkaPublisher publishes to a Kafka topic keyed for per-match ordering,
// guarded by a circuit breaker the way the teacher's QStash publisher
// guards its HTTP dispatch.
type KafkaPublisher struct {
	writer         *kafka.Writer
	timeout        time.Duration
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	logger         *logging.Logger
}

func NewKafkaPublisher(cfg KafkaPublisherConfig, logger *logging.Logger) *KafkaPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		timeout:        timeout,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		logger:         logger,
	}
}

// Publish writes one message, partitioned by key, to topic.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	if p.circuitEnabled {
		if err := p.breaker.Allow(); err != nil {
			p.logger.WarnContext(ctx, "event bus circuit breaker rejected publish", "topic", topic, "state", p.breaker.State())
			return fmt.Errorf("event bus is temporarily unavailable: %w", err)
		}
	}

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return crerr.New("topic is required")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		if p.circuitEnabled {
			p.breaker.RecordFailure()
		}
		return crerr.Wrapf(errKafkaTransient, "publish to topic %s: %v", topic, err)
	}
	if p.circuitEnabled {
		p.breaker.RecordSuccess()
	}
	return nil
}

// Close flushes and releases the underlying Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
