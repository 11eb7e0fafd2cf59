package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// LogHandler writes every alert to a slog logger at Warn level.
// TRADING_RESUMED is logged at Info.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHandler{logger: logger}
}

func (h *LogHandler) HandleAlert(ctx context.Context, a Alert) {
	level := slog.LevelWarn
	if a.Type == TypeTradingResumed {
		level = slog.LevelInfo
	}
	h.logger.Log(ctx, level, "connection alert",
		"type", a.Type,
		"tenant", a.TenantID,
		"exchange", a.ExchangeID,
		"connection", a.ConnectionID,
		"value", a.Value,
		"threshold", a.Threshold,
		"message", a.Message,
	)
}

// Encode returns the JSON wire form shared by the Redis and Kafka sinks.
func Encode(a Alert) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode alert: %w", err)
	}
	return data, nil
}

// redisPublisher is the subset of *redis.Client used by RedisPublisher.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes alerts as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redisPublisher
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher creates a publisher on channel. client is usually a *redis.Client.
func NewRedisPublisher(client redisPublisher, channel string, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

func (p *RedisPublisher) HandleAlert(ctx context.Context, a Alert) {
	data, err := Encode(a)
	if err != nil {
		p.logger.Error("redis alert publish failed", "error", err)
		return
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.Warn("redis alert publish failed",
			"channel", p.channel,
			"type", a.Type,
			"error", err,
		)
	}
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes alerts to a Kafka topic keyed by exchange id,
// so alerts for one exchange stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewKafkaWriter builds the writer used by KafkaPublisher.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
}

// NewKafkaPublisher creates a publisher. writer is usually from NewKafkaWriter.
func NewKafkaPublisher(writer messageWriter, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

func (p *KafkaPublisher) HandleAlert(ctx context.Context, a Alert) {
	data, err := Encode(a)
	if err != nil {
		p.logger.Error("kafka alert publish failed", "error", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(a.ExchangeID),
		Value: data,
		Time:  a.At,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("kafka alert publish failed",
			"type", a.Type,
			"exchange", a.ExchangeID,
			"error", err,
		)
	}
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
