package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaReader is the part of *kafka.Reader the source uses.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewKafkaReader(cfg KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 1e6,
		MaxWait:  250 * time.Millisecond,
	})
}

// KafkaSource treats every message value as one update payload. Keys are
// ignored; the payload carries its own symbol.
type KafkaSource struct {
	reader     KafkaReader
	ingest     *Ingestor
	log        *Logger
	retryDelay time.Duration
}

func NewKafkaSource(r KafkaReader, in *Ingestor, log *Logger) *KafkaSource {
	return &KafkaSource{reader: r, ingest: in, log: log, retryDelay: time.Second}
}

func (s *KafkaSource) Run(ctx context.Context) {
	defer s.reader.Close()
	s.log.Infof("kafka source started")

	for {
		m, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			s.log.Errorf("kafka read error: %v", err)
			if !sleepCtx(ctx, s.retryDelay) {
				return
			}
			continue
		}
		s.ingest.HandleMessage(m.Value)
	}
}
