package main

import (
	"context"
	"strings"
	"time"

	massivews "github.com/massive-com/client-go/v2/websocket"
	"github.com/massive-com/client-go/v2/websocket/models"
)

type MassiveStreamConfig struct {
	APIKey  string
	FeedURL string // optional base feed override (e.g. wss://socket.massive.com)
	Symbols []string
	Log     *Logger
}

// MassiveStream maps per-second equity aggregates to partial updates:
// price = close, volume = accumulated day volume.
type MassiveStream struct {
	cfg     MassiveStreamConfig
	ingest  *Ingestor
	metrics *Metrics
}

func NewMassiveStream(cfg MassiveStreamConfig, in *Ingestor, m *Metrics) *MassiveStream {
	return &MassiveStream{cfg: cfg, ingest: in, metrics: m}
}

// NormalizeWSFeed accepts either base feed host or a full /stocks URL.
// The Massive websocket client expects Feed like "wss://socket.massive.com"
// and separately Market=Stocks (so it will connect to {Feed}/{Market}).
func NormalizeWSFeed(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	in = strings.TrimRight(in, "/")
	if strings.HasSuffix(strings.ToLower(in), "/stocks") {
		in = in[:len(in)-len("/stocks")]
	}
	return in
}

func (s *MassiveStream) Run(ctx context.Context) {
	// The client reconnects and resubscribes on its own; it is only rebuilt
	// after a fatal error on c.Error().
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cfg := massivews.Config{
			APIKey: s.cfg.APIKey,
			Feed:   massivews.RealTime,
			Market: massivews.Stocks,
			Log:    s.cfg.Log,
			ReconnectCallback: func(err error) {
				if err != nil {
					s.metrics.ReconnectAttemptFailed()
					return
				}
				s.metrics.ReconnectSucceeded()
			},
		}
		if s.cfg.FeedURL != "" {
			cfg.Feed = massivews.Feed(NormalizeWSFeed(s.cfg.FeedURL))
		}

		c, err := massivews.New(cfg)
		if err != nil {
			s.cfg.Log.Errorf("massivews.New failed: %v", err)
			if !sleepCtx(ctx, 2*time.Second) {
				return
			}
			continue
		}

		// Subscribe before Connect so reconnects resubscribe.
		if err := subscribeInChunks(c, massivews.StocksSecAggs, s.cfg.Symbols, 100); err != nil {
			s.cfg.Log.Errorf("subscribe aggregates failed: %v", err)
			c.Close()
			if !sleepCtx(ctx, 2*time.Second) {
				return
			}
			continue
		}

		if err := c.Connect(); err != nil {
			s.cfg.Log.Errorf("massivews connect failed: %v", err)
			c.Close()
			if !sleepCtx(ctx, 2*time.Second) {
				return
			}
			continue
		}
		s.cfg.Log.Infof("massive websocket connected (symbols=%d)", len(s.cfg.Symbols))

		runOK := s.runClientLoop(ctx, c)
		c.Close()

		if runOK {
			return
		}
		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

func (s *MassiveStream) runClientLoop(ctx context.Context, c *massivews.Client) bool {
	for {
		select {
		case <-ctx.Done():
			return true

		case err, ok := <-c.Error():
			if ok && err != nil {
				s.cfg.Log.Errorf("massive fatal error: %v", err)
			}
			return false

		case out, ok := <-c.Output():
			if !ok {
				return false
			}
			s.metrics.IncMessage()
			switch msg := out.(type) {
			case models.EquityAgg:
				s.ingest.Apply(aggToRecord(msg))
			default:
				// control and status messages
			}
		}
	}
}

func aggToRecord(a models.EquityAgg) InstrumentRecord {
	rec := InstrumentRecord{Key: strings.ToUpper(a.Symbol)}
	if a.Close > 0 {
		rec.Set(FieldPrice, a.Close)
	}
	if a.AccumulatedVolume > 0 && validVolume(a.AccumulatedVolume) {
		rec.Set(FieldVolume, a.AccumulatedVolume)
	}
	return rec
}

func subscribeInChunks(c *massivews.Client, topic massivews.Topic, syms []string, chunk int) error {
	if chunk <= 0 {
		chunk = 100
	}
	for i := 0; i < len(syms); i += chunk {
		j := min(i+chunk, len(syms))
		if err := c.Subscribe(topic, syms[i:j]...); err != nil {
			return err
		}
	}
	return nil
}
