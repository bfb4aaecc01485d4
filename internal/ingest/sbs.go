package ingest

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"soar/internal/config"
	"soar/internal/metrics"
	"soar/internal/model"
	"soar/internal/rawqueue"
	"soar/internal/repo"
	"soar/internal/sbs"
)

// SBSConnector holds a long-lived BaseStation/SBS CSV feed:
// line-oriented, comma-delimited, one MSG record per line. Decoded
// messages are sharded by ICAO address across a 50-worker pool,
// mirroring BeastConnector's fan-out shape.
type SBSConnector struct {
	Cfg        config.TCPConfig
	Raw        repo.RawMessageRepo
	Queue      *rawqueue.Writer
	Log        zerolog.Logger
	Dispatcher *Dispatcher[sbs.Message]
}

// NewSBSDispatcher builds the sharded worker pool an SBSConnector
// routes decoded messages into, keyed by ICAO address.
func NewSBSDispatcher(ctx context.Context, workers, queueCap int, process func(context.Context, sbs.Message)) *Dispatcher[sbs.Message] {
	return NewDispatcher(ctx, workers, queueCap, process)
}

// Run dials the SBS feed and reads lines until ctx is cancelled,
// reconnecting with exponential backoff on any I/O error.
func (c *SBSConnector) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.runOnce(ctx); err != nil {
			c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("sbs connection lost")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second
	}
}

func (c *SBSConnector) runOnce(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.Cfg.Host, c.Cfg.Port)
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		c.handleLine(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return fmt.Errorf("connection closed by peer")
}

func (c *SBSConnector) handleLine(ctx context.Context, line string) {
	receivedAt := time.Now().UTC()

	if c.Queue != nil {
		if err := c.Queue.Append(receivedAt, []byte(line)); err != nil {
			c.Log.Warn().Err(err).Msg("sbs raw queue append failed")
		}
	}
	if _, err := storeRaw(ctx, c.Raw, model.SourceSBS, 0, receivedAt, []byte(line)); err != nil {
		c.Log.Warn().Err(err).Msg("store raw sbs message failed")
	}

	msg, ok := sbs.Decode(line)
	if !ok {
		metrics.DecodeErrors.WithLabelValues("sbs").Inc()
		return
	}
	if !msg.HasGeneratedAt {
		msg.GeneratedAt, msg.HasGeneratedAt = receivedAt, true
	}
	metrics.FixesEmitted.WithLabelValues("sbs").Inc()
	if err := c.Dispatcher.SendUint32(ctx, msg.ICAO, msg); err != nil {
		c.Log.Debug().Err(err).Msg("sbs dispatch send cancelled")
	}
}
