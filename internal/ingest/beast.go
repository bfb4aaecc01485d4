package ingest

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"soar/internal/accumulator"
	"soar/internal/beast"
	"soar/internal/config"
	"soar/internal/metrics"
	"soar/internal/model"
	"soar/internal/rawqueue"
	"soar/internal/repo"
)

// BeastConnector holds a long-lived Mode-S Beast-format TCP feed (spec
// §4.1/§6: raw binary frames, 0x1a-escaped, no line framing). Decoded
// messages are sharded by ICAO address across a 50-worker pool (spec
// §5), each worker running the accumulator fusion + CPR pairing inline
// so that all updates for one ICAO are handled in arrival order by a
// single worker.
type BeastConnector struct {
	Cfg        config.TCPConfig
	Raw        repo.RawMessageRepo
	Queue      *rawqueue.Writer
	Log        zerolog.Logger
	Dispatcher *Dispatcher[beastItem]
}

type beastItem struct {
	msg        beast.Message
	receivedAt time.Time
}

// NewBeastDispatcher builds the sharded worker pool a BeastConnector
// routes decoded messages into, keyed by ICAO address.
func NewBeastDispatcher(ctx context.Context, workers, queueCap int, acc *accumulator.Accumulator, cpr *beast.CPRDecoder, process func(context.Context, beast.Message, time.Time)) *Dispatcher[beastItem] {
	return NewDispatcher(ctx, workers, queueCap, func(ctx context.Context, it beastItem) {
		process(ctx, it.msg, it.receivedAt)
	})
}

// Run dials the Beast feed and reads frames until ctx is cancelled,
// reconnecting with exponential backoff on any I/O error.
func (c *BeastConnector) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.runOnce(ctx); err != nil {
			c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("beast connection lost")
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

func (c *BeastConnector) runOnce(ctx context.Context) error {
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

	buf := make([]byte, 0, 64*1024)
	read := make([]byte, 16*1024)
	for {
		n, err := conn.Read(read)
		if n > 0 {
			buf = append(buf, read[:n]...)
			receivedAt := time.Now().UTC()
			frames, consumed, splitErr := beast.Split(buf)
			if splitErr != nil {
				metrics.DecodeErrors.WithLabelValues("beast").Inc()
			}
			for _, f := range frames {
				c.handleFrame(ctx, f, receivedAt)
			}
			buf = buf[consumed:]
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
	}
}

func (c *BeastConnector) handleFrame(ctx context.Context, f beast.Frame, receivedAt time.Time) {
	if c.Queue != nil {
		if err := c.Queue.Append(receivedAt, append([]byte{byte(f.Type)}, f.Payload...)); err != nil {
			c.Log.Warn().Err(err).Msg("beast raw queue append failed")
		}
	}
	if _, err := storeRaw(ctx, c.Raw, model.SourceBeast, 0, receivedAt, f.Payload); err != nil {
		c.Log.Warn().Err(err).Msg("store raw beast message failed")
	}

	msg, err := beast.Decode(f)
	if err != nil {
		metrics.DecodeErrors.WithLabelValues("beast").Inc()
		return
	}
	metrics.FixesEmitted.WithLabelValues("beast").Inc()
	if err := c.Dispatcher.SendUint32(ctx, msg.ICAO, beastItem{msg: msg, receivedAt: receivedAt}); err != nil {
		c.Log.Debug().Err(err).Msg("beast dispatch send cancelled")
	}
}
