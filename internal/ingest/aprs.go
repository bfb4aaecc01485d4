package ingest

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"soar/internal/aprs"
	"soar/internal/config"
	"soar/internal/fixproc"
	"soar/internal/metrics"
	"soar/internal/model"
	"soar/internal/rawqueue"
	"soar/internal/repo"
)

// APRSConnector holds a long-lived APRS-IS TCP connection: line-oriented
// ASCII, CRLF, login line
// "user CALLSIGN pass PASSCODE vers NAME VERSION filter FILTER". Decoded
// aircraft positions are dispatched to a worker pool sharded by source
// address hash; receiver-position/status packets update the receiver
// registry directly on the connector goroutine, since that volume is
// low.
type APRSConnector struct {
	Cfg        config.APRSConfig
	Raw        repo.RawMessageRepo
	Receivers  repo.ReceiverRepo
	Processor  *fixproc.Processor
	Queue      *rawqueue.Writer
	Log        zerolog.Logger
	Dispatcher *Dispatcher[aprs.AircraftPosition]
}

// NewAPRSDispatcher builds the sharded worker pool an APRSConnector
// routes decoded aircraft positions into.
func NewAPRSDispatcher(ctx context.Context, workers, queueCap int, process func(context.Context, aprs.AircraftPosition)) *Dispatcher[aprs.AircraftPosition] {
	return NewDispatcher(ctx, workers, queueCap, process)
}

// Run dials the APRS-IS server, sends the login line, and reads lines
// until ctx is cancelled, reconnecting with capped exponential backoff
// on any I/O error, retrying indefinitely.
func (c *APRSConnector) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.runOnce(ctx); err != nil {
			c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("aprs connection lost")
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

func (c *APRSConnector) runOnce(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.Cfg.Host, c.Cfg.Port)
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	login := fmt.Sprintf("user %s pass %s vers soar 1.0 filter %s\r\n", c.Cfg.Callsign, c.Cfg.Passcode, c.Cfg.Filter)
	if _, err := conn.Write([]byte(login)); err != nil {
		return fmt.Errorf("send login line: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c.handleLine(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return fmt.Errorf("connection closed by peer")
}

func (c *APRSConnector) handleLine(ctx context.Context, line string) {
	receivedAt := time.Now().UTC()

	if c.Queue != nil {
		if err := c.Queue.Append(receivedAt, []byte(line)); err != nil {
			c.Log.Warn().Err(err).Msg("aprs raw queue append failed")
		}
	}

	rawID, err := storeRaw(ctx, c.Raw, model.SourceAPRS, 0, receivedAt, []byte(line))
	if err != nil {
		c.Log.Warn().Err(err).Msg("store raw aprs message failed")
	}

	pkt := aprs.Decode(line, receivedAt)
	switch p := pkt.(type) {
	case aprs.AircraftPosition:
		p.Raw = rawID // carry the raw-message id forward instead of the line itself past this point
		metrics.FixesEmitted.WithLabelValues("aprs").Inc()
		key := p.SourceCallsign
		if err := c.Dispatcher.Send(ctx, key, p); err != nil {
			c.Log.Debug().Err(err).Msg("aprs dispatch send cancelled")
		}
	case aprs.ReceiverPosition:
		c.upsertReceiver(ctx, p.ReceiverCallsign, p.Latitude, p.Longitude, "")
	case aprs.ReceiverStatus:
		c.upsertReceiver(ctx, p.ReceiverCallsign, 0, 0, p.Status)
	case aprs.Unparseable:
		metrics.DecodeErrors.WithLabelValues("aprs").Inc()
	}
}

func (c *APRSConnector) upsertReceiver(ctx context.Context, callsign string, lat, lon float64, status string) {
	if callsign == "" {
		return
	}
	r := &model.Receiver{Callsign: callsign, LastHeardAt: time.Now().UTC()}
	if lat != 0 || lon != 0 {
		r.Latitude, r.Longitude, r.HasPosition = lat, lon, true
	}
	r.LastStatus = status
	if _, err := c.Receivers.Upsert(ctx, r); err != nil {
		c.Log.Debug().Err(err).Str("receiver", callsign).Msg("upsert receiver failed")
	}
}

func nextBackoff(d time.Duration) time.Duration {
	const cap = 60 * time.Second
	d *= 2
	if d > cap {
		return cap
	}
	return d
}
