package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"soar/internal/accumulator"
	"soar/internal/beast"
	"soar/internal/model"
)

type fakeRawRepo struct {
	mu    sync.Mutex
	count int
}

func (r *fakeRawRepo) Insert(_ context.Context, m *model.RawMessage) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return m.ID, nil
}

func TestBeastConnector_HandleFrame_StoresRawAndDispatches(t *testing.T) {
	raw := &fakeRawRepo{}
	acc := accumulator.New()
	cpr := beast.NewCPRDecoder()

	var mu sync.Mutex
	var seen []uint32
	process := func(_ context.Context, msg beast.Message, _ time.Time) {
		mu.Lock()
		seen = append(seen, msg.ICAO)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher := NewBeastDispatcher(ctx, 2, 4, acc, cpr, process)

	c := &BeastConnector{Raw: raw, Log: zerolog.Nop(), Dispatcher: dispatcher}

	// DF17 (10001 xxx), ICAO 485020, type code 11 (airborne position -> BDS05).
	payload := []byte{0x8D, 0x48, 0x50, 0x20, (11 << 3), 0, 0, 0, 0, 0, 0, 0, 0, 0}
	c.handleFrame(ctx, beast.Frame{Type: beast.TypeModeSLong, Payload: payload}, time.Now().UTC())

	if raw.count != 1 {
		t.Fatalf("raw messages stored = %d, want 1", raw.count)
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != 0x485020 {
		t.Fatalf("dispatched ICAOs = %v, want [0x485020]", seen)
	}
}

func TestBeastConnector_HandleFrame_InvalidFrameNotDispatched(t *testing.T) {
	raw := &fakeRawRepo{}
	acc := accumulator.New()
	cpr := beast.NewCPRDecoder()

	var mu sync.Mutex
	dispatched := false
	process := func(context.Context, beast.Message, time.Time) {
		mu.Lock()
		dispatched = true
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher := NewBeastDispatcher(ctx, 1, 2, acc, cpr, process)
	c := &BeastConnector{Raw: raw, Log: zerolog.Nop(), Dispatcher: dispatcher}

	// Too short to be a valid Mode-S frame.
	c.handleFrame(ctx, beast.Frame{Type: beast.TypeModeSLong, Payload: []byte{1, 2, 3}}, time.Now().UTC())

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if dispatched {
		t.Fatal("expected an undecodable frame to never reach the dispatcher")
	}
	if raw.count != 1 {
		t.Fatalf("raw messages stored = %d, want 1 (raw storage happens regardless of decode outcome)", raw.count)
	}
}
