package rawqueue

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	w, err := OpenWriter(dir, "aprs")
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	want := [][]byte{[]byte("line one"), []byte("line two"), []byte("line three")}
	for _, p := range want {
		if err := w.Append(now, p); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := OpenReader(dir, "aprs", "decoder-1")
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	for i, want := range want {
		f, err := r.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if string(f.Payload) != string(want) {
			t.Fatalf("frame %d payload = %q, want %q", i, f.Payload, want)
		}
		if !f.ReceivedAt.Equal(now) {
			t.Fatalf("frame %d timestamp = %v, want %v", i, f.ReceivedAt, now)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after last frame, got %v", err)
	}
}

func TestReader_ResumesFromBookmark(t *testing.T) {
	dir := t.TempDir()

	w, err := OpenWriter(dir, "sbs")
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	now := time.Now().UTC()
	for _, p := range [][]byte{[]byte("a"), []byte("b"), []byte("c")} {
		if err := w.Append(now, p); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	w.Close()

	r1, err := OpenReader(dir, "sbs", "consumer")
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	if _, err := r1.Next(); err != nil {
		t.Fatalf("first read: %v", err)
	}
	if err := r1.Ack(); err != nil {
		t.Fatalf("ack: %v", err)
	}

	r2, err := OpenReader(dir, "sbs", "consumer")
	if err != nil {
		t.Fatalf("reopen reader: %v", err)
	}
	f, err := r2.Next()
	if err != nil {
		t.Fatalf("read after reopen: %v", err)
	}
	if string(f.Payload) != "b" {
		t.Fatalf("payload after resume = %q, want %q (frame 'a' should have been skipped)", f.Payload, "b")
	}
}

func TestWriter_RotatesSegments(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWriter(dir, "beast")
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	big := make([]byte, maxSegmentBytes/2)
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := w.Append(now, big); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	w.Close()
	if w.seg == 0 {
		t.Fatalf("expected segment rotation, still on segment 0")
	}
}
