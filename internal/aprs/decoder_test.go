package aprs

import (
	"testing"
	"time"
)

func TestDecode_AircraftPositionWithOGNID(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	line := "FLRDDA5BA>APRS,qAS,RECEIVR1:/120000h4903.50N/07201.75W'090/025/A=003281 +020fpm id3FDDA5BA"

	pkt := Decode(line, now)
	pos, ok := pkt.(AircraftPosition)
	if !ok {
		t.Fatalf("expected AircraftPosition, got %T (%v)", pkt, pkt)
	}
	if pos.PacketType() != TypeAircraftPosition {
		t.Errorf("PacketType() = %v", pos.PacketType())
	}
	if pos.ReceiverCallsign != "RECEIVR1" {
		t.Errorf("ReceiverCallsign = %q", pos.ReceiverCallsign)
	}
	if pos.OGN == nil || pos.OGN.Address != "DDA5BA" {
		t.Fatalf("OGN token not decoded: %+v", pos.OGN)
	}
	if pos.AltitudeFeet == nil || *pos.AltitudeFeet != 3281 {
		t.Errorf("AltitudeFeet = %v", pos.AltitudeFeet)
	}
	if pos.GroundSpeedKt == nil || *pos.GroundSpeedKt != 25 {
		t.Errorf("GroundSpeedKt = %v", pos.GroundSpeedKt)
	}
	if pos.Latitude <= 0 || pos.Longitude >= 0 {
		t.Errorf("unexpected hemisphere: lat=%v lon=%v", pos.Latitude, pos.Longitude)
	}
}

func TestDecode_Unparseable(t *testing.T) {
	now := time.Now()
	for _, line := range []string{
		"not an aprs line at all",
		"SRC>DEST:",
	} {
		pkt := Decode(line, now)
		if pkt.PacketType() != TypeUnparseable {
			t.Errorf("Decode(%q) = %v, want Unparseable", line, pkt.PacketType())
		}
		if pkt.RawText() != line {
			t.Errorf("RawText() = %q, want original text retained", pkt.RawText())
		}
	}
}

func TestDecode_ReceiverStatus(t *testing.T) {
	now := time.Now()
	pkt := Decode("RECEIVR1>APRS:>running OGN Rx 1.2.3", now)
	st, ok := pkt.(ReceiverStatus)
	if !ok {
		t.Fatalf("expected ReceiverStatus, got %T", pkt)
	}
	if st.ReceiverCallsign != "RECEIVR1" {
		t.Errorf("ReceiverCallsign = %q", st.ReceiverCallsign)
	}
}

func TestParseOGNIDToken(t *testing.T) {
	info, ok := parseOGNIDToken("id3FDDA5BA")
	if !ok {
		t.Fatal("expected ok")
	}
	if info.Address != "DDA5BA" {
		t.Errorf("Address = %q", info.Address)
	}
	// flags byte 0x3F = 0011 1111: stealth=0, notrack=0, type=1111(0x0F), addrtype=11(3)
	if info.AircraftType != 0x0F || info.AddressType != 3 {
		t.Errorf("AircraftType=%d AddressType=%d", info.AircraftType, info.AddressType)
	}
	if _, ok := parseOGNIDToken("idXYZ"); ok {
		t.Error("expected short token to be rejected")
	}
}
