package beast

import "testing"

func TestDecode_DF17ExplicitICAO(t *testing.T) {
	// DF17 (10001 xxx), ICAO 485020, type code 11 (airborne position -> BDS05).
	payload := []byte{0x8D, 0x48, 0x50, 0x20, (11 << 3), 0, 0, 0, 0, 0, 0, 0, 0, 0}
	f := Frame{Type: TypeModeSLong, Payload: payload}

	m, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.DF != DF17 {
		t.Errorf("DF = %d, want 17", m.DF)
	}
	if m.ICAO != 0x485020 {
		t.Errorf("ICAO = %#x, want 0x485020", m.ICAO)
	}
	if m.BDS != BDS05 {
		t.Errorf("BDS = %v, want BDS05", m.BDS)
	}
}

func TestDecode_ShortFrameRejected(t *testing.T) {
	f := Frame{Type: TypeModeSShort, Payload: []byte{1, 2, 3}}
	_, err := Decode(f)
	if err != ErrShortFrame {
		t.Errorf("err = %v, want ErrShortFrame", err)
	}
}

func TestDecode_NotModeS(t *testing.T) {
	f := Frame{Type: TypeStatus, Payload: []byte{0}}
	if _, err := Decode(f); err == nil {
		t.Error("expected an error for a non-Mode-S frame type")
	}
}

func TestBDSFor(t *testing.T) {
	cases := []struct {
		typeCode byte
		want     BDS
	}{
		{1, BDS08}, {4, BDS08},
		{5, BDS06}, {8, BDS06},
		{9, BDS05}, {18, BDS05},
		{19, BDS09},
		{28, BDS61},
		{29, BDS62},
		{31, BDS65},
		{0, BDSUnknown},
	}
	for _, c := range cases {
		got := bdsFor(c.typeCode << 3)
		if got != c.want {
			t.Errorf("bdsFor(tc=%d) = %v, want %v", c.typeCode, got, c.want)
		}
	}
}
