package cartridge

import "testing"

func makeHeader(prgBanks, chrBanks, flags6, flags7 uint8) []uint8 {
	h := make([]uint8, headerSize)
	copy(h, []uint8{'N', 'E', 'S', 0x1A})
	h[4] = prgBanks
	h[5] = chrBanks
	h[6] = flags6
	h[7] = flags7
	return h
}

func makeROM(prgBanks, chrBanks uint8, flags6, flags7 uint8) []uint8 {
	data := makeHeader(prgBanks, chrBanks, flags6, flags7)
	data = append(data, make([]uint8, int(prgBanks)*prgBankSize)...)
	data = append(data, make([]uint8, int(chrBanks)*chrBankSize)...)
	return data
}

func TestLoadRejectsBadMagic(t *testing.T) {
	data := makeROM(1, 1, 0, 0)
	data[0] = 'X'
	if _, err := Load(data); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestLoadRejectsTruncated(t *testing.T) {
	data := makeROM(2, 1, 0, 0)
	data = data[:len(data)-100]
	if _, err := Load(data); err == nil {
		t.Fatal("expected truncation error")
	}
}

func TestLoadRejectsUnsupportedMapper(t *testing.T) {
	data := makeROM(1, 1, 0x20, 0) // mapper 2
	if _, err := Load(data); err == nil {
		t.Fatal("expected unsupported mapper error")
	}
}

func TestLoadSkipsTrainer(t *testing.T) {
	data := makeHeader(1, 0, 0x04, 0) // trainer bit set
	trainer := make([]uint8, trainerSize)
	data = append(data, trainer...)
	prg := make([]uint8, prgBankSize)
	prg[0] = 0xAA
	data = append(data, prg...)

	cart, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cart.ReadPRG(0x8000); got != 0xAA {
		t.Fatalf("PRG[0]=%#x, want 0xAA (trainer should have been skipped)", got)
	}
}

func TestLoadAllocatesCHRRAMWhenZero(t *testing.T) {
	data := makeROM(1, 0, 0, 0)
	cart, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cart.chrIsRAM {
		t.Fatal("expected CHR-RAM when header CHR size is 0")
	}
	cart.WriteCHR(0x100, 0x42)
	if got := cart.ReadCHR(0x100); got != 0x42 {
		t.Fatalf("CHR-RAM not writable: got %#x", got)
	}
}

func TestMirroringFromHeader(t *testing.T) {
	cases := []struct {
		flags6 uint8
		want   MirrorMode
	}{
		{0x00, MirrorHorizontal},
		{0x01, MirrorVertical},
		{0x08, MirrorFourScreen},
	}
	for _, c := range cases {
		data := makeROM(1, 1, c.flags6, 0)
		cart, err := Load(data)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cart.Mirror() != c.want {
			t.Errorf("flags6=%#x: mirror=%v, want %v", c.flags6, cart.Mirror(), c.want)
		}
	}
}
