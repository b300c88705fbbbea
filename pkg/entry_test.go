package xcpindex

import (
	"strings"
	"testing"
	"time"
)

func TestEntryEncodeDecodeRoundtrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	root := testDir("root", HandleNone)
	e := Entry{
		Handle:    NewHandle(),
		Parent:    root.Handle,
		Kind:      EntryKindFile,
		Name:      "notes.txt",
		FileSize:  4096,
		Mode:      0640,
		UID:       1000,
		GID:       1000,
		MTimeWall: timeToWall(now),
		CTimeWall: timeToWall(now),
	}

	buf := encodeEntry(nil, &e)
	if len(buf)%8 != 0 {
		t.Errorf("encoded record not 8-byte padded: %d bytes", len(buf))
	}

	decoded, n, reason := decodeEntry(buf)
	if reason != "" {
		t.Fatalf("decode failed: %s", reason)
	}
	if n != len(buf) {
		t.Errorf("decode consumed %d of %d bytes", n, len(buf))
	}
	if decoded != e {
		t.Errorf("roundtrip mismatch:\n got %+v\nwant %+v", decoded, e)
	}
	if !decoded.MTime().Equal(now) {
		t.Errorf("mtime mismatch: got %v want %v", decoded.MTime(), now)
	}
}

func TestEntryEncodeNameLengths(t *testing.T) {
	// Name lengths around the padding boundary must all roundtrip
	for nameLen := 0; nameLen <= 24; nameLen++ {
		name := strings.Repeat("x", nameLen)
		e := testFile(name, HandleNone, 1)
		buf := encodeEntry(nil, &e)
		if len(buf) < binaryEntrySize {
			t.Fatalf("name %d: record smaller than minimum: %d", nameLen, len(buf))
		}
		decoded, _, reason := decodeEntry(buf)
		if reason != "" {
			t.Fatalf("name %d: decode failed: %s", nameLen, reason)
		}
		if decoded.Name != name {
			t.Errorf("name %d: got %q want %q", nameLen, decoded.Name, name)
		}
	}
}

func TestEntryDecodeRejectsCorruptRecords(t *testing.T) {
	e := testFile("f", HandleNone, 1)
	good := encodeEntry(nil, &e)

	// Truncated record
	if _, _, reason := decodeEntry(good[:binaryEntrySize-8]); reason == "" {
		t.Error("expected truncated record to be rejected")
	}

	// Size field pointing past the buffer
	overrun := append([]byte(nil), good...)
	overrun[0] = byte(len(good) + 8)
	if _, _, reason := decodeEntry(overrun); reason == "" {
		t.Error("expected overrunning size to be rejected")
	}

	// Unaligned size
	unaligned := append([]byte(nil), good...)
	unaligned[0] = byte(len(good) - 3)
	if _, _, reason := decodeEntry(unaligned); reason == "" {
		t.Error("expected unaligned size to be rejected")
	}

	// Bad kind
	badKind := append([]byte(nil), good...)
	badKind[4] = 0xff
	badKind[5] = 0xff
	if _, _, reason := decodeEntry(badKind); reason == "" {
		t.Error("expected invalid kind to be rejected")
	}
}

func TestWallTimeEncoding(t *testing.T) {
	times := []time.Time{
		time.Unix(0, 0),
		time.Unix(1, 999999999),
		time.Date(2026, 8, 26, 12, 0, 0, 123456789, time.UTC),
	}
	for _, want := range times {
		got := wallToTime(timeToWall(want))
		if !got.Equal(want) {
			t.Errorf("wall roundtrip: got %v want %v", got, want)
		}
	}
}
