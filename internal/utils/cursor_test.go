package utils

import (
	"testing"
	"time"
)

func TestUserCursor_RoundTrip(t *testing.T) {
	at := time.Date(2026, 2, 1, 10, 0, 0, 123, time.UTC)

	s, err := EncodeUserCursor(at, "u-1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	c, err := DecodeUserCursor(s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !c.CreatedAt.Equal(at) || c.ID != "u-1" {
		t.Fatalf("got %+v", c)
	}
}

func TestDecodeUserCursor_Rejects(t *testing.T) {
	for _, in := range []string{"", "%%%", "e30"} { // e30 = "{}"
		if _, err := DecodeUserCursor(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}
