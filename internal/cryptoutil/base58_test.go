package cryptoutil

import (
	"bytes"
	"testing"
)

func TestBase58RoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte("hello world"),
		{0, 0, 1, 2, 3},
		{},
		bytes.Repeat([]byte{0xff}, 32),
	}
	for _, c := range cases {
		enc := Base58Encode(c)
		dec, err := Base58Decode(enc)
		if err != nil {
			t.Fatalf("decode(%q): %v", enc, err)
		}
		if !bytes.Equal(dec, c) && !(len(c) == 0 && len(dec) == 0) {
			t.Errorf("round trip mismatch: got %x want %x", dec, c)
		}
	}
}

func TestBase58DecodeRejectsInvalidChars(t *testing.T) {
	for _, bad := range []string{"0OIl", "has space", "has!bang"} {
		if _, err := Base58Decode(bad); err != ErrInvalidBase58 {
			t.Errorf("Base58Decode(%q) = %v, want ErrInvalidBase58", bad, err)
		}
	}
}

func TestBase58PreservesLeadingZeros(t *testing.T) {
	data := []byte{0, 0, 0, 5, 6}
	enc := Base58Encode(data)
	if enc[0] != '1' || enc[1] != '1' || enc[2] != '1' {
		t.Fatalf("expected three leading '1' chars, got %q", enc)
	}
	dec, err := Base58Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, data) {
		t.Errorf("got %x want %x", dec, data)
	}
}
