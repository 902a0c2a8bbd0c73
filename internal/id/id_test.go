package id

import (
	"strings"
	"testing"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
)

func TestParseTokenIDAcceptsPrefixedAndBare(t *testing.T) {
	raw := "08" + strings.Repeat("ab", 37)
	withPrefix, err := ParseTokenID("0x" + raw)
	if err != nil {
		t.Fatalf("ParseTokenID(prefixed) failed: %v", err)
	}
	bare, err := ParseTokenID(strings.ToUpper(raw))
	if err != nil {
		t.Fatalf("ParseTokenID(bare) failed: %v", err)
	}
	if withPrefix != bare {
		t.Fatalf("expected equal ids, got %s and %s", withPrefix, bare)
	}
	if withPrefix.String() != "0x"+raw {
		t.Fatalf("unexpected string form: %s", withPrefix.String())
	}
}

func TestParseNftIDRejectsWrongLength(t *testing.T) {
	_, err := ParseNftID("0x" + strings.Repeat("00", 31))
	if err == nil {
		t.Fatal("expected length error")
	}
	if !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if _, err := ParseNftID("0xzz"); err == nil {
		t.Fatal("expected hex error")
	}
}

func TestParseBytes(t *testing.T) {
	buf, err := ParseBytes("0x68656c6c6f")
	if err != nil {
		t.Fatalf("ParseBytes(hex) failed: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("unexpected decode: %q", buf)
	}
	buf, err = ParseBytes("my token")
	if err != nil || string(buf) != "my token" {
		t.Fatalf("unexpected text bytes: %q err=%v", buf, err)
	}
	if buf, _ := ParseBytes(""); buf != nil {
		t.Fatalf("expected nil for empty input, got %q", buf)
	}
}
