package out

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/model"
)

var smr = Unit{Ticker: "SMR", Decimals: 6}

func TestRenderJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	env := Success("account balance", BalanceView{Balance: model.Balance{BaseCoin: model.BaseCoinBalance{Total: 5, Available: 3}}, Unit: smr})
	if err := Render(&buf, env, ModeJSON); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	data := decoded["data"].(map[string]any)
	base := data["baseCoin"].(map[string]any)
	if base["total"].(float64) != 5 || base["available"].(float64) != 3 {
		t.Fatalf("unexpected balance payload: %s", buf.String())
	}
	if _, ok := data["Unit"]; ok {
		t.Fatalf("display unit must not leak into json: %s", buf.String())
	}
}

func TestRenderPlainBalance(t *testing.T) {
	var buf bytes.Buffer
	env := Success("account balance", BalanceView{Balance: model.Balance{BaseCoin: model.BaseCoinBalance{Total: 1_500_000, Available: 1_000_000}}, Unit: smr})
	if err := Render(&buf, env, ModePlain); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	got := buf.String()
	for _, want := range []string{"Total: 1.5 SMR", "Available: 1 SMR", "Native tokens: none", "NFTs: none"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output:\n%s", want, got)
		}
	}
}

func TestRenderPlainIsStable(t *testing.T) {
	addresses := AddressList{{Bech32: "rms1qabc", Index: 0}, {Bech32: "rms1qdef", Index: 1, Internal: true}}
	var first, second bytes.Buffer
	if err := Render(&first, Success("account addresses", addresses), ModePlain); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if err := Render(&second, Success("account addresses", addresses), ModePlain); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if first.String() != second.String() {
		t.Fatalf("expected identical output, got %q and %q", first.String(), second.String())
	}
	if !strings.Contains(first.String(), "--- Change address: true") {
		t.Fatalf("expected change address marker: %s", first.String())
	}
}

func TestRenderPlainFallback(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Success("x", []map[string]any{{"name": "x", "score": 42}}), ModePlain); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "name=x") {
		t.Fatalf("unexpected plain output: %s", buf.String())
	}
}

func TestPrinterErrorLine(t *testing.T) {
	var stdout, stderr bytes.Buffer
	p := NewPrinter(&stdout, &stderr, ModePlain, false)
	if err := p.Error("account faucet", clierr.New(clierr.CodeNoAddress, "generate an address first")); err != nil {
		t.Fatalf("Error failed: %v", err)
	}
	if got := stderr.String(); got != "ERROR: generate an address first\n" {
		t.Fatalf("unexpected error line: %q", got)
	}
	if stdout.Len() != 0 {
		t.Fatalf("expected nothing on stdout, got %q", stdout.String())
	}
}

func TestPrinterJSONError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	p := NewPrinter(&stdout, &stderr, ModeJSON, false)
	if err := p.Error("account send", errors.New("boom")); err != nil {
		t.Fatalf("Error failed: %v", err)
	}
	var env model.Envelope
	if err := json.Unmarshal(stderr.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Error == nil || env.Error.Type != "internal_error" || env.Error.Code != 1 {
		t.Fatalf("unexpected error envelope: %+v", env)
	}
}

func TestMnemonicBanner(t *testing.T) {
	lines := MnemonicView{Mnemonic: "word word"}.PlainLines()
	if lines[2] != mnemonicBanner || lines[len(lines)-1] != "Mnemonic stored successfully" {
		t.Fatalf("unexpected banner layout: %v", lines)
	}
}
