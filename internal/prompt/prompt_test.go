package prompt

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

type fakeMenu struct {
	calls  int
	choice int
	err    error
	seen   []string
}

func (m *fakeMenu) Choose(title string, options []string) (int, error) {
	m.calls++
	m.seen = options
	return m.choice, m.err
}

type account struct {
	index int
	alias string
}

func label(a account) string { return a.alias }

func TestSelectZeroAndOne(t *testing.T) {
	menu := &fakeMenu{}
	if _, ok, err := Select(menu, []account{}, label); ok || err != nil {
		t.Fatalf("expected nothing for empty list, got ok=%v err=%v", ok, err)
	}
	got, ok, err := Select(menu, []account{{0, "main"}}, label)
	if err != nil || !ok || got.alias != "main" {
		t.Fatalf("expected auto-select, got %+v ok=%v err=%v", got, ok, err)
	}
	if menu.calls != 0 {
		t.Fatalf("expected no prompt, got %d calls", menu.calls)
	}
}

func TestSelectManyReturnsChosenEntry(t *testing.T) {
	menu := &fakeMenu{choice: 1}
	items := []account{{0, "main"}, {1, "savings"}, {2, "nft"}}
	got, ok, err := Select(menu, items, label)
	if err != nil || !ok {
		t.Fatalf("Select failed: ok=%v err=%v", ok, err)
	}
	if got.alias != menu.seen[menu.choice] {
		t.Fatalf("expected alias %q to match menu entry, got %q", menu.seen[menu.choice], got.alias)
	}
	if !reflect.DeepEqual(menu.seen, []string{"main", "savings", "nft"}) {
		t.Fatalf("unexpected menu order: %v", menu.seen)
	}
}

func TestSelectCancelReturnsNothing(t *testing.T) {
	menu := &fakeMenu{choice: -1, err: ErrCancelled}
	_, ok, err := Select(menu, []account{{0, "a"}, {1, "b"}}, label)
	if ok || err != nil {
		t.Fatalf("expected cancel to yield nothing, got ok=%v err=%v", ok, err)
	}
	menu = &fakeMenu{choice: 7}
	if _, _, err := Select(menu, []account{{0, "a"}, {1, "b"}}, label); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestAcquirePasswordConfirmation(t *testing.T) {
	var out bytes.Buffer
	p := NewSecretPrompt(strings.NewReader("secret\nsecret\n"), &out)
	p.getenv = func(string) string { return "" }
	pw, err := p.AcquirePassword(false)
	if err != nil {
		t.Fatalf("AcquirePassword failed: %v", err)
	}
	if pw != "secret" {
		t.Fatalf("unexpected password: %q", pw)
	}
	if !strings.Contains(out.String(), "Confirm password") {
		t.Fatalf("expected confirmation prompt, got %q", out.String())
	}
	if strings.Contains(out.String(), "secret") {
		t.Fatal("password must not be echoed")
	}
}

func TestAcquirePasswordMismatchAndExistingVault(t *testing.T) {
	p := NewSecretPrompt(strings.NewReader("one\ntwo\n"), &bytes.Buffer{})
	p.getenv = func(string) string { return "" }
	if _, err := p.AcquirePassword(false); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}

	var out bytes.Buffer
	p = NewSecretPrompt(strings.NewReader("only-once\n"), &out)
	p.getenv = func(string) string { return "" }
	pw, err := p.AcquirePassword(true)
	if err != nil || pw != "only-once" {
		t.Fatalf("unexpected result: %q %v", pw, err)
	}
	if strings.Contains(out.String(), "Confirm") {
		t.Fatal("did not expect confirmation for existing vault")
	}
}

func TestAcquirePasswordFromEnv(t *testing.T) {
	t.Setenv(EnvPassword, "from-env")
	p := NewSecretPrompt(strings.NewReader(""), &bytes.Buffer{})
	pw, err := p.AcquirePassword(false)
	if err != nil || pw != "from-env" {
		t.Fatalf("expected env password, got %q %v", pw, err)
	}
	if p.Interactive() {
		t.Fatal("expected non-interactive prompt")
	}
}

func TestSecretPromptAndLinesShareInput(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("secret\nbalance\r\nexit"))
	var out bytes.Buffer
	p := NewSecretPrompt(in, &out)
	p.getenv = func(string) string { return "" }
	lines := NewLines(in, &out)

	password, err := p.AcquirePassword(true)
	if err != nil || password != "secret" {
		t.Fatalf("unexpected password %q err=%v", password, err)
	}
	for _, want := range []string{"balance", "exit"} {
		line, err := lines.ReadLine("> ")
		if err != nil || line != want {
			t.Fatalf("expected %q, got %q err=%v", want, line, err)
		}
	}
	if _, err := lines.ReadLine("> "); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestHistoryDeduplicatesAndLimits(t *testing.T) {
	h := NewHistory(3)
	for _, line := range []string{"balance", "sync", "balance", "  ", "addresses", "send a 1"} {
		h.Add(line)
	}
	want := []string{"balance", "addresses", "send a 1"}
	if got := h.Entries(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected history: %v", got)
	}
}
