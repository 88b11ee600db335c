package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTranslator struct {
	calls atomic.Int32
	fn    func(ctx context.Context, text string) (string, error)
}

func (f *fakeTranslator) Translate(ctx context.Context, text string) (string, error) {
	f.calls.Add(1)
	return f.fn(ctx, text)
}

func TestNeedsTranslation(t *testing.T) {
	tests := []struct {
		lang, target string
		want         bool
	}{
		{"hi", "en", true},
		{"en", "en", false},
		{"en-US", "en", false},
		{"EN", "en", false},
		{"", "en", false},
		{"unknown", "en", false},
		{"es", "", true},
		{"pt_BR", "pt", false},
	}
	for _, tt := range tests {
		if got := NeedsTranslation(tt.lang, tt.target); got != tt.want {
			t.Errorf("NeedsTranslation(%q, %q) = %v, want %v", tt.lang, tt.target, got, tt.want)
		}
	}
}

func TestBreaker_TripsOnTimeoutOnly(t *testing.T) {
	var fail atomic.Value
	fail.Store("")
	inner := &fakeTranslator{fn: func(ctx context.Context, text string) (string, error) {
		switch fail.Load().(string) {
		case "timeout":
			return "", fmt.Errorf("wrapped: %w", ErrTimeout)
		case "other":
			return "", errors.New("boom")
		}
		return "T:" + text, nil
	}}
	b := NewBreaker(inner, nil)
	ctx := context.Background()

	if out, err := b.Translate(ctx, "a"); err != nil || out != "T:a" {
		t.Fatalf("got %q, %v", out, err)
	}
	fail.Store("other")
	if _, err := b.Translate(ctx, "b"); err == nil {
		t.Fatal("expected error")
	}
	if b.Tripped() {
		t.Fatal("non-timeout error must not trip the breaker")
	}
	fail.Store("timeout")
	if _, err := b.Translate(ctx, "c"); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !b.Tripped() {
		t.Fatal("expected breaker to trip")
	}
	fail.Store("")
	before := inner.calls.Load()
	if _, err := b.Translate(ctx, "d"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if inner.calls.Load() != before {
		t.Error("tripped breaker must not call the wrapped translator")
	}
}

func TestTimed_ReportsTimeout(t *testing.T) {
	slow := &fakeTranslator{fn: func(ctx context.Context, text string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	start := time.Now()
	_, err := WithTimeout(slow, 50*time.Millisecond).Translate(context.Background(), "x")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout took too long")
	}

	fast := &fakeTranslator{fn: func(ctx context.Context, text string) (string, error) { return "ok", nil }}
	out, err := WithTimeout(fast, time.Second).Translate(context.Background(), "x")
	if err != nil || out != "ok" {
		t.Errorf("got %q, %v", out, err)
	}
}

func TestGoogle_Translate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.Form.Get("client") != "gtx" || r.Form.Get("tl") != "en" {
			t.Errorf("unexpected form: %v", r.Form)
		}
		if r.Form.Get("q") != "नमस्ते दुनिया" {
			t.Errorf("q = %q", r.Form.Get("q"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[[["Hello ","नमस्ते ",null,null,1],["world","दुनिया",null,null,1]],null,"hi"]`)
	}))
	defer srv.Close()

	g := NewGoogle(srv.URL, "en", srv.Client())
	out, err := g.Translate(context.Background(), "नमस्ते दुनिया")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hello world" {
		t.Errorf("got %q", out)
	}
}

func TestGoogle_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	if _, err := NewGoogle(srv.URL, "en", srv.Client()).Translate(context.Background(), "hola"); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestGoogle_BlankTextSkipsRequest(t *testing.T) {
	g := NewGoogle("http://127.0.0.1:1", "en", nil)
	out, err := g.Translate(context.Background(), "   ")
	if err != nil || out != "   " {
		t.Errorf("got %q, %v", out, err)
	}
}

func TestRunWorker(t *testing.T) {
	upper := &fakeTranslator{fn: func(ctx context.Context, text string) (string, error) {
		return strings.ToUpper(text), nil
	}}
	var out strings.Builder
	if err := RunWorker(context.Background(), upper, strings.NewReader("hola"), &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "HOLA" {
		t.Errorf("got %q", out.String())
	}
}

// TestHelperProcess is not a real test; it is the worker body executed by the Process tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("YTRAG_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("YTRAG_HELPER_MODE") {
	case "sleep":
		time.Sleep(10 * time.Second)
	case "fail":
		fmt.Fprint(os.Stderr, "worker exploded")
		os.Exit(3)
	default:
		data, _ := io.ReadAll(os.Stdin)
		fmt.Print(strings.ToUpper(string(data)))
	}
	os.Exit(0)
}

func helperProcess(mode string, timeout time.Duration) *Process {
	return NewProcess(os.Args[0], []string{"-test.run=TestHelperProcess", "--"}, timeout).
		WithEnv("YTRAG_WANT_HELPER_PROCESS=1", "YTRAG_HELPER_MODE="+mode)
}

func TestProcess_Translate(t *testing.T) {
	out, err := helperProcess("upper", 10*time.Second).Translate(context.Background(), "hola mundo")
	if err != nil {
		t.Fatal(err)
	}
	if out != "HOLA MUNDO" {
		t.Errorf("got %q", out)
	}
}

func TestProcess_KilledOnTimeout(t *testing.T) {
	start := time.Now()
	_, err := helperProcess("sleep", 200*time.Millisecond).Translate(context.Background(), "x")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("worker was not killed promptly (%s)", elapsed)
	}
}

func TestProcess_WorkerFailure(t *testing.T) {
	_, err := helperProcess("fail", 10*time.Second).Translate(context.Background(), "x")
	if err == nil || errors.Is(err, ErrTimeout) {
		t.Fatalf("expected worker failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "worker exploded") {
		t.Errorf("stderr not surfaced: %v", err)
	}
}
