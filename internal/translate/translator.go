// Package translate provides best-effort text translation with hard timeouts.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTimeout is returned when a translation does not finish within its deadline.
var ErrTimeout = errors.New("translation timed out")

// ErrDisabled is returned by a tripped Breaker.
var ErrDisabled = errors.New("translation disabled for this request")

// Translator translates text into a fixed target language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// NeedsTranslation reports whether text in language should be translated into target.
// Unknown or empty languages are never translated.
func NeedsTranslation(language, target string) bool {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" || lang == "unknown" {
		return false
	}
	if target == "" {
		target = "en"
	}
	return baseLanguage(lang) != baseLanguage(strings.ToLower(target))
}

func baseLanguage(code string) string {
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return code[:i]
	}
	return code
}

// Timed bounds every call of the wrapped translator by timeout.
// Deadline expiry is reported as ErrTimeout.
type Timed struct {
	next    Translator
	timeout time.Duration
}

// WithTimeout wraps next so that each Translate call is cancelled after timeout.
func WithTimeout(next Translator, timeout time.Duration) *Timed {
	return &Timed{next: next, timeout: timeout}
}

// Translate runs the wrapped translator under the configured deadline.
func (t *Timed) Translate(ctx context.Context, text string) (string, error) {
	if t.timeout <= 0 {
		return t.next.Translate(ctx, text)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		out, err := t.next.Translate(ctx, text)
		done <- result{out, err}
	}()
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, r.err)
		}
		return r.text, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, t.timeout)
		}
		return "", ctx.Err()
	}
}
