package translate

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
)

// Breaker disables translation for the rest of a request after the first timeout.
// Create one per request; it is safe for concurrent use.
type Breaker struct {
	next    Translator
	tripped atomic.Bool
	logger  *zap.Logger
}

// NewBreaker wraps next. logger may be nil.
func NewBreaker(next Translator, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{next: next, logger: logger}
}

// Translate forwards to the wrapped translator until a timeout is seen; afterwards it returns ErrDisabled.
// Other failures do not trip the breaker.
func (b *Breaker) Translate(ctx context.Context, text string) (string, error) {
	if b.tripped.Load() {
		return "", ErrDisabled
	}
	out, err := b.next.Translate(ctx, text)
	if err != nil && errors.Is(err, ErrTimeout) {
		if b.tripped.CompareAndSwap(false, true) {
			b.logger.Warn("translation timed out; disabling translation for this request", zap.Error(err))
		}
	}
	return out, err
}

// Tripped reports whether the breaker has disabled translation.
func (b *Breaker) Tripped() bool {
	return b.tripped.Load()
}
