// Package rating decides when to ask the user for a store review. The ask is
// tied to unlocking the punishment list, the one moment the app has clearly
// delivered value.
package rating

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Prompter shows the platform's in-app review dialog. The real implementation
// lives in the UI layer; the desktop CLI uses a stub.
type Prompter interface {
	// Available reports whether in-app review is supported here.
	Available() bool
	// Request shows the review dialog. The platform may decline silently.
	Request(ctx context.Context) error
}

// Counter is the persisted unlock tally plus the one-shot latch. *kv.Store
// satisfies it.
type Counter interface {
	Increment(key string) (int, error)
	GetBool(key string) (bool, error)
	SetBool(key string, value bool) error
}

const (
	unlockCountKey = "unlock_count"
	askedKey       = "rating_asked"

	firstThreshold = 1
	finalThreshold = 3
)

// Gate runs the rating-prompt policy.
type Gate struct {
	counter  Counter
	prompter Prompter
	log      *logrus.Logger
}

func NewGate(counter Counter, prompter Prompter, log *logrus.Logger) *Gate {
	if log == nil {
		log = logrus.New()
	}
	return &Gate{counter: counter, prompter: prompter, log: log}
}

// MaybeRequest increments the unlock counter and asks for a review when the
// count hits 1 or 3. After the final threshold passes the latch closes and no
// later unlock ever asks again. Returns whether a request was made. All
// failures degrade to "don't ask"; a review prompt is never worth an error.
func (g *Gate) MaybeRequest(ctx context.Context) bool {
	count, err := g.counter.Increment(unlockCountKey)
	if err != nil {
		g.log.Warnf("unlock count increment failed: %v", err)
		return false
	}

	asked, err := g.counter.GetBool(askedKey)
	if err != nil {
		g.log.Warnf("rating latch read failed: %v", err)
		return false
	}
	if asked {
		return false
	}

	if count != firstThreshold && count != finalThreshold {
		if count > finalThreshold {
			g.latch()
		}
		return false
	}

	if g.prompter == nil || !g.prompter.Available() {
		return false
	}
	if err := g.prompter.Request(ctx); err != nil {
		g.log.Warnf("rating request failed: %v", err)
		return false
	}

	g.log.Infof("rating requested at unlock %d", count)
	if count >= finalThreshold {
		g.latch()
	}
	return true
}

func (g *Gate) latch() {
	if err := g.counter.SetBool(askedKey, true); err != nil {
		g.log.Warnf("rating latch write failed: %v", err)
	}
}

// Reset clears the counter and latch. Test hook.
func (g *Gate) Reset() error {
	if err := g.counter.SetBool(askedKey, false); err != nil {
		return err
	}
	type setter interface {
		SetInt(key string, value int) error
	}
	if s, ok := g.counter.(setter); ok {
		return s.SetInt(unlockCountKey, 0)
	}
	return errors.New("counter does not support reset")
}
