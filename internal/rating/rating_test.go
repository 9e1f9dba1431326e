package rating

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCounter is an in-memory stand-in for the sqlite kv store.
type memCounter struct {
	ints  map[string]int
	bools map[string]bool
	fail  bool
}

func newMemCounter() *memCounter {
	return &memCounter{ints: make(map[string]int), bools: make(map[string]bool)}
}

func (m *memCounter) Increment(key string) (int, error) {
	if m.fail {
		return 0, errors.New("disk full")
	}
	m.ints[key]++
	return m.ints[key], nil
}

func (m *memCounter) GetBool(key string) (bool, error)     { return m.bools[key], nil }
func (m *memCounter) SetBool(key string, value bool) error { m.bools[key] = value; return nil }
func (m *memCounter) SetInt(key string, value int) error   { m.ints[key] = value; return nil }

type recordingPrompter struct {
	available bool
	requests  int
	err       error
}

func (p *recordingPrompter) Available() bool { return p.available }

func (p *recordingPrompter) Request(context.Context) error {
	p.requests++
	return p.err
}

func TestRequestsAtFirstAndThirdUnlockOnly(t *testing.T) {
	counter := newMemCounter()
	prompter := &recordingPrompter{available: true}
	g := NewGate(counter, prompter, nil)
	ctx := context.Background()

	fired := []bool{}
	for i := 0; i < 4; i++ {
		fired = append(fired, g.MaybeRequest(ctx))
	}

	assert.Equal(t, []bool{true, false, true, false}, fired)
	assert.Equal(t, 2, prompter.requests)
}

func TestLatchStopsAllLaterRequests(t *testing.T) {
	counter := newMemCounter()
	prompter := &recordingPrompter{available: true}
	g := NewGate(counter, prompter, nil)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		g.MaybeRequest(ctx)
	}
	assert.Equal(t, 2, prompter.requests)
	assert.True(t, counter.bools[askedKey])
}

func TestCounterKeepsAdvancingWhileLatched(t *testing.T) {
	counter := newMemCounter()
	g := NewGate(counter, &recordingPrompter{available: true}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g.MaybeRequest(ctx)
	}
	assert.Equal(t, 5, counter.ints[unlockCountKey])
}

func TestUnavailablePrompterNeverLatches(t *testing.T) {
	counter := newMemCounter()
	prompter := &recordingPrompter{available: false}
	g := NewGate(counter, prompter, nil)
	ctx := context.Background()

	assert.False(t, g.MaybeRequest(ctx))
	assert.Equal(t, 0, prompter.requests)
	assert.False(t, counter.bools[askedKey])
}

func TestPrompterErrorDoesNotLatch(t *testing.T) {
	counter := newMemCounter()
	prompter := &recordingPrompter{available: true, err: errors.New("store closed")}
	g := NewGate(counter, prompter, nil)
	ctx := context.Background()

	assert.False(t, g.MaybeRequest(ctx))
	assert.Equal(t, 1, prompter.requests)

	// The third unlock gets another shot.
	prompter.err = nil
	g.MaybeRequest(ctx)
	assert.True(t, g.MaybeRequest(ctx))
}

func TestCounterFailureDegradesToSilence(t *testing.T) {
	counter := newMemCounter()
	counter.fail = true
	prompter := &recordingPrompter{available: true}
	g := NewGate(counter, prompter, nil)

	assert.False(t, g.MaybeRequest(context.Background()))
	assert.Equal(t, 0, prompter.requests)
}

func TestReset(t *testing.T) {
	counter := newMemCounter()
	g := NewGate(counter, &recordingPrompter{available: true}, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		g.MaybeRequest(ctx)
	}
	require.NoError(t, g.Reset())
	assert.Equal(t, 0, counter.ints[unlockCountKey])
	assert.False(t, counter.bools[askedKey])
	assert.True(t, g.MaybeRequest(ctx))
}
