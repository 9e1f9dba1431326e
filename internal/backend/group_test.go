package backend

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInviteCodeShape(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := GenerateInviteCode()
		require.Len(t, code, inviteCodeLength)
		for _, r := range code {
			assert.Contains(t, inviteCodeAlphabet, string(r))
		}
		// The ambiguous characters must never appear.
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "1")
		assert.NotContains(t, code, "I")
	}
}

func TestGenerateUniqueCodeAvoidsTaken(t *testing.T) {
	taken := make(map[string]bool)
	exists := func(code string) (bool, error) { return taken[code], nil }

	// Every generated code lands outside the growing taken set.
	for i := 0; i < 1000; i++ {
		code, err := GenerateUniqueCode(exists)
		require.NoError(t, err)
		require.False(t, taken[code], "generated a code already in use: %s", code)
		taken[code] = true
	}
	assert.Len(t, taken, 1000)
}

func TestGenerateUniqueCodeSeededCollisions(t *testing.T) {
	// Seed a set the generator is guaranteed to collide with occasionally,
	// then confirm retries still land on a free code.
	taken := make(map[string]bool)
	for _, a := range inviteCodeAlphabet[:8] {
		for _, b := range inviteCodeAlphabet[:8] {
			taken[string(a)+string(b)+"AA"] = true
		}
	}
	exists := func(code string) (bool, error) { return taken[code], nil }

	for i := 0; i < 200; i++ {
		code, err := GenerateUniqueCode(exists)
		require.NoError(t, err)
		assert.False(t, taken[code])
	}
}

func TestGenerateUniqueCodePropagatesLookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := GenerateUniqueCode(func(string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}

func TestGenerateUniqueCodeExhaustion(t *testing.T) {
	calls := 0
	_, err := GenerateUniqueCode(func(string) (bool, error) {
		calls++
		return true, nil
	})
	require.Error(t, err)
	assert.Equal(t, maxInviteCodeAttempts, calls)
	assert.True(t, strings.Contains(err.Error(), "exhausted"))
}
