package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetMissingKey(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set(KeyDeviceID, "device-abc"))
	got, err := s.Get(KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "device-abc", got)

	// Set replaces.
	require.NoError(t, s.Set(KeyDeviceID, "device-xyz"))
	got, err = s.Get(KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "device-xyz", got)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.Delete("k"))
	_, err := s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is fine.
	assert.NoError(t, s.Delete("k"))
}

func TestBoolDefaultsFalse(t *testing.T) {
	s := openTestStore(t)
	v, err := s.GetBool(KeyRatingAsked)
	require.NoError(t, err)
	assert.False(t, v)

	require.NoError(t, s.SetBool(KeyRatingAsked, true))
	v, err = s.GetBool(KeyRatingAsked)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestIntAndIncrement(t *testing.T) {
	s := openTestStore(t)
	n, err := s.GetInt(KeyUnlockCount)
	require.NoError(t, err)
	assert.Zero(t, n)

	for want := 1; want <= 3; want++ {
		got, err := s.Increment(KeyUnlockCount)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	require.NoError(t, s.SetInt(KeyUnlockCount, 10))
	n, err = s.GetInt(KeyUnlockCount)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestGetIntGarbage(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Set(KeyUnlockCount, "not-a-number"))
	_, err := s.GetInt(KeyUnlockCount)
	assert.Error(t, err)
}
