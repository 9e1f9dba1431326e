package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punishroulette/roulette/internal/backend"
	"github.com/punishroulette/roulette/internal/kv"
	"github.com/punishroulette/roulette/internal/models"
)

type memLocal struct {
	data map[string]string
}

func newMemLocal() *memLocal { return &memLocal{data: make(map[string]string)} }

func (m *memLocal) Get(key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return v, nil
}

func (m *memLocal) Set(key, value string) error { m.data[key] = value; return nil }
func (m *memLocal) Delete(key string) error     { delete(m.data, key); return nil }

type fakeUsers struct {
	byDevice  map[string]*models.User
	upserts   int
	lookupErr error
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byDevice: make(map[string]*models.User)} }

func (f *fakeUsers) GetUserByDeviceID(ctx context.Context, deviceID string) (*models.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	u, ok := f.byDevice[deviceID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (f *fakeUsers) UpsertUserByDevice(ctx context.Context, u *models.User) (*models.User, error) {
	f.upserts++
	existing, ok := f.byDevice[u.DeviceID]
	out := *u
	if ok {
		out.ID = existing.ID
		if out.Punctuality == "" {
			out.Punctuality = existing.Punctuality
		}
	} else {
		out.ID = uuid.New()
	}
	f.byDevice[u.DeviceID] = &out
	copy := out
	return &copy, nil
}

func (f *fakeUsers) UpdateUserProfile(ctx context.Context, id uuid.UUID, name, avatarInitials string, instruments []string) (*models.User, error) {
	for _, u := range f.byDevice {
		if u.ID == id {
			u.Name = name
			u.AvatarInitials = avatarInitials
			u.Instruments = instruments
			out := *u
			return &out, nil
		}
	}
	return nil, backend.ErrNotFound
}

func (f *fakeUsers) SetPaymentIntent(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range f.byDevice {
		if u.ID == id {
			u.ShowedPaymentIntent = true
			out := *u
			return &out, nil
		}
	}
	return nil, backend.ErrNotFound
}

func TestResolveNoDeviceID(t *testing.T) {
	r := NewResolver(newMemLocal(), newFakeUsers(), nil)
	assert.Nil(t, r.Resolve(context.Background()))
	assert.Nil(t, r.User())
}

func TestResolveUnknownDevice(t *testing.T) {
	local := newMemLocal()
	local.Set(kv.KeyDeviceID, "stale-device")
	r := NewResolver(local, newFakeUsers(), nil)
	assert.Nil(t, r.Resolve(context.Background()))
}

func TestResolveBackendFailureIsNil(t *testing.T) {
	local := newMemLocal()
	local.Set(kv.KeyDeviceID, "dev-1")
	users := newFakeUsers()
	users.lookupErr = errors.New("timeout")
	r := NewResolver(local, users, nil)
	assert.Nil(t, r.Resolve(context.Background()))
}

func TestLoginMintsDeviceIDOnce(t *testing.T) {
	local := newMemLocal()
	users := newFakeUsers()
	r := NewResolver(local, users, nil)
	ctx := context.Background()

	first, err := r.Login(ctx, "Alex", []string{"guitar"})
	require.NoError(t, err)
	deviceID := local.data[kv.KeyDeviceID]
	require.NotEmpty(t, deviceID)

	second, err := r.Login(ctx, "Alex", []string{"guitar", "vocals"})
	require.NoError(t, err)
	assert.Equal(t, deviceID, local.data[kv.KeyDeviceID])
	assert.Equal(t, first.ID, second.ID, "same device, same user")
	assert.Equal(t, 2, users.upserts)
}

func TestLoginCarriesStoredPunctuality(t *testing.T) {
	local := newMemLocal()
	local.Set(kv.KeyPunctuality, "late")
	r := NewResolver(local, newFakeUsers(), nil)

	user, err := r.Login(context.Background(), "Sam", nil)
	require.NoError(t, err)
	assert.Equal(t, models.PunctualityLate, user.Punctuality)
}

func TestLoginThenResolve(t *testing.T) {
	local := newMemLocal()
	users := newFakeUsers()

	r1 := NewResolver(local, users, nil)
	logged, err := r1.Login(context.Background(), "Kim", []string{"drums"})
	require.NoError(t, err)

	// A fresh resolver on the same device finds the same user.
	r2 := NewResolver(local, users, nil)
	resolved := r2.Resolve(context.Background())
	require.NotNil(t, resolved)
	assert.Equal(t, logged.ID, resolved.ID)
}

func TestLoginErrorsWrapErrAuth(t *testing.T) {
	r := NewResolver(newMemLocal(), failingUsers{newFakeUsers()}, nil)
	_, err := r.Login(context.Background(), "X", nil)
	assert.ErrorIs(t, err, ErrAuth)
}

type failingUsers struct{ *fakeUsers }

func (failingUsers) UpsertUserByDevice(ctx context.Context, u *models.User) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func TestUpdateUser(t *testing.T) {
	local := newMemLocal()
	users := newFakeUsers()
	r := NewResolver(local, users, nil)
	_, err := r.Login(context.Background(), "Old Name", []string{"bass"})
	require.NoError(t, err)

	updated, err := r.UpdateUser(context.Background(), "New", []string{"bass", "vocals"})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)
	assert.Equal(t, []string{"bass", "vocals"}, updated.Instruments)
	assert.Equal(t, "New", r.User().Name)
}

func TestRecordPaymentIntentLatches(t *testing.T) {
	local := newMemLocal()
	users := newFakeUsers()
	r := NewResolver(local, users, nil)
	_, err := r.Login(context.Background(), "Pat", nil)
	require.NoError(t, err)

	r.RecordPaymentIntent(context.Background())
	require.True(t, r.User().ShowedPaymentIntent)

	// Second call is a no-op, never an error.
	r.RecordPaymentIntent(context.Background())
	assert.True(t, r.User().ShowedPaymentIntent)
}

func TestLogoutForgetsDevice(t *testing.T) {
	local := newMemLocal()
	r := NewResolver(local, newFakeUsers(), nil)
	_, err := r.Login(context.Background(), "Jo", nil)
	require.NoError(t, err)

	require.NoError(t, r.Logout())
	assert.Nil(t, r.User())
	_, err = local.Get(kv.KeyDeviceID)
	assert.ErrorIs(t, err, kv.ErrNotFound)
	assert.Nil(t, r.Resolve(context.Background()))
}

func TestDisplayInitials(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Bo", "Bo"},
		{"JohnDoe", "JohnDoe"},
		{"12345678", "12345678"},
		{"JonathanSmith", "JS"},
		{"Maximilian", "MA"},
		{"AlexanderTheGreatDrummer", "AT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DisplayInitials(tt.name), "name=%s", tt.name)
	}
}
