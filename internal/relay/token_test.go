package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punishroulette/roulette/internal/auth"
	"github.com/punishroulette/roulette/internal/backend"
	"github.com/punishroulette/roulette/internal/models"
)

type fakeUserLookup struct {
	users map[string]*models.User
}

func (f fakeUserLookup) GetUserByDeviceID(ctx context.Context, deviceID string) (*models.User, error) {
	u, ok := f.users[deviceID]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return u, nil
}

func TestTokenHandlerMintsVerifiableToken(t *testing.T) {
	auth.Init()
	user := &models.User{ID: uuid.New(), DeviceID: "dev-1", Name: "Alex"}
	handler := TokenHandler(logrus.New(), fakeUserLookup{users: map[string]*models.User{"dev-1": user}})

	srv := httptest.NewServer(handler)
	defer srv.Close()

	token, err := auth.RequestToken(context.Background(), srv.URL, "dev-1")
	require.NoError(t, err)

	sub, err := auth.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), sub)
}

func TestTokenHandlerUnknownDevice(t *testing.T) {
	auth.Init()
	handler := TokenHandler(logrus.New(), fakeUserLookup{users: map[string]*models.User{}})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	_, err := auth.RequestToken(context.Background(), srv.URL, "ghost")
	assert.Error(t, err)
}

func TestTokenHandlerRejectsGet(t *testing.T) {
	auth.Init()
	handler := TokenHandler(logrus.New(), fakeUserLookup{})
	req := httptest.NewRequest(http.MethodGet, "/token", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestTokenHandlerRejectsEmptyDevice(t *testing.T) {
	auth.Init()
	handler := TokenHandler(logrus.New(), fakeUserLookup{})
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"device_id":""}`))
	w := httptest.NewRecorder()
	handler(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
