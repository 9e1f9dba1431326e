package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/punishroulette/roulette/internal/auth"
	"github.com/punishroulette/roulette/internal/backend"
	"github.com/punishroulette/roulette/internal/models"
)

// UserLookup resolves a device identifier to its user row.
// *backend.Client satisfies it.
type UserLookup interface {
	GetUserByDeviceID(ctx context.Context, deviceID string) (*models.User, error)
}

type tokenRequest struct {
	DeviceID string `json:"device_id"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// TokenHandler exchanges a known device id for a feed JWT. The signing key
// never leaves the relay; devices prove nothing beyond possession of a
// device id that maps to a user row, which matches the app's trust model
// (identity is the device).
func TokenHandler(logger *logrus.Logger, users UserLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
			http.Error(w, "invalid token request", http.StatusBadRequest)
			return
		}

		user, err := users.GetUserByDeviceID(r.Context(), req.DeviceID)
		if err != nil {
			if errors.Is(err, backend.ErrNotFound) {
				http.Error(w, "unknown device", http.StatusForbidden)
				return
			}
			logger.Warnf("token lookup failed: %v", err)
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}

		token, err := auth.CreateJWT(user.ID.String())
		if err != nil {
			logger.Warnf("token mint failed: %v", err)
			http.Error(w, "token mint failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{Token: token})
	}
}
