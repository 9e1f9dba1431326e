// Package identity maps a device to its user. There are no accounts and no
// passwords: the first login mints a device id, stores it locally, and upserts
// a user row keyed on it. Every later launch resolves the same user from the
// stored id.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/punishroulette/roulette/internal/backend"
	"github.com/punishroulette/roulette/internal/kv"
	"github.com/punishroulette/roulette/internal/models"
)

// ErrAuth wraps all login failures.
var ErrAuth = errors.New("login failed")

const (
	resolveTimeout = 15 * time.Second
	loginTimeout   = 30 * time.Second
	updateTimeout  = 10 * time.Second
)

// Local is the slice of device persistence the resolver needs.
type Local interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Users is the slice of the backend the resolver needs. *backend.Client
// satisfies it.
type Users interface {
	GetUserByDeviceID(ctx context.Context, deviceID string) (*models.User, error)
	UpsertUserByDevice(ctx context.Context, u *models.User) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id uuid.UUID, name, avatarInitials string, instruments []string) (*models.User, error)
	SetPaymentIntent(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Resolver owns the device's current user.
type Resolver struct {
	local Local
	users Users
	log   *logrus.Logger

	mu   sync.Mutex
	user *models.User
}

func NewResolver(local Local, users Users, log *logrus.Logger) *Resolver {
	if log == nil {
		log = logrus.New()
	}
	return &Resolver{local: local, users: users, log: log}
}

// User returns the resolved user, or nil before Resolve/Login succeed.
func (r *Resolver) User() *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.user
}

func (r *Resolver) setUser(u *models.User) {
	r.mu.Lock()
	r.user = u
	r.mu.Unlock()
}

// Resolve loads the stored device id and looks up its user. Every failure
// path resolves to "no user": a missing id, an unknown device, a slow or
// unreachable backend. The caller shows the login screen and life goes on.
func (r *Resolver) Resolve(ctx context.Context) *models.User {
	deviceID, err := r.local.Get(kv.KeyDeviceID)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			r.log.Warnf("device id read failed: %v", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	user, err := r.users.GetUserByDeviceID(ctx, deviceID)
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			r.log.Warnf("user lookup failed: %v", err)
		}
		return nil
	}
	r.setUser(user)
	return user
}

// Login creates or updates the user for this device. The device id is minted
// on first login and reused forever after. Punctuality captured during
// onboarding, if any, rides along on the upsert.
func (r *Resolver) Login(ctx context.Context, name string, instruments []string) (*models.User, error) {
	deviceID, err := r.local.Get(kv.KeyDeviceID)
	if errors.Is(err, kv.ErrNotFound) {
		deviceID = uuid.NewString()
		if err := r.local.Set(kv.KeyDeviceID, deviceID); err != nil {
			return nil, fmt.Errorf("%w: persisting device id: %v", ErrAuth, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: reading device id: %v", ErrAuth, err)
	}

	punctuality, err := r.local.Get(kv.KeyPunctuality)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		r.log.Warnf("punctuality read failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	user, err := r.users.UpsertUserByDevice(ctx, &models.User{
		DeviceID:       deviceID,
		Name:           name,
		AvatarInitials: DisplayInitials(name),
		Instruments:    instruments,
		Punctuality:    models.Punctuality(punctuality),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	r.setUser(user)
	return user, nil
}

// UpdateUser replaces the profile fields of the current user.
func (r *Resolver) UpdateUser(ctx context.Context, name string, instruments []string) (*models.User, error) {
	current := r.User()
	if current == nil {
		return nil, errors.New("no user")
	}

	ctx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	user, err := r.users.UpdateUserProfile(ctx, current.ID, name, DisplayInitials(name), instruments)
	if err != nil {
		return nil, err
	}
	r.setUser(user)
	return user, nil
}

// RecordPaymentIntent latches the "tapped the pay button once" flag.
// Best-effort: failures are logged, never surfaced, and a latched flag is
// never re-sent.
func (r *Resolver) RecordPaymentIntent(ctx context.Context) {
	current := r.User()
	if current == nil || current.ShowedPaymentIntent {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	user, err := r.users.SetPaymentIntent(ctx, current.ID)
	if err != nil {
		r.log.Warnf("payment intent record failed: %v", err)
		return
	}
	r.setUser(user)
}

// Logout forgets the device id and the in-memory user. The backend row
// remains; a fresh login mints a new device id and therefore a new user.
func (r *Resolver) Logout() error {
	if err := r.local.Delete(kv.KeyDeviceID); err != nil {
		return err
	}
	r.setUser(nil)
	return nil
}

// DisplayInitials derives the avatar text from a name. Short names show
// verbatim; longer ones collapse to a two-letter abbreviation taken from
// camel-case word starts, falling back to the first two characters.
func DisplayInitials(name string) string {
	runes := []rune(name)
	if len(runes) <= 8 {
		return name
	}

	var initials []rune
	for i, r := range runes {
		if i == 0 || unicode.IsUpper(r) {
			initials = append(initials, r)
		}
	}
	abbrev := strings.ToUpper(string(initials))
	if len(abbrev) >= 2 {
		return string([]rune(abbrev)[:2])
	}
	return strings.ToUpper(string(runes[:2]))
}
