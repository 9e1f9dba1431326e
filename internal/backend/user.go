package backend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/punishroulette/roulette/internal/models"
)

const userColumns = `
	id, device_id, name, COALESCE(avatar_initials, ''), instruments,
	COALESCE(punctuality, ''), showed_payment_intent, created_at
`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var punctuality string
	err := row.Scan(
		&u.ID, &u.DeviceID, &u.Name, &u.AvatarInitials, &u.Instruments,
		&punctuality, &u.ShowedPaymentIntent, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Punctuality = models.Punctuality(punctuality)
	return &u, nil
}

// GetUserByDeviceID looks up the one user row keyed by device identifier.
func (c *Client) GetUserByDeviceID(ctx context.Context, deviceID string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE device_id=$1`
	u, err := scanUser(c.pool.QueryRow(ctx, q, deviceID))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (c *Client) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	u, err := scanUser(c.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// UpsertUserByDevice inserts or updates the user row keyed by device_id, so
// each device maps to at most one user.
func (c *Client) UpsertUserByDevice(ctx context.Context, u *models.User) (*models.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	q := `
	INSERT INTO users (id, device_id, name, avatar_initials, instruments, punctuality)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
	ON CONFLICT (device_id) DO UPDATE
	SET name=EXCLUDED.name,
	    avatar_initials=EXCLUDED.avatar_initials,
	    instruments=EXCLUDED.instruments,
	    punctuality=COALESCE(EXCLUDED.punctuality, users.punctuality)
	RETURNING ` + userColumns
	out, err := scanUser(c.pool.QueryRow(ctx, q,
		u.ID, u.DeviceID, u.Name, u.AvatarInitials, u.Instruments, string(u.Punctuality),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return out, nil
}

// UpdateUserProfile replaces the mutable profile fields and returns the
// updated row.
func (c *Client) UpdateUserProfile(ctx context.Context, id uuid.UUID, name string, avatarInitials string, instruments []string) (*models.User, error) {
	q := `
	UPDATE users
	SET name=$1, avatar_initials=$2, instruments=$3
	WHERE id=$4
	RETURNING ` + userColumns
	u, err := scanUser(c.pool.QueryRow(ctx, q, name, avatarInitials, instruments, id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// SetPaymentIntent latches showed_payment_intent. One-way: never cleared.
func (c *Client) SetPaymentIntent(ctx context.Context, id uuid.UUID) (*models.User, error) {
	q := `
	UPDATE users
	SET showed_payment_intent=true
	WHERE id=$1
	RETURNING ` + userColumns
	u, err := scanUser(c.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}
