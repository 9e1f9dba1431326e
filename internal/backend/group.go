package backend

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/punishroulette/roulette/internal/models"
)

// inviteCodeAlphabet excludes visually ambiguous characters (0/O, 1/I).
const inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// inviteCodeLength is fixed by the product: codes are short enough to shout
// across a rehearsal room.
const inviteCodeLength = 4

// maxInviteCodeAttempts bounds the uniqueness retry loop. 32^4 possible
// codes make exhaustion a pathological case, not an expected one.
const maxInviteCodeAttempts = 100

// GenerateInviteCode returns one random candidate code.
func GenerateInviteCode() string {
	var b strings.Builder
	for i := 0; i < inviteCodeLength; i++ {
		b.WriteByte(inviteCodeAlphabet[rand.Intn(len(inviteCodeAlphabet))])
	}
	return b.String()
}

// GenerateUniqueCode retries GenerateInviteCode until exists reports a miss.
// Factored out of the Client so the retry discipline is testable against a
// seeded set of taken codes.
func GenerateUniqueCode(exists func(code string) (bool, error)) (string, error) {
	for i := 0; i < maxInviteCodeAttempts; i++ {
		code := GenerateInviteCode()
		taken, err := exists(code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("exhausted %d invite code attempts", maxInviteCodeAttempts)
}

// GenerateUniqueInviteCode produces a code no active group is using.
func (c *Client) GenerateUniqueInviteCode(ctx context.Context) (string, error) {
	return GenerateUniqueCode(func(code string) (bool, error) {
		return c.InviteCodeExists(ctx, code)
	})
}

// InviteCodeExists checks a candidate code against active groups.
func (c *Client) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	q := `SELECT 1 FROM groups WHERE invite_code=$1 LIMIT 1`
	var tmp int
	err := c.pool.QueryRow(ctx, q, strings.ToUpper(code)).Scan(&tmp)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const groupColumns = `
	id, name, emoji, invite_code, admin_id, max_punishments_per_person,
	expires_at, allow_anonymous_unlock, ai_matching_enabled, is_band, created_at
`

func scanGroup(row pgx.Row) (*models.Group, error) {
	var g models.Group
	err := row.Scan(
		&g.ID, &g.Name, &g.Emoji, &g.InviteCode, &g.AdminID, &g.MaxPunishmentsPerPerson,
		&g.ExpiresAt, &g.AllowAnonymousUnlock, &g.AIMatchingEnabled, &g.IsBand, &g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// InsertGroup creates the group row and the admin's membership in one
// transaction, so a half-created group can never be observed.
func (c *Client) InsertGroup(ctx context.Context, g *models.Group) (*models.Group, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	var out *models.Group
	err := pgx.BeginTxFunc(ctx, c.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
		INSERT INTO groups (
			id, name, emoji, invite_code, admin_id,
			max_punishments_per_person, expires_at,
			allow_anonymous_unlock, ai_matching_enabled, is_band
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + groupColumns
		var scanErr error
		out, scanErr = scanGroup(tx.QueryRow(ctx, q,
			g.ID, g.Name, g.Emoji, strings.ToUpper(g.InviteCode), g.AdminID,
			g.MaxPunishmentsPerPerson, g.ExpiresAt,
			g.AllowAnonymousUnlock, g.AIMatchingEnabled, g.IsBand,
		))
		if scanErr != nil {
			return scanErr
		}
		_, scanErr = tx.Exec(ctx, `
			INSERT INTO members (id, group_id, user_id, has_completed_setup)
			VALUES ($1, $2, $3, false)`,
			uuid.New(), out.ID, g.AdminID,
		)
		return scanErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert group: %w", err)
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TableMembers, Op: models.OpInsert, GroupID: out.ID,
		NewRow: map[string]any{"user_id": g.AdminID.String()},
	})
	return out, nil
}

func (c *Client) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	q := `SELECT ` + groupColumns + ` FROM groups WHERE id=$1`
	g, err := scanGroup(c.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

// GetGroupByInviteCode resolves a code case-insensitively.
func (c *Client) GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	q := `SELECT ` + groupColumns + ` FROM groups WHERE invite_code=$1`
	g, err := scanGroup(c.pool.QueryRow(ctx, q, strings.ToUpper(code)))
	if err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

// GetGroupsByIDs fetches group rows for the given ids, newest first.
func (c *Client) GetGroupsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + groupColumns + ` FROM groups WHERE id = ANY($1) ORDER BY created_at DESC`
	rows, err := c.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

// GroupSettings carries the optional fields of a partial settings update.
// Nil pointers are left untouched.
type GroupSettings struct {
	AIMatchingEnabled       *bool
	MaxPunishmentsPerPerson *int
	ExpiresAt               **time.Time
	AllowAnonymousUnlock    *bool
}

// UpdateGroupSettings applies a partial update and returns the fresh row.
func (c *Client) UpdateGroupSettings(ctx context.Context, id uuid.UUID, s GroupSettings) (*models.Group, error) {
	sets := []string{}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if s.AIMatchingEnabled != nil {
		sets = append(sets, "ai_matching_enabled="+arg(*s.AIMatchingEnabled))
	}
	if s.MaxPunishmentsPerPerson != nil {
		sets = append(sets, "max_punishments_per_person="+arg(*s.MaxPunishmentsPerPerson))
	}
	if s.ExpiresAt != nil {
		sets = append(sets, "expires_at="+arg(*s.ExpiresAt))
	}
	if s.AllowAnonymousUnlock != nil {
		sets = append(sets, "allow_anonymous_unlock="+arg(*s.AllowAnonymousUnlock))
	}
	if len(sets) == 0 {
		return c.GetGroup(ctx, id)
	}

	q := `UPDATE groups SET ` + strings.Join(sets, ", ") +
		` WHERE id=` + arg(id) + ` RETURNING ` + groupColumns
	g, err := scanGroup(c.pool.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, notFound(err)
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TableGroups, Op: models.OpUpdate, GroupID: g.ID,
	})
	return g, nil
}

// UpdateGroupAdmin reassigns admin_id.
func (c *Client) UpdateGroupAdmin(ctx context.Context, groupID, newAdminID uuid.UUID) error {
	q := `UPDATE groups SET admin_id=$1 WHERE id=$2`
	tag, err := c.pool.Exec(ctx, q, newAdminID, groupID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TableGroups, Op: models.OpUpdate, GroupID: groupID,
	})
	return nil
}

// DeleteGroup removes the group and everything hanging off it. Called when
// the last member leaves.
func (c *Client) DeleteGroup(ctx context.Context, groupID uuid.UUID) error {
	err := pgx.BeginTxFunc(ctx, c.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, table := range []string{"unlocks", "suggestions", "records", "punishments", "members"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE group_id=$1`, groupID); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `DELETE FROM groups WHERE id=$1`, groupID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TableGroups, Op: models.OpDelete, GroupID: groupID,
	})
	return nil
}
