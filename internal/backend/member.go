package backend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/punishroulette/roulette/internal/models"
)

// InsertMember adds a user to a group. Callers pre-check membership; the
// unique (group_id, user_id) index is the backstop.
func (c *Client) InsertMember(ctx context.Context, groupID, userID uuid.UUID) error {
	q := `
	INSERT INTO members (id, group_id, user_id, has_completed_setup)
	VALUES ($1, $2, $3, false)
	`
	err := pgx.BeginTxFunc(ctx, c.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, uuid.New(), groupID, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TableMembers, Op: models.OpInsert, GroupID: groupID,
		NewRow: map[string]any{"user_id": userID.String()},
	})
	return nil
}

// IsMember checks whether the user already belongs to the group.
func (c *Client) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	q := `SELECT 1 FROM members WHERE group_id=$1 AND user_id=$2 LIMIT 1`
	var tmp int
	err := c.pool.QueryRow(ctx, q, groupID, userID).Scan(&tmp)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteMember removes the membership row. The published delete event names
// the removed user so other devices can run the self-removal check without a
// re-fetch.
func (c *Client) DeleteMember(ctx context.Context, groupID, userID uuid.UUID) error {
	q := `DELETE FROM members WHERE group_id=$1 AND user_id=$2`
	if _, err := c.pool.Exec(ctx, q, groupID, userID); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TableMembers, Op: models.OpDelete, GroupID: groupID,
		OldRow: map[string]any{"user_id": userID.String()},
	})
	return nil
}

// ListMembers returns the group's members joined with their user rows,
// oldest membership first.
func (c *Client) ListMembers(ctx context.Context, groupID uuid.UUID) ([]models.Member, error) {
	q := `
	SELECT m.id, m.group_id, m.user_id, m.has_completed_setup, m.joined_at,
	       ` + userColumns + `
	FROM members m
	JOIN users u ON u.id = m.user_id
	WHERE m.group_id=$1
	ORDER BY m.joined_at ASC
	`
	rows, err := c.pool.Query(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		var u models.User
		var punctuality string
		err := rows.Scan(
			&m.ID, &m.GroupID, &m.UserID, &m.HasCompletedSetup, &m.JoinedAt,
			&u.ID, &u.DeviceID, &u.Name, &u.AvatarInitials, &u.Instruments,
			&punctuality, &u.ShowedPaymentIntent, &u.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		u.Punctuality = models.Punctuality(punctuality)
		m.User = &u
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListMemberGroupIDs returns the ids of every group the user belongs to.
func (c *Client) ListMemberGroupIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	q := `SELECT group_id FROM members WHERE user_id=$1`
	rows, err := c.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountMembers returns the group's member count.
func (c *Client) CountMembers(ctx context.Context, groupID uuid.UUID) (int, error) {
	q := `SELECT COUNT(*) FROM members WHERE group_id=$1`
	var n int
	if err := c.pool.QueryRow(ctx, q, groupID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SetMemberSetupComplete flips has_completed_setup for one membership.
func (c *Client) SetMemberSetupComplete(ctx context.Context, groupID, userID uuid.UUID) error {
	q := `UPDATE members SET has_completed_setup=true WHERE group_id=$1 AND user_id=$2`
	tag, err := c.pool.Exec(ctx, q, groupID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TableMembers, Op: models.OpUpdate, GroupID: groupID,
		NewRow: map[string]any{"user_id": userID.String()},
	})
	return nil
}
