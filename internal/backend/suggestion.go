package backend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/punishroulette/roulette/internal/models"
)

// ListSuggestions returns the cached suggestions for one target in a group,
// most recently generated first.
func (c *Client) ListSuggestions(ctx context.Context, groupID, targetID uuid.UUID) ([]models.AISuggestion, error) {
	q := `
	SELECT id, group_id, target_id, suggestion, COALESCE(reason, ''), generated_at
	FROM suggestions
	WHERE group_id=$1 AND target_id=$2
	ORDER BY generated_at DESC
	`
	rows, err := c.pool.Query(ctx, q, groupID, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suggestions []models.AISuggestion
	for rows.Next() {
		var s models.AISuggestion
		if err := rows.Scan(&s.ID, &s.GroupID, &s.TargetID, &s.Suggestion, &s.Reason, &s.GeneratedAt); err != nil {
			return nil, err
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, rows.Err()
}

// ReplaceSuggestions swaps the target's cached suggestions for a fresh set in
// one transaction and returns the inserted rows. The cache is not
// authoritative, so wholesale replacement is fine.
func (c *Client) ReplaceSuggestions(ctx context.Context, groupID, targetID uuid.UUID, suggestions []models.AISuggestion) ([]models.AISuggestion, error) {
	var out []models.AISuggestion
	err := pgx.BeginTxFunc(ctx, c.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM suggestions WHERE group_id=$1 AND target_id=$2`, groupID, targetID); err != nil {
			return err
		}
		q := `
		INSERT INTO suggestions (id, group_id, target_id, suggestion, reason)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, group_id, target_id, suggestion, COALESCE(reason, ''), generated_at
		`
		for _, s := range suggestions {
			var row models.AISuggestion
			err := tx.QueryRow(ctx, q, uuid.New(), groupID, targetID, s.Suggestion, s.Reason).Scan(
				&row.ID, &row.GroupID, &row.TargetID, &row.Suggestion, &row.Reason, &row.GeneratedAt,
			)
			if err != nil {
				return err
			}
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replace suggestions: %w", err)
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TableSuggestions, Op: models.OpInsert, GroupID: groupID,
	})
	return out, nil
}

// HasUnlock reports whether an unlock record exists for (group, user).
func (c *Client) HasUnlock(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	q := `SELECT 1 FROM unlocks WHERE group_id=$1 AND user_id=$2 LIMIT 1`
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

// InsertUnlock records a paid authorship reveal.
func (c *Client) InsertUnlock(ctx context.Context, groupID, userID uuid.UUID) error {
	q := `INSERT INTO unlocks (id, group_id, user_id) VALUES ($1, $2, $3)`
	if _, err := c.pool.Exec(ctx, q, uuid.New(), groupID, userID); err != nil {
		return fmt.Errorf("failed to insert unlock: %w", err)
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TableUnlocks, Op: models.OpInsert, GroupID: groupID,
	})
	return nil
}
