package backend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/punishroulette/roulette/internal/models"
)

const punishmentColumns = `
	p.id, p.group_id, p.author_id, p.target_id, p.title,
	COALESCE(p.description, ''), p.is_used, p.created_at
`

// InsertPunishment creates one punishment row and returns it.
func (c *Client) InsertPunishment(ctx context.Context, p *models.Punishment) (*models.Punishment, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	q := `
	INSERT INTO punishments (id, group_id, author_id, target_id, title, description)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
	RETURNING id, group_id, author_id, target_id, title, COALESCE(description, ''), is_used, created_at
	`
	var out models.Punishment
	err := c.pool.QueryRow(ctx, q,
		p.ID, p.GroupID, p.AuthorID, p.TargetID, p.Title, p.Description,
	).Scan(
		&out.ID, &out.GroupID, &out.AuthorID, &out.TargetID, &out.Title,
		&out.Description, &out.IsUsed, &out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert punishment: %w", err)
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TablePunishments, Op: models.OpInsert, GroupID: out.GroupID,
	})
	return &out, nil
}

// DeletePunishment removes one punishment row by id.
func (c *Client) DeletePunishment(ctx context.Context, id uuid.UUID) error {
	var groupID uuid.UUID
	err := c.pool.QueryRow(ctx, `DELETE FROM punishments WHERE id=$1 RETURNING group_id`, id).Scan(&groupID)
	if err != nil {
		return notFound(err)
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TablePunishments, Op: models.OpDelete, GroupID: groupID,
	})
	return nil
}

// ListPunishments returns the group's punishments joined with author and
// target users, most recently created first.
func (c *Client) ListPunishments(ctx context.Context, groupID uuid.UUID) ([]models.Punishment, error) {
	q := `
	SELECT ` + punishmentColumns + `,
	       a.id, a.name, a.instruments,
	       t.id, t.name, t.instruments
	FROM punishments p
	JOIN users a ON a.id = p.author_id
	JOIN users t ON t.id = p.target_id
	WHERE p.group_id=$1
	ORDER BY p.created_at DESC
	`
	rows, err := c.pool.Query(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var punishments []models.Punishment
	for rows.Next() {
		var p models.Punishment
		var author, target models.User
		err := rows.Scan(
			&p.ID, &p.GroupID, &p.AuthorID, &p.TargetID, &p.Title,
			&p.Description, &p.IsUsed, &p.CreatedAt,
			&author.ID, &author.Name, &author.Instruments,
			&target.ID, &target.Name, &target.Instruments,
		)
		if err != nil {
			return nil, err
		}
		p.Author = &author
		p.Target = &target
		punishments = append(punishments, p)
	}
	return punishments, rows.Err()
}

// CountPunishmentsByPair counts live punishments for one (author, target)
// pair inside a group; the session store checks it against the group cap.
func (c *Client) CountPunishmentsByPair(ctx context.Context, groupID, authorID, targetID uuid.UUID) (int, error) {
	q := `SELECT COUNT(*) FROM punishments WHERE group_id=$1 AND author_id=$2 AND target_id=$3`
	var n int
	if err := c.pool.QueryRow(ctx, q, groupID, authorID, targetID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// MarkPunishmentUsed flags a punishment as drawn.
func (c *Client) MarkPunishmentUsed(ctx context.Context, id uuid.UUID) error {
	var groupID uuid.UUID
	err := c.pool.QueryRow(ctx, `UPDATE punishments SET is_used=true WHERE id=$1 RETURNING group_id`, id).Scan(&groupID)
	if err != nil {
		return notFound(err)
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TablePunishments, Op: models.OpUpdate, GroupID: groupID,
	})
	return nil
}

const recordColumns = `
	r.id, r.group_id, r.punishment_id, r.punished_user_id,
	r.late_minutes, COALESCE(r.mood, ''), COALESCE(r.preference, ''),
	COALESCE(r.user_message, ''), COALESCE(r.ai_reason, ''),
	r.is_completed, r.guessed_author_id, r.guess_correct, r.created_at
`

func scanRecord(row pgx.Row) (*models.PunishmentRecord, error) {
	var r models.PunishmentRecord
	err := row.Scan(
		&r.ID, &r.GroupID, &r.PunishmentID, &r.PunishedUserID,
		&r.LateMinutes, &r.Mood, &r.Preference,
		&r.UserMessage, &r.AIReason,
		&r.IsCompleted, &r.GuessedAuthorID, &r.GuessCorrect, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertRecord creates the draw record at roll time.
func (c *Client) InsertRecord(ctx context.Context, r *models.PunishmentRecord) (*models.PunishmentRecord, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	q := `
	INSERT INTO records (
		id, group_id, punishment_id, punished_user_id,
		late_minutes, mood, preference, user_message, ai_reason
	)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), NULLIF($8,''), NULLIF($9,''))
	RETURNING id, group_id, punishment_id, punished_user_id,
	          late_minutes, COALESCE(mood, ''), COALESCE(preference, ''),
	          COALESCE(user_message, ''), COALESCE(ai_reason, ''),
	          is_completed, guessed_author_id, guess_correct, created_at
	`
	out, err := scanRecord(c.pool.QueryRow(ctx, q,
		r.ID, r.GroupID, r.PunishmentID, r.PunishedUserID,
		r.LateMinutes, r.Mood, r.Preference, r.UserMessage, r.AIReason,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TableRecords, Op: models.OpInsert, GroupID: out.GroupID,
	})
	return out, nil
}

// UpdateRecordGuess stores the guess outcome and completes the record.
func (c *Client) UpdateRecordGuess(ctx context.Context, id uuid.UUID, guessedAuthorID uuid.UUID, correct bool) error {
	q := `
	UPDATE records
	SET guessed_author_id=$1, guess_correct=$2, is_completed=true
	WHERE id=$3
	RETURNING group_id
	`
	var groupID uuid.UUID
	if err := c.pool.QueryRow(ctx, q, guessedAuthorID, correct, id).Scan(&groupID); err != nil {
		return notFound(err)
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TableRecords, Op: models.OpUpdate, GroupID: groupID,
	})
	return nil
}

// CompleteRecord closes a record without a guess (the skip path).
func (c *Client) CompleteRecord(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE records SET is_completed=true WHERE id=$1 RETURNING group_id`
	var groupID uuid.UUID
	if err := c.pool.QueryRow(ctx, q, id).Scan(&groupID); err != nil {
		return notFound(err)
	}
	c.publish(ctx, models.ChangeEvent{
		Table: models.TableRecords, Op: models.OpUpdate, GroupID: groupID,
	})
	return nil
}

// ListRecords returns the group's draw records joined with their punishment
// and punished user, most recent first.
func (c *Client) ListRecords(ctx context.Context, groupID uuid.UUID) ([]models.PunishmentRecord, error) {
	q := `
	SELECT ` + recordColumns + `,
	       ` + punishmentColumns + `,
	       u.id, u.name, u.instruments
	FROM records r
	JOIN punishments p ON p.id = r.punishment_id
	JOIN users u ON u.id = r.punished_user_id
	WHERE r.group_id=$1
	ORDER BY r.created_at DESC
	`
	rows, err := c.pool.Query(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.PunishmentRecord
	for rows.Next() {
		var r models.PunishmentRecord
		var p models.Punishment
		var u models.User
		err := rows.Scan(
			&r.ID, &r.GroupID, &r.PunishmentID, &r.PunishedUserID,
			&r.LateMinutes, &r.Mood, &r.Preference,
			&r.UserMessage, &r.AIReason,
			&r.IsCompleted, &r.GuessedAuthorID, &r.GuessCorrect, &r.CreatedAt,
			&p.ID, &p.GroupID, &p.AuthorID, &p.TargetID, &p.Title,
			&p.Description, &p.IsUsed, &p.CreatedAt,
			&u.ID, &u.Name, &u.Instruments,
		)
		if err != nil {
			return nil, err
		}
		r.Punishment = &p
		r.PunishedUser = &u
		records = append(records, r)
	}
	return records, rows.Err()
}
