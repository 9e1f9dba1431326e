package models

import (
	"time"

	"github.com/google/uuid"
)

// Punctuality is the user's self-reported habit, collected during onboarding.
type Punctuality string

const (
	PunctualityPunctual Punctuality = "punctual"
	PunctualityLate     Punctuality = "late"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	DeviceID       string    `json:"device_id"`
	Name           string    `json:"name"`
	AvatarInitials string    `json:"avatar_initials"`
	Instruments    []string  `json:"instruments"`
	// Punctuality is empty when the user skipped the onboarding question.
	Punctuality         Punctuality `json:"punctuality,omitempty"`
	ShowedPaymentIntent bool        `json:"showed_payment_intent"`
	CreatedAt           time.Time   `json:"created_at"`
}

type Group struct {
	ID                      uuid.UUID  `json:"id"`
	Name                    string     `json:"name"`
	Emoji                   string     `json:"emoji"`
	InviteCode              string     `json:"invite_code"`
	AdminID                 uuid.UUID  `json:"admin_id"`
	MaxPunishmentsPerPerson int        `json:"max_punishments_per_person"`
	ExpiresAt               *time.Time `json:"expires_at"`
	AllowAnonymousUnlock    bool       `json:"allow_anonymous_unlock"`
	AIMatchingEnabled       bool       `json:"ai_matching_enabled"`
	IsBand                  bool       `json:"is_band"`
	CreatedAt               time.Time  `json:"created_at"`
}

// Member joins a User to a Group. Unique per (GroupID, UserID).
type Member struct {
	ID                uuid.UUID `json:"id"`
	GroupID           uuid.UUID `json:"group_id"`
	UserID            uuid.UUID `json:"user_id"`
	HasCompletedSetup bool      `json:"has_completed_setup"`
	JoinedAt          time.Time `json:"joined_at"`

	// User is the joined user row, populated by member loads.
	User *User `json:"user,omitempty"`
}

type Punishment struct {
	ID          uuid.UUID `json:"id"`
	GroupID     uuid.UUID `json:"group_id"`
	AuthorID    uuid.UUID `json:"author_id"`
	TargetID    uuid.UUID `json:"target_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	IsUsed      bool      `json:"is_used"`
	CreatedAt   time.Time `json:"created_at"`

	Author *User `json:"author,omitempty"`
	Target *User `json:"target,omitempty"`
}

// PunishmentRecord is one completed (or in-progress) draw.
type PunishmentRecord struct {
	ID              uuid.UUID  `json:"id"`
	GroupID         uuid.UUID  `json:"group_id"`
	PunishmentID    uuid.UUID  `json:"punishment_id"`
	PunishedUserID  uuid.UUID  `json:"punished_user_id"`
	LateMinutes     *int       `json:"late_minutes"`
	Mood            string     `json:"mood,omitempty"`
	Preference      string     `json:"preference,omitempty"`
	UserMessage     string     `json:"user_message,omitempty"`
	AIReason        string     `json:"ai_reason,omitempty"`
	IsCompleted     bool       `json:"is_completed"`
	GuessedAuthorID *uuid.UUID `json:"guessed_author_id"`
	GuessCorrect    *bool      `json:"guess_correct"`
	CreatedAt       time.Time  `json:"created_at"`

	Punishment   *Punishment `json:"punishment,omitempty"`
	PunishedUser *User       `json:"punished_user,omitempty"`
}

// AISuggestion is an ephemeral per-(group, target) cache entry. Not
// authoritative; regenerated at will.
type AISuggestion struct {
	ID          uuid.UUID `json:"id"`
	GroupID     uuid.UUID `json:"group_id"`
	TargetID    uuid.UUID `json:"target_id"`
	Suggestion  string    `json:"suggestion"`
	Reason      string    `json:"reason,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// UnlockRecord marks that a user paid to reveal authorship for a group.
// Presence is a boolean gate, nothing more.
type UnlockRecord struct {
	ID         uuid.UUID `json:"id"`
	GroupID    uuid.UUID `json:"group_id"`
	UserID     uuid.UUID `json:"user_id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}
