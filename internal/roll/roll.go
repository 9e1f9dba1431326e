// Package roll drives one draw for one late member: collect an optional wish,
// pick a punishment (AI or random), reveal it, then let the roller guess who
// wrote it. A Session is single-use and not safe for concurrent use; each
// draw creates its own.
package roll

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/punishroulette/roulette/internal/models"
	"github.com/punishroulette/roulette/internal/suggest"
)

// Phase is the session's position in the draw flow.
type Phase string

const (
	PhaseInput   Phase = "input"
	PhaseRolling Phase = "rolling"
	PhaseResult  Phase = "result"
	PhaseDone    Phase = "done"
)

// DefaultMinDuration is how long a roll takes to resolve even when the pick
// returns instantly. The draw should feel like a draw.
const DefaultMinDuration = 2500 * time.Millisecond

// PointsPerCorrectGuess is the fixed award for naming the right author.
// Display-only; nothing persists it.
const PointsPerCorrectGuess = 10

var (
	// ErrNoCandidates blocks a roll when no unused punishment targets the
	// late member.
	ErrNoCandidates = errors.New("roll: no unused punishments for this member")
	ErrWrongPhase   = errors.New("roll: operation not valid in current phase")
)

// Backend is the slice of the data API a draw touches. *backend.Client
// satisfies it.
type Backend interface {
	InsertRecord(ctx context.Context, r *models.PunishmentRecord) (*models.PunishmentRecord, error)
	MarkPunishmentUsed(ctx context.Context, id uuid.UUID) error
	UpdateRecordGuess(ctx context.Context, id uuid.UUID, guessedAuthorID uuid.UUID, correct bool) error
	CompleteRecord(ctx context.Context, id uuid.UUID) error
}

// Picker selects one punishment from a candidate list to match free-text
// intent. *suggest.Engine satisfies it.
type Picker interface {
	SuggestPunishment(ctx context.Context, candidates []models.Punishment, userMessage string) (suggest.PickResult, error)
}

// Input is what the roller provides before the draw.
type Input struct {
	// Wish is free text about the desired punishment tone. Empty means
	// random draw.
	Wish        string
	LateMinutes *int
	Mood        string
	Preference  string
}

// Outcome is the revealed draw.
type Outcome struct {
	Punishment models.Punishment
	// AIReason is set only when the AI chose; empty for random draws.
	AIReason string
	RecordID uuid.UUID
}

// GuessResult reports one author guess.
type GuessResult struct {
	Correct bool
	// Points awarded for display. Not persisted anywhere.
	Points int
}

// Session is one draw against one late member.
type Session struct {
	backend Backend
	picker  Picker
	log     *logrus.Logger

	// MinDuration is the perceived lower bound on the rolling phase.
	// Values below default are allowed for tests only in spirit; zero
	// means DefaultMinDuration.
	MinDuration time.Duration

	phase      Phase
	group      models.Group
	lateUserID uuid.UUID
	candidates []models.Punishment
	outcome    Outcome
}

// NewSession prepares a draw for lateUserID out of the group's punishment
// list. Used punishments and punishments targeting other members are
// excluded. Fails with ErrNoCandidates when nothing is drawable.
func NewSession(b Backend, p Picker, log *logrus.Logger, group models.Group, lateUserID uuid.UUID, punishments []models.Punishment) (*Session, error) {
	if log == nil {
		log = logrus.New()
	}
	var candidates []models.Punishment
	for _, pu := range punishments {
		if pu.TargetID == lateUserID && !pu.IsUsed {
			candidates = append(candidates, pu)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	return &Session{
		backend:     b,
		picker:      p,
		log:         log,
		MinDuration: DefaultMinDuration,
		phase:       PhaseInput,
		group:       group,
		lateUserID:  lateUserID,
		candidates:  candidates,
	}, nil
}

// Phase returns the session's current phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// Candidates returns the drawable punishments.
func (s *Session) Candidates() []models.Punishment {
	out := make([]models.Punishment, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// Roll performs the draw. With a wish and AI matching enabled on the group,
// the picker chooses; otherwise (or on picker failure) the choice is uniform
// random. The call does not return before MinDuration has elapsed. The
// punishment record is created and the punishment marked used before the
// result is revealed.
func (s *Session) Roll(ctx context.Context, in Input) (Outcome, error) {
	if s.phase != PhaseInput {
		return Outcome{}, ErrWrongPhase
	}
	s.phase = PhaseRolling
	started := time.Now()

	wish := strings.TrimSpace(in.Wish)
	chosen, aiReason := s.pick(ctx, wish)

	record, err := s.backend.InsertRecord(ctx, &models.PunishmentRecord{
		GroupID:        s.group.ID,
		PunishmentID:   chosen.ID,
		PunishedUserID: s.lateUserID,
		LateMinutes:    in.LateMinutes,
		Mood:           in.Mood,
		Preference:     in.Preference,
		UserMessage:    wish,
		AIReason:       aiReason,
	})
	if err != nil {
		s.phase = PhaseInput
		return Outcome{}, fmt.Errorf("failed to record draw: %w", err)
	}
	if err := s.backend.MarkPunishmentUsed(ctx, chosen.ID); err != nil {
		s.log.Warnf("failed to mark punishment %s used: %v", chosen.ID, err)
	}

	s.outcome = Outcome{Punishment: chosen, AIReason: aiReason, RecordID: record.ID}
	s.phase = PhaseResult

	if remaining := s.minDuration() - time.Since(started); remaining > 0 {
		select {
		case <-ctx.Done():
			// The draw already happened and is recorded; the result stays
			// retrievable via Outcome even though the reveal was cut short.
			return Outcome{}, ctx.Err()
		case <-time.After(remaining):
		}
	}
	return s.outcome, nil
}

func (s *Session) pick(ctx context.Context, wish string) (models.Punishment, string) {
	if wish != "" && s.group.AIMatchingEnabled && s.picker != nil {
		result, err := s.picker.SuggestPunishment(ctx, s.candidates, wish)
		if err == nil {
			return result.Punishment, result.Reason
		}
		s.log.Warnf("AI pick failed, drawing at random: %v", err)
	}
	return s.candidates[rand.Intn(len(s.candidates))], ""
}

func (s *Session) minDuration() time.Duration {
	if s.MinDuration > 0 {
		return s.MinDuration
	}
	return DefaultMinDuration
}

// Outcome returns the revealed draw. Valid from PhaseResult on.
func (s *Session) Outcome() (Outcome, error) {
	if s.phase != PhaseResult && s.phase != PhaseDone {
		return Outcome{}, ErrWrongPhase
	}
	return s.outcome, nil
}

// Guess records the roller's author guess and finishes the session.
// Correctness is a straight id comparison against the drawn punishment's
// author; a correct guess is worth PointsPerCorrectGuess for display.
func (s *Session) Guess(ctx context.Context, guessedAuthorID uuid.UUID) (GuessResult, error) {
	if s.phase != PhaseResult {
		return GuessResult{}, ErrWrongPhase
	}
	correct := guessedAuthorID == s.outcome.Punishment.AuthorID
	if err := s.backend.UpdateRecordGuess(ctx, s.outcome.RecordID, guessedAuthorID, correct); err != nil {
		return GuessResult{}, fmt.Errorf("failed to save guess: %w", err)
	}
	s.phase = PhaseDone

	res := GuessResult{Correct: correct}
	if correct {
		res.Points = PointsPerCorrectGuess
	}
	return res, nil
}

// Skip finishes the session without a guess.
func (s *Session) Skip(ctx context.Context) error {
	if s.phase != PhaseResult {
		return ErrWrongPhase
	}
	if err := s.backend.CompleteRecord(ctx, s.outcome.RecordID); err != nil {
		return fmt.Errorf("failed to complete draw record: %w", err)
	}
	s.phase = PhaseDone
	return nil
}

// GuessableMembers filters the member list down to valid guess targets.
// The roller guesses among the other members; "myself" is never an option.
func GuessableMembers(members []models.Member, rollerID uuid.UUID) []models.Member {
	var out []models.Member
	for _, m := range members {
		if m.UserID == rollerID {
			continue
		}
		out = append(out, m)
	}
	return out
}
