package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/punishroulette/roulette/internal/models"
)

func TestSelfRemoval(t *testing.T) {
	localID := uuid.New()
	otherID := uuid.New()

	tests := []struct {
		name           string
		ev             models.ChangeEvent
		localID        uuid.UUID
		wantRemoved    bool
		wantConclusive bool
	}{
		{
			name:           "payload names local user",
			ev:             models.ChangeEvent{Table: models.TableMembers, Op: models.OpDelete, OldRow: map[string]any{"user_id": localID.String()}},
			localID:        localID,
			wantRemoved:    true,
			wantConclusive: true,
		},
		{
			name:           "payload names other user",
			ev:             models.ChangeEvent{Table: models.TableMembers, Op: models.OpDelete, OldRow: map[string]any{"user_id": otherID.String()}},
			localID:        localID,
			wantRemoved:    false,
			wantConclusive: true,
		},
		{
			name:           "delete without payload is inconclusive",
			ev:             models.ChangeEvent{Table: models.TableMembers, Op: models.OpDelete},
			localID:        localID,
			wantRemoved:    false,
			wantConclusive: false,
		},
		{
			name:           "malformed user id is inconclusive",
			ev:             models.ChangeEvent{Table: models.TableMembers, Op: models.OpDelete, OldRow: map[string]any{"user_id": "not-a-uuid"}},
			localID:        localID,
			wantRemoved:    false,
			wantConclusive: false,
		},
		{
			name:           "insert is never a removal",
			ev:             models.ChangeEvent{Table: models.TableMembers, Op: models.OpInsert},
			localID:        localID,
			wantRemoved:    false,
			wantConclusive: true,
		},
		{
			name:           "other table is never a removal",
			ev:             models.ChangeEvent{Table: models.TablePunishments, Op: models.OpDelete},
			localID:        localID,
			wantRemoved:    false,
			wantConclusive: true,
		},
		{
			name:           "unknown local user",
			ev:             models.ChangeEvent{Table: models.TableMembers, Op: models.OpDelete},
			localID:        uuid.Nil,
			wantRemoved:    false,
			wantConclusive: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			removed, conclusive := SelfRemoval(tt.ev, tt.localID)
			assert.Equal(t, tt.wantRemoved, removed, "removed")
			assert.Equal(t, tt.wantConclusive, conclusive, "conclusive")
		})
	}
}
