package realtime

import (
	"github.com/google/uuid"

	"github.com/punishroulette/roulette/internal/models"
)

// SelfRemoval decides whether a membership change event removed the local
// user. All members of a group share one change stream, so a DELETE alone
// only proves that somebody left.
//
// removed reports whether the local user was the one removed; conclusive
// reports whether the event payload carried enough information to decide.
// When conclusive is false the caller must re-verify membership by
// re-fetching the member list.
func SelfRemoval(ev models.ChangeEvent, localUserID uuid.UUID) (removed, conclusive bool) {
	if ev.Table != models.TableMembers || ev.Op != models.OpDelete {
		return false, true
	}
	if localUserID == uuid.Nil {
		return false, true
	}
	if id, ok := models.RowUserID(ev.OldRow); ok {
		return id == localUserID, true
	}
	return false, false
}
