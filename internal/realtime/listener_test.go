package realtime

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punishroulette/roulette/internal/models"
	"github.com/punishroulette/roulette/internal/store"
)

// stubBackend satisfies store.Backend through the embedded interface; only
// the methods the listener's reload paths touch are implemented. Anything
// else panics, which is exactly what the tests want to hear about.
type stubBackend struct {
	store.Backend

	mu               sync.Mutex
	members          []models.Member
	listMembersCalls int
	listPunishCalls  int
}

func (s *stubBackend) ListMembers(ctx context.Context, groupID uuid.UUID) ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listMembersCalls++
	return append([]models.Member(nil), s.members...), nil
}

func (s *stubBackend) ListPunishments(ctx context.Context, groupID uuid.UUID) ([]models.Punishment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listPunishCalls++
	return nil, nil
}

func (s *stubBackend) memberCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMembersCalls
}

func setupListener(t *testing.T, sb *stubBackend, groupID, userID uuid.UUID) (*Listener, *int) {
	t.Helper()
	st := store.New(sb, nil, nil)
	st.SwitchGroup(models.Group{ID: groupID})

	kicks := 0
	l := NewListener("ws://unused", "token", st, nil)
	l.OnKicked = func() { kicks++ }
	l.groupID = groupID
	l.userID = userID
	return l, &kicks
}

func TestDispatchKickWhenPayloadNamesLocalUser(t *testing.T) {
	groupID := uuid.New()
	userID := uuid.New()
	sb := &stubBackend{}
	l, kicks := setupListener(t, sb, groupID, userID)

	ev := models.ChangeEvent{
		Table:   models.TableMembers,
		Op:      models.OpDelete,
		GroupID: groupID,
		OldRow:  map[string]any{"user_id": userID.String()},
	}
	l.dispatch(context.Background(), ev)

	assert.Equal(t, 1, *kicks)
	// A confirmed self-removal must not trigger a member reload.
	assert.Equal(t, 0, sb.memberCalls())
}

func TestDispatchKickFiresOnce(t *testing.T) {
	groupID := uuid.New()
	userID := uuid.New()
	sb := &stubBackend{}
	l, kicks := setupListener(t, sb, groupID, userID)

	ev := models.ChangeEvent{
		Table:   models.TableMembers,
		Op:      models.OpDelete,
		GroupID: groupID,
		OldRow:  map[string]any{"user_id": userID.String()},
	}
	l.dispatch(context.Background(), ev)
	l.dispatch(context.Background(), ev)
	l.dispatch(context.Background(), ev)

	assert.Equal(t, 1, *kicks)
}

func TestDispatchOtherMemberRemovalReloads(t *testing.T) {
	groupID := uuid.New()
	userID := uuid.New()
	otherID := uuid.New()
	sb := &stubBackend{members: []models.Member{{GroupID: groupID, UserID: userID}}}
	l, kicks := setupListener(t, sb, groupID, userID)

	ev := models.ChangeEvent{
		Table:   models.TableMembers,
		Op:      models.OpDelete,
		GroupID: groupID,
		OldRow:  map[string]any{"user_id": otherID.String()},
	}
	l.dispatch(context.Background(), ev)

	assert.Equal(t, 0, *kicks)
	assert.Equal(t, 1, sb.memberCalls())
}

func TestDispatchInconclusiveRemovalVerifiesMembership(t *testing.T) {
	groupID := uuid.New()
	userID := uuid.New()
	// The fresh member list no longer contains the local user.
	sb := &stubBackend{members: []models.Member{{GroupID: groupID, UserID: uuid.New()}}}
	l, kicks := setupListener(t, sb, groupID, userID)

	ev := models.ChangeEvent{
		Table:   models.TableMembers,
		Op:      models.OpDelete,
		GroupID: groupID,
	}
	l.dispatch(context.Background(), ev)

	require.Equal(t, 1, sb.memberCalls(), "inconclusive removal re-fetches the member list")
	assert.Equal(t, 1, *kicks)
}

func TestDispatchInconclusiveRemovalStillMember(t *testing.T) {
	groupID := uuid.New()
	userID := uuid.New()
	sb := &stubBackend{members: []models.Member{{GroupID: groupID, UserID: userID}}}
	l, kicks := setupListener(t, sb, groupID, userID)

	ev := models.ChangeEvent{
		Table:   models.TableMembers,
		Op:      models.OpDelete,
		GroupID: groupID,
	}
	l.dispatch(context.Background(), ev)

	assert.Equal(t, 0, *kicks)
}

func TestDispatchIgnoresOtherGroups(t *testing.T) {
	groupID := uuid.New()
	userID := uuid.New()
	sb := &stubBackend{}
	l, kicks := setupListener(t, sb, groupID, userID)

	ev := models.ChangeEvent{
		Table:   models.TableMembers,
		Op:      models.OpDelete,
		GroupID: uuid.New(),
		OldRow:  map[string]any{"user_id": userID.String()},
	}
	l.dispatch(context.Background(), ev)

	assert.Equal(t, 0, *kicks)
	assert.Equal(t, 0, sb.memberCalls())
}

func TestDispatchPunishmentEventReloadsCatalog(t *testing.T) {
	groupID := uuid.New()
	sb := &stubBackend{}
	l, _ := setupListener(t, sb, groupID, uuid.New())

	l.dispatch(context.Background(), models.ChangeEvent{
		Table:   models.TablePunishments,
		Op:      models.OpInsert,
		GroupID: groupID,
	})

	sb.mu.Lock()
	defer sb.mu.Unlock()
	assert.Equal(t, 1, sb.listPunishCalls)
}
