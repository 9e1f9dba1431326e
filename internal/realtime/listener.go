// Package realtime keeps the session store eventually consistent across
// devices. A Listener holds the device's subscriptions to the change-feed
// relay and turns incoming change events into store reloads. Events carry no
// row data worth merging; every reaction is a full re-fetch, so out-of-order
// delivery self-corrects.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/punishroulette/roulette/internal/models"
	"github.com/punishroulette/roulette/internal/store"
)

// Listener subscribes to the relay for one group at a time. Activating a new
// group (or identity) tears the previous subscriptions down first; exactly
// one set of subscriptions is live at any moment.
type Listener struct {
	relayURL string
	token    string
	store    *store.Store
	log      *logrus.Logger

	// OnKicked fires once when the local user's own membership is removed by
	// another device. The caller is expected to navigate the user out of the
	// group entirely instead of reloading it.
	OnKicked func()

	mu      sync.Mutex
	groupID uuid.UUID
	userID  uuid.UUID
	kicked  bool
	cancel  context.CancelFunc
	done    sync.WaitGroup
}

// NewListener wires a listener to the relay and the store it reloads.
func NewListener(relayURL, token string, st *store.Store, log *logrus.Logger) *Listener {
	if log == nil {
		log = logrus.New()
	}
	return &Listener{relayURL: relayURL, token: token, store: st, log: log}
}

// Activate (re)subscribes for the given group and local user. Two sockets
// are opened: one covering group settings, membership, and the punishment
// catalog; a second covering draw records.
func (l *Listener) Activate(groupID, userID uuid.UUID) {
	l.Deactivate()

	l.mu.Lock()
	l.groupID = groupID
	l.userID = userID
	l.kicked = false
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.mu.Unlock()

	l.done.Add(2)
	go l.run(ctx, groupID, []string{models.TableGroups, models.TableMembers, models.TablePunishments})
	go l.run(ctx, groupID, []string{models.TableRecords})
}

// Deactivate releases the subscriptions and waits for the read loops to
// exit. Leaking a stale subscription would cause duplicate reload storms
// once a new group is selected.
func (l *Listener) Deactivate() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	l.done.Wait()
}

// run owns one socket: dial, read, dispatch, and redial with backoff until
// the subscription is cancelled.
func (l *Listener) run(ctx context.Context, groupID uuid.UUID, tables []string) {
	defer l.done.Done()
	backoff := time.Second
	for ctx.Err() == nil {
		err := l.consume(ctx, groupID, tables)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.log.Warnf("feed %v for group %s dropped: %v", tables, groupID, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (l *Listener) consume(ctx context.Context, groupID uuid.UUID, tables []string) error {
	u, err := url.Parse(l.relayURL)
	if err != nil {
		return fmt.Errorf("bad relay url: %w", err)
	}
	u.Path = "/feed"
	q := u.Query()
	q.Set("group", groupID.String())
	for _, t := range tables {
		q.Add("table", t)
	}
	q.Set("token", l.token)
	u.RawQuery = q.Encode()

	c, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{"roulette-feed"},
	})
	if err != nil {
		return err
	}
	defer c.Close(websocket.StatusNormalClosure, "listener done")

	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}
		var ev models.ChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			l.log.Warnf("malformed change event dropped: %v", err)
			continue
		}
		l.dispatch(ctx, ev)
	}
}

// dispatch routes one change event to the matching store reload. A panic in
// any reaction is contained: a failure reloading one table must never
// prevent reloads triggered by other tables' events.
func (l *Listener) dispatch(ctx context.Context, ev models.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("change event handler panicked: %v", r)
		}
	}()

	l.mu.Lock()
	groupID := l.groupID
	userID := l.userID
	alreadyKicked := l.kicked
	l.mu.Unlock()

	if ev.GroupID != groupID {
		return
	}

	switch ev.Table {
	case models.TableGroups:
		l.store.LoadGroup(ctx, groupID)

	case models.TableMembers:
		if alreadyKicked {
			return
		}
		removed, conclusive := SelfRemoval(ev, userID)
		if conclusive && removed {
			l.fireKicked()
			return
		}
		// Either some other member changed, or the payload was inconclusive.
		// Re-fetch and, for the inconclusive case, re-verify our own
		// membership against the fresh list.
		l.store.LoadMembers(ctx, groupID)
		if !conclusive && l.missingFromMembers(userID) {
			l.fireKicked()
		}

	case models.TablePunishments:
		l.store.LoadPunishments(ctx, groupID)

	case models.TableRecords:
		l.store.LoadPunishmentRecords(ctx, groupID)
	}
}

// missingFromMembers reports whether the local user is absent from the
// freshly loaded member list. When the preceding reload failed the store
// keeps its previous list, which still contains the local user, so an
// unverifiable removal conservatively counts as "not kicked".
func (l *Listener) missingFromMembers(userID uuid.UUID) bool {
	if userID == uuid.Nil {
		return false
	}
	snap := l.store.Snapshot()
	if len(snap.Members) == 0 {
		return false
	}
	for _, m := range snap.Members {
		if m.UserID == userID {
			return false
		}
	}
	return true
}

func (l *Listener) fireKicked() {
	l.mu.Lock()
	if l.kicked {
		l.mu.Unlock()
		return
	}
	l.kicked = true
	onKicked := l.OnKicked
	l.mu.Unlock()
	if onKicked != nil {
		onKicked()
	}
}
