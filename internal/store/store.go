// Package store owns the in-memory view of the active group: its members,
// punishment catalog, draw records, suggestion cache and unlock state. All
// mutations go through the remote backend; local collections are either
// optimistically patched after a successful write or fully replaced by a
// reload. The store is an explicit state container: the application root
// constructs one and passes it to whatever needs it.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/punishroulette/roulette/internal/backend"
	"github.com/punishroulette/roulette/internal/models"
	"github.com/punishroulette/roulette/internal/suggest"
)

// Backend is the slice of the remote data API the store depends on.
// *backend.Client satisfies it; tests substitute a fake.
type Backend interface {
	GenerateUniqueInviteCode(ctx context.Context) (string, error)
	InsertGroup(ctx context.Context, g *models.Group) (*models.Group, error)
	GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error)
	GetGroupsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Group, error)
	UpdateGroupSettings(ctx context.Context, id uuid.UUID, s backend.GroupSettings) (*models.Group, error)
	UpdateGroupAdmin(ctx context.Context, groupID, newAdminID uuid.UUID) error
	DeleteGroup(ctx context.Context, groupID uuid.UUID) error

	InsertMember(ctx context.Context, groupID, userID uuid.UUID) error
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	DeleteMember(ctx context.Context, groupID, userID uuid.UUID) error
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]models.Member, error)
	ListMemberGroupIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	SetMemberSetupComplete(ctx context.Context, groupID, userID uuid.UUID) error

	InsertPunishment(ctx context.Context, p *models.Punishment) (*models.Punishment, error)
	DeletePunishment(ctx context.Context, id uuid.UUID) error
	ListPunishments(ctx context.Context, groupID uuid.UUID) ([]models.Punishment, error)
	CountPunishmentsByPair(ctx context.Context, groupID, authorID, targetID uuid.UUID) (int, error)

	ListRecords(ctx context.Context, groupID uuid.UUID) ([]models.PunishmentRecord, error)

	ListSuggestions(ctx context.Context, groupID, targetID uuid.UUID) ([]models.AISuggestion, error)
	ReplaceSuggestions(ctx context.Context, groupID, targetID uuid.UUID, suggestions []models.AISuggestion) ([]models.AISuggestion, error)

	HasUnlock(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	InsertUnlock(ctx context.Context, groupID, userID uuid.UUID) error
}

// Generator produces punishment suggestions for a member profile.
// *suggest.Engine satisfies it.
type Generator interface {
	GeneratePersonalizedSuggestions(ctx context.Context, profile suggest.Profile, count int) []suggest.Suggestion
}

// Snapshot is a read-only copy of the store state handed to subscribers.
type Snapshot struct {
	CurrentGroup      *models.Group
	UserGroups        []models.Group
	Members           []models.Member
	Punishments       []models.Punishment
	PunishmentRecords []models.PunishmentRecord
	HasUnlocked       bool
}

// Store is the single source of truth for "what is the active group and its
// live data". Collections are mutated only by the store itself.
type Store struct {
	backend Backend
	gen     Generator
	log     *logrus.Logger

	mu sync.Mutex
	// epoch advances on every selection change. In-flight loads capture it at
	// call time; a result tagged with a stale epoch is discarded so it can
	// never overwrite newer state.
	epoch uint64

	currentGroup      *models.Group
	userGroups        []models.Group
	members           []models.Member
	punishments       []models.Punishment
	punishmentRecords []models.PunishmentRecord
	suggestions       map[uuid.UUID][]models.AISuggestion // targetID -> newest first
	hasUnlocked       bool

	subs   map[int]func(Snapshot)
	nextID int
}

// New constructs a store. gen may be nil when suggestion generation is not
// needed (the relay, most tests).
func New(b Backend, gen Generator, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	return &Store{
		backend:     b,
		gen:         gen,
		log:         log,
		suggestions: make(map[uuid.UUID][]models.AISuggestion),
		subs:        make(map[int]func(Snapshot)),
	}
}

// Subscribe registers a listener for state changes and returns its
// unsubscribe func. The listener runs on the mutating goroutine; keep it
// cheap.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		UserGroups:        append([]models.Group(nil), s.userGroups...),
		Members:           append([]models.Member(nil), s.members...),
		Punishments:       append([]models.Punishment(nil), s.punishments...),
		PunishmentRecords: append([]models.PunishmentRecord(nil), s.punishmentRecords...),
		HasUnlocked:       s.hasUnlocked,
	}
	if s.currentGroup != nil {
		g := *s.currentGroup
		snap.CurrentGroup = &g
	}
	return snap
}

// notifyLocked builds a snapshot under the lock and returns a closure that
// delivers it; call the closure after unlocking.
func (s *Store) notifyLocked() func() {
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return func() {
		for _, fn := range fns {
			fn(snap)
		}
	}
}

// CurrentGroupID returns the active selection, or uuid.Nil.
func (s *Store) CurrentGroupID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentGroup == nil {
		return uuid.Nil
	}
	return s.currentGroup.ID
}

// CreateGroup generates a unique invite code, inserts the group with the
// admin as first member, selects it, and loads members.
func (s *Store) CreateGroup(ctx context.Context, name, emoji string, adminID uuid.UUID, maxPunishments int, isBand bool) (*models.Group, error) {
	code, err := s.backend.GenerateUniqueInviteCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateGroup, err)
	}

	group, err := s.backend.InsertGroup(ctx, &models.Group{
		Name:                    name,
		Emoji:                   emoji,
		InviteCode:              code,
		AdminID:                 adminID,
		MaxPunishmentsPerPerson: maxPunishments,
		AIMatchingEnabled:       true,
		IsBand:                  isBand,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCreateGroup, err)
	}

	s.mu.Lock()
	s.selectGroupLocked(*group)
	s.userGroups = append(s.userGroups, *group)
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()

	s.LoadMembers(ctx, group.ID)
	return group, nil
}

// JoinGroup resolves the invite code case-insensitively and adds the user if
// not already a member. Idempotent on the membership table: the second join
// is a no-op that still returns the group.
func (s *Store) JoinGroup(ctx context.Context, inviteCode string, userID uuid.UUID) (*models.Group, error) {
	group, err := s.backend.GetGroupByInviteCode(ctx, inviteCode)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrGroupNotFound, err)
	}

	isMember, err := s.backend.IsMember(ctx, group.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("membership check failed: %w", err)
	}
	if !isMember {
		if err := s.backend.InsertMember(ctx, group.ID, userID); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.selectGroupLocked(*group)
	if !s.hasUserGroupLocked(group.ID) {
		s.userGroups = append(s.userGroups, *group)
	}
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()

	s.LoadMembers(ctx, group.ID)
	return group, nil
}

// LeaveGroup removes the membership. An admin may not leave while any other
// member remains without transferring admin first, so the group's admin is
// always a current member. The sole-member admin leaves directly and the
// group dissolves with them. If the departed group was selected, the store
// switches to another known group or clears.
func (s *Store) LeaveGroup(ctx context.Context, groupID, userID uuid.UUID) error {
	members, err := s.backend.ListMembers(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to load members before leave: %w", err)
	}
	group, err := s.backend.GetGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to load group before leave: %w", err)
	}
	if group.AdminID == userID && len(members) >= 2 {
		return ErrAdminMustTransfer
	}

	if err := s.backend.DeleteMember(ctx, groupID, userID); err != nil {
		return err
	}
	if len(members) <= 1 {
		// Leaver was the last member; the group goes with them.
		if err := s.backend.DeleteGroup(ctx, groupID); err != nil {
			s.log.Warnf("failed to dissolve empty group %s: %v", groupID, err)
		}
	}

	s.mu.Lock()
	kept := s.userGroups[:0]
	for _, g := range s.userGroups {
		if g.ID != groupID {
			kept = append(kept, g)
		}
	}
	s.userGroups = kept
	if s.currentGroup != nil && s.currentGroup.ID == groupID {
		if len(s.userGroups) > 0 {
			s.selectGroupLocked(s.userGroups[0])
		} else {
			s.clearSelectionLocked()
		}
	}
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
	return nil
}

// SwitchGroup changes the active selection synchronously. Stale collections
// are cleared before the caller triggers fresh loads, so a frame of the
// previous group's data can never render under the new group's header.
func (s *Store) SwitchGroup(group models.Group) {
	s.mu.Lock()
	s.selectGroupLocked(group)
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
}

// ClearGroup drops all group state, returning the store to NoGroup.
func (s *Store) ClearGroup() {
	s.mu.Lock()
	s.clearSelectionLocked()
	s.userGroups = nil
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
}

// selectGroupLocked sets the selection and wipes per-group collections.
// Advances the epoch so in-flight loads for the old selection are discarded.
func (s *Store) selectGroupLocked(group models.Group) {
	s.epoch++
	g := group
	s.currentGroup = &g
	s.members = nil
	s.punishments = nil
	s.punishmentRecords = nil
	s.suggestions = make(map[uuid.UUID][]models.AISuggestion)
	s.hasUnlocked = false
}

func (s *Store) clearSelectionLocked() {
	s.epoch++
	s.currentGroup = nil
	s.members = nil
	s.punishments = nil
	s.punishmentRecords = nil
	s.suggestions = make(map[uuid.UUID][]models.AISuggestion)
	s.hasUnlocked = false
}

// captureEpoch records the epoch for an in-flight load of groupID.
func (s *Store) captureEpoch(groupID uuid.UUID) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentGroup == nil || s.currentGroup.ID != groupID {
		return 0, false
	}
	return s.epoch, true
}

// commit applies fn only if the selection epoch has not advanced since the
// load started. Returns the notify closure, or nil when the result is stale.
func (s *Store) commit(epoch uint64, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	fn()
	return s.notifyLocked()
}

// LoadGroup re-fetches the group row (settings changes from other devices).
// Read path: failures are logged and prior state stays in place.
func (s *Store) LoadGroup(ctx context.Context, groupID uuid.UUID) {
	epoch, ok := s.captureEpoch(groupID)
	if !ok {
		return
	}
	group, err := s.backend.GetGroup(ctx, groupID)
	if err != nil {
		s.log.Warnf("loadGroup %s failed: %v", groupID, err)
		return
	}
	notify := s.commit(epoch, func() {
		g := *group
		s.currentGroup = &g
		for i := range s.userGroups {
			if s.userGroups[i].ID == group.ID {
				s.userGroups[i] = *group
			}
		}
	})
	if notify != nil {
		notify()
	}
}

// LoadUserGroups fetches every group the user belongs to.
func (s *Store) LoadUserGroups(ctx context.Context, userID uuid.UUID) []models.Group {
	ids, err := s.backend.ListMemberGroupIDs(ctx, userID)
	if err != nil {
		s.log.Warnf("loadUserGroups: membership lookup failed: %v", err)
		return nil
	}
	if len(ids) == 0 {
		s.mu.Lock()
		s.userGroups = nil
		notify := s.notifyLocked()
		s.mu.Unlock()
		notify()
		return nil
	}
	groups, err := s.backend.GetGroupsByIDs(ctx, ids)
	if err != nil {
		s.log.Warnf("loadUserGroups: group fetch failed: %v", err)
		return nil
	}
	s.mu.Lock()
	s.userGroups = append([]models.Group(nil), groups...)
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
	return groups
}

// LoadMembers replaces the member collection with a fresh fetch.
func (s *Store) LoadMembers(ctx context.Context, groupID uuid.UUID) {
	epoch, ok := s.captureEpoch(groupID)
	if !ok {
		return
	}
	members, err := s.backend.ListMembers(ctx, groupID)
	if err != nil {
		s.log.Warnf("loadMembers %s failed: %v", groupID, err)
		return
	}
	notify := s.commit(epoch, func() { s.members = members })
	if notify != nil {
		notify()
	}
}

// LoadPunishments replaces the punishment catalog, newest first.
func (s *Store) LoadPunishments(ctx context.Context, groupID uuid.UUID) {
	epoch, ok := s.captureEpoch(groupID)
	if !ok {
		return
	}
	punishments, err := s.backend.ListPunishments(ctx, groupID)
	if err != nil {
		s.log.Warnf("loadPunishments %s failed: %v", groupID, err)
		return
	}
	notify := s.commit(epoch, func() { s.punishments = punishments })
	if notify != nil {
		notify()
	}
}

// LoadPunishmentRecords replaces the draw history, newest first.
func (s *Store) LoadPunishmentRecords(ctx context.Context, groupID uuid.UUID) {
	epoch, ok := s.captureEpoch(groupID)
	if !ok {
		return
	}
	records, err := s.backend.ListRecords(ctx, groupID)
	if err != nil {
		s.log.Warnf("loadPunishmentRecords %s failed: %v", groupID, err)
		return
	}
	notify := s.commit(epoch, func() { s.punishmentRecords = records })
	if notify != nil {
		notify()
	}
}

// AddPunishment inserts a punishment after enforcing the self-target rule
// and the per-(author, target) cap, then optimistically prepends it locally.
// Full reconcile happens on the next catalog reload.
func (s *Store) AddPunishment(ctx context.Context, groupID, authorID, targetID uuid.UUID, title, description string) (*models.Punishment, error) {
	if authorID == targetID {
		return nil, ErrSelfTarget
	}

	max, err := s.maxPunishmentsFor(ctx, groupID)
	if err != nil {
		return nil, err
	}
	count, err := s.backend.CountPunishmentsByPair(ctx, groupID, authorID, targetID)
	if err != nil {
		return nil, fmt.Errorf("punishment cap check failed: %w", err)
	}
	if count >= max {
		return nil, ErrPunishmentLimit
	}

	punishment, err := s.backend.InsertPunishment(ctx, &models.Punishment{
		GroupID:     groupID,
		AuthorID:    authorID,
		TargetID:    targetID,
		Title:       title,
		Description: description,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.currentGroup != nil && s.currentGroup.ID == groupID {
		s.punishments = append([]models.Punishment{*punishment}, s.punishments...)
	}
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
	return punishment, nil
}

func (s *Store) maxPunishmentsFor(ctx context.Context, groupID uuid.UUID) (int, error) {
	s.mu.Lock()
	if s.currentGroup != nil && s.currentGroup.ID == groupID {
		max := s.currentGroup.MaxPunishmentsPerPerson
		s.mu.Unlock()
		return max, nil
	}
	s.mu.Unlock()
	group, err := s.backend.GetGroup(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to load group for cap check: %w", err)
	}
	return group.MaxPunishmentsPerPerson, nil
}

// DeletePunishment removes the row remotely, then filters it from local
// state.
func (s *Store) DeletePunishment(ctx context.Context, id uuid.UUID) error {
	if err := s.backend.DeletePunishment(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	kept := s.punishments[:0]
	for _, p := range s.punishments {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.punishments = kept
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
	return nil
}

// MarkSetupComplete flips the member's setup flag and patches the local row.
func (s *Store) MarkSetupComplete(ctx context.Context, groupID, userID uuid.UUID) error {
	if err := s.backend.SetMemberSetupComplete(ctx, groupID, userID); err != nil {
		return err
	}
	s.mu.Lock()
	for i := range s.members {
		if s.members[i].GroupID == groupID && s.members[i].UserID == userID {
			s.members[i].HasCompletedSetup = true
		}
	}
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
	return nil
}

// UpdateGroupSettings applies a partial update and merges the accepted
// fields into the local selection, so a follow-up read sees the new values
// without a full reload.
func (s *Store) UpdateGroupSettings(ctx context.Context, groupID uuid.UUID, settings backend.GroupSettings) error {
	group, err := s.backend.UpdateGroupSettings(ctx, groupID, settings)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsUpdate, err)
	}
	s.mu.Lock()
	if s.currentGroup != nil && s.currentGroup.ID == groupID {
		g := *group
		s.currentGroup = &g
	}
	for i := range s.userGroups {
		if s.userGroups[i].ID == groupID {
			s.userGroups[i] = *group
		}
	}
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
	return nil
}

// TransferAdmin reassigns the group admin. The UI requires this before an
// admin can leave a populated group; LeaveGroup enforces it as well.
func (s *Store) TransferAdmin(ctx context.Context, groupID, newAdminID uuid.UUID) error {
	if err := s.backend.UpdateGroupAdmin(ctx, groupID, newAdminID); err != nil {
		return fmt.Errorf("failed to transfer admin: %w", err)
	}
	s.mu.Lock()
	if s.currentGroup != nil && s.currentGroup.ID == groupID {
		s.currentGroup.AdminID = newAdminID
	}
	for i := range s.userGroups {
		if s.userGroups[i].ID == groupID {
			s.userGroups[i].AdminID = newAdminID
		}
	}
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
	return nil
}

// CheckUnlockStatus probes for an unlock record. Absence is a normal
// negative; any other backend failure is logged and reported as locked.
func (s *Store) CheckUnlockStatus(ctx context.Context, groupID, userID uuid.UUID) bool {
	unlocked, err := s.backend.HasUnlock(ctx, groupID, userID)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		s.log.Warnf("unlock status check failed: %v", err)
		unlocked = false
	}
	s.mu.Lock()
	if s.currentGroup != nil && s.currentGroup.ID == groupID {
		s.hasUnlocked = unlocked
	}
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
	return unlocked
}

// UnlockPunishments records a paid reveal. hasUnlocked flips only after the
// insert succeeds.
func (s *Store) UnlockPunishments(ctx context.Context, groupID, userID uuid.UUID) error {
	if err := s.backend.InsertUnlock(ctx, groupID, userID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnlock, err)
	}
	s.mu.Lock()
	if s.currentGroup != nil && s.currentGroup.ID == groupID {
		s.hasUnlocked = true
	}
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
	return nil
}

// GetPunishmentsWithAuthors fetches the authorship join for the post-unlock
// reveal. Unlike the reload paths this surfaces the error: the result is
// consumed immediately by a user-visible screen.
func (s *Store) GetPunishmentsWithAuthors(ctx context.Context, groupID uuid.UUID) ([]models.Punishment, error) {
	punishments, err := s.backend.ListPunishments(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch punishment authors: %w", err)
	}
	return punishments, nil
}

// Suggestions returns the cached suggestion list for a target.
func (s *Store) Suggestions(targetID uuid.UUID) []models.AISuggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AISuggestion(nil), s.suggestions[targetID]...)
}

// LoadSuggestions pulls the persisted suggestion cache for a target.
func (s *Store) LoadSuggestions(ctx context.Context, groupID, targetID uuid.UUID) []models.AISuggestion {
	epoch, ok := s.captureEpoch(groupID)
	if !ok {
		return nil
	}
	suggestions, err := s.backend.ListSuggestions(ctx, groupID, targetID)
	if err != nil {
		s.log.Warnf("loadSuggestions %s/%s failed: %v", groupID, targetID, err)
		return nil
	}
	notify := s.commit(epoch, func() { s.suggestions[targetID] = suggestions })
	if notify != nil {
		notify()
	}
	return suggestions
}

// GenerateSuggestions builds the target's profile from local state, asks the
// suggestion engine for fresh entries, and persists them best-effort: when
// the backend save fails the locally generated set (temp ids) is kept and
// returned anyway.
func (s *Store) GenerateSuggestions(ctx context.Context, groupID, targetID uuid.UUID) []models.AISuggestion {
	if s.gen == nil {
		return nil
	}

	profile, ok := s.profileFor(targetID)
	if !ok {
		s.log.Warnf("generateSuggestions: target %s not found in members", targetID)
		return nil
	}

	generated := s.gen.GeneratePersonalizedSuggestions(ctx, profile, 3)
	if len(generated) == 0 {
		return nil
	}

	now := time.Now()
	local := make([]models.AISuggestion, 0, len(generated))
	for _, g := range generated {
		local = append(local, models.AISuggestion{
			ID:          uuid.New(),
			GroupID:     groupID,
			TargetID:    targetID,
			Suggestion:  g.Suggestion,
			Reason:      g.Reason,
			GeneratedAt: now,
		})
	}

	saved, err := s.backend.ReplaceSuggestions(ctx, groupID, targetID, local)
	if err != nil {
		s.log.Warnf("suggestion save failed, keeping local set: %v", err)
		saved = local
	}

	epoch, ok := s.captureEpoch(groupID)
	if ok {
		notify := s.commit(epoch, func() { s.suggestions[targetID] = saved })
		if notify != nil {
			notify()
		}
	}
	return saved
}

// profileFor assembles the suggestion-engine profile for a member from local
// collections: instruments, self-reported punctuality, punishments received
// and authored, and past free-text wishes.
func (s *Store) profileFor(targetID uuid.UUID) (suggest.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target *models.User
	for i := range s.members {
		if s.members[i].UserID == targetID && s.members[i].User != nil {
			target = s.members[i].User
			break
		}
	}
	if target == nil {
		return suggest.Profile{}, false
	}

	profile := suggest.Profile{
		Name:        target.Name,
		Instruments: append([]string(nil), target.Instruments...),
		ChronicLate: target.Punctuality == models.PunctualityLate,
	}
	for _, p := range s.punishments {
		if p.TargetID == targetID {
			profile.ReceivedPunishments = append(profile.ReceivedPunishments, p.Title)
		}
		if p.AuthorID == targetID {
			profile.GivenPunishments = append(profile.GivenPunishments, p.Title)
		}
	}
	for _, r := range s.punishmentRecords {
		if r.PunishedUserID == targetID && r.UserMessage != "" {
			profile.Wishes = append(profile.Wishes, r.UserMessage)
		}
	}
	return profile, true
}

func (s *Store) hasUserGroupLocked(id uuid.UUID) bool {
	for _, g := range s.userGroups {
		if g.ID == id {
			return true
		}
	}
	return false
}
