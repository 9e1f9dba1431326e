// The roulette binary is the app runtime for one device: it resolves the
// device's identity, owns the group session store, keeps it synced through
// the relay, and exposes an interactive prompt standing in for the mobile UI.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/punishroulette/roulette/internal/auth"
	"github.com/punishroulette/roulette/internal/backend"
	"github.com/punishroulette/roulette/internal/cache"
	"github.com/punishroulette/roulette/internal/identity"
	"github.com/punishroulette/roulette/internal/kv"
	"github.com/punishroulette/roulette/internal/rating"
	"github.com/punishroulette/roulette/internal/realtime"
	"github.com/punishroulette/roulette/internal/roll"
	"github.com/punishroulette/roulette/internal/store"
	"github.com/punishroulette/roulette/internal/suggest"
)

type app struct {
	log      *logrus.Logger
	local    *kv.Store
	resolver *identity.Resolver
	backend  *backend.Client
	store    *store.Store
	engine   *suggest.Engine
	rating   *rating.Gate
	listener *realtime.Listener
	relayURL string

	in  *bufio.Scanner
	out *os.File
}

// terminalPrompter stands in for the platform review dialog.
type terminalPrompter struct{ out *os.File }

func (p terminalPrompter) Available() bool { return true }

func (p terminalPrompter) Request(context.Context) error {
	fmt.Fprintln(p.out, "Enjoying Punishment Roulette? Rate us in the store!")
	return nil
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	dbPath := os.Getenv("ROULETTE_DB")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Fatalf("cannot locate home dir: %v", err)
		}
		dir := filepath.Join(home, ".roulette")
		if err := os.MkdirAll(dir, 0o700); err != nil {
			logger.Fatalf("cannot create data dir: %v", err)
		}
		dbPath = filepath.Join(dir, "roulette.db")
	}
	local, err := kv.Open(dbPath)
	if err != nil {
		logger.Fatalf("failed to open local store: %v", err)
	}
	defer local.Close()

	rdb, err := cache.Connect()
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()
	bus := cache.NewBus(rdb)

	ctx := context.Background()
	db, err := backend.Connect(ctx, bus, logger)
	if err != nil {
		logger.Fatalf("failed to connect to backend: %v", err)
	}
	defer db.Close()

	engine := suggest.NewEngineFromEnv(logger)

	relayURL := os.Getenv("RELAY_URL")
	if relayURL == "" {
		relayURL = "ws://localhost:8090"
	}

	a := &app{
		log:      logger,
		local:    local,
		resolver: identity.NewResolver(local, db, logger),
		backend:  db,
		store:    store.New(db, engine, logger),
		engine:   engine,
		rating:   rating.NewGate(local, terminalPrompter{out: os.Stdout}, logger),
		relayURL: relayURL,
		in:       bufio.NewScanner(os.Stdin),
		out:      os.Stdout,
	}

	if user := a.resolver.Resolve(ctx); user != nil {
		a.printf("Welcome back, %s!\n", user.Name)
		a.afterLogin(ctx)
	} else {
		a.printf("No identity on this device yet. Use: login <name> [instrument ...]\n")
	}

	a.repl(ctx)

	if a.listener != nil {
		a.listener.Deactivate()
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) repl(ctx context.Context) {
	for {
		a.printf("> ")
		if !a.in.Scan() {
			return
		}
		fields := strings.Fields(a.in.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return
		}
		a.dispatch(ctx, cmd, args)
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "help":
		a.printHelp()
	case "login":
		a.cmdLogin(ctx, args)
	case "whoami":
		a.cmdWhoami()
	case "punctuality":
		a.cmdPunctuality(args)
	case "create":
		a.cmdCreate(ctx, args)
	case "join":
		a.cmdJoin(ctx, args)
	case "groups":
		a.cmdGroups(ctx)
	case "switch":
		a.cmdSwitch(ctx, args)
	case "leave":
		a.cmdLeave(ctx)
	case "members":
		a.cmdMembers()
	case "punishments":
		a.cmdPunishments()
	case "add":
		a.cmdAdd(ctx, args)
	case "remove":
		a.cmdRemove(ctx, args)
	case "records":
		a.cmdRecords()
	case "suggest":
		a.cmdSuggest(ctx, args)
	case "roll":
		a.cmdRoll(ctx, args)
	case "unlock":
		a.cmdUnlock(ctx)
	case "reveal":
		a.cmdReveal(ctx)
	case "settings":
		a.cmdSettings(ctx, args)
	case "setup-done":
		a.cmdSetupDone(ctx)
	case "transfer":
		a.cmdTransfer(ctx, args)
	case "update":
		a.cmdUpdate(ctx, args)
	case "pay":
		a.resolver.RecordPaymentIntent(ctx)
		a.printf("Noted.\n")
	case "logout":
		a.cmdLogout()
	default:
		a.printf("Unknown command %q. Try: help\n", cmd)
	}
}

func (a *app) printHelp() {
	a.printf(`Commands:
  login <name> [instrument ...]   create or update this device's user
  whoami                          show the current user
  punctuality <punctual|late>     answer the onboarding question
  create <name> <emoji> [max]     create a group (max punishments per pair)
  join <code>                     join a group by invite code
  groups                          list my groups
  switch <n>                      switch to group n from the list
  leave                           leave the current group
  members / punishments / records show current group state
  add <member#> <title...>        write a punishment for a member
  remove <punishment#>            delete one of the listed punishments
  suggest <member#>               AI punishment ideas for a member
  roll <member#> [wish...]        draw a punishment for a late member
  unlock                          pay to reveal punishment authors
  reveal                          list punishments with authors (after unlock)
  settings max=<n> ai=<on|off> anon=<on|off>
  setup-done                      mark my setup complete in this group
  transfer <member#>              hand group admin to a member
  update <name> [instrument ...]  update profile
  pay / logout / quit
`)
}

func (a *app) user() *uuid.UUID {
	u := a.resolver.User()
	if u == nil {
		a.printf("Log in first.\n")
		return nil
	}
	return &u.ID
}

// afterLogin requests a feed token and rebuilds the listener. Called after
// both Resolve and Login succeed.
func (a *app) afterLogin(ctx context.Context) {
	user := a.resolver.User()
	if user == nil {
		return
	}
	a.store.LoadUserGroups(ctx, user.ID)

	httpURL := strings.Replace(strings.Replace(a.relayURL, "ws://", "http://", 1), "wss://", "https://", 1)
	token, err := auth.RequestToken(ctx, httpURL, user.DeviceID)
	if err != nil {
		a.log.Warnf("feed token request failed, realtime sync disabled: %v", err)
		return
	}

	if a.listener != nil {
		a.listener.Deactivate()
	}
	a.listener = realtime.NewListener(a.relayURL, token, a.store, a.log)
	a.listener.OnKicked = func() {
		a.printf("\nYou have been removed from the group.\n> ")
		a.store.ClearGroup()
	}
	a.activateFeed()
}

func (a *app) activateFeed() {
	user := a.resolver.User()
	groupID := a.store.CurrentGroupID()
	if a.listener == nil || user == nil || groupID == uuid.Nil {
		return
	}
	a.listener.Activate(groupID, user.ID)
}

func (a *app) cmdLogin(ctx context.Context, args []string) {
	if len(args) == 0 {
		a.printf("Usage: login <name> [instrument ...]\n")
		return
	}
	user, err := a.resolver.Login(ctx, args[0], args[1:])
	if err != nil {
		a.printf("Login failed: %v\n", err)
		return
	}
	a.printf("Logged in as %s (%s)\n", user.Name, user.AvatarInitials)
	a.afterLogin(ctx)
}

func (a *app) cmdWhoami() {
	u := a.resolver.User()
	if u == nil {
		a.printf("Not logged in.\n")
		return
	}
	a.printf("%s  instruments=%v  punctuality=%s\n", u.Name, u.Instruments, u.Punctuality)
}

func (a *app) cmdPunctuality(args []string) {
	if len(args) != 1 || (args[0] != "punctual" && args[0] != "late") {
		a.printf("Usage: punctuality <punctual|late>\n")
		return
	}
	if err := a.local.Set(kv.KeyPunctuality, args[0]); err != nil {
		a.printf("Could not save: %v\n", err)
		return
	}
	a.printf("Saved. It rides along on your next login.\n")
}

func (a *app) cmdCreate(ctx context.Context, args []string) {
	userID := a.user()
	if userID == nil {
		return
	}
	if len(args) < 2 {
		a.printf("Usage: create <name> <emoji> [maxPerPair]\n")
		return
	}
	max := 3
	if len(args) > 2 {
		if n, err := strconv.Atoi(args[2]); err == nil && n > 0 {
			max = n
		}
	}
	group, err := a.store.CreateGroup(ctx, args[0], args[1], *userID, max, true)
	if err != nil {
		a.printf("Create failed: %v\n", err)
		return
	}
	a.printf("Group %s created. Invite code: %s\n", group.Name, group.InviteCode)
	a.activateFeed()
}

func (a *app) cmdJoin(ctx context.Context, args []string) {
	userID := a.user()
	if userID == nil {
		return
	}
	if len(args) != 1 {
		a.printf("Usage: join <code>\n")
		return
	}
	group, err := a.store.JoinGroup(ctx, args[0], *userID)
	if err != nil {
		a.printf("Join failed: %v\n", err)
		return
	}
	a.printf("Joined %s %s\n", group.Emoji, group.Name)
	a.activateFeed()
}

func (a *app) cmdGroups(ctx context.Context) {
	userID := a.user()
	if userID == nil {
		return
	}
	groups := a.store.LoadUserGroups(ctx, *userID)
	if len(groups) == 0 {
		a.printf("No groups yet. Try: create or join\n")
		return
	}
	current := a.store.CurrentGroupID()
	for i, g := range groups {
		marker := "  "
		if g.ID == current {
			marker = "* "
		}
		a.printf("%s%d. %s %s  (code %s)\n", marker, i+1, g.Emoji, g.Name, g.InviteCode)
	}
}

func (a *app) cmdSwitch(ctx context.Context, args []string) {
	userID := a.user()
	if userID == nil {
		return
	}
	snap := a.store.Snapshot()
	idx, ok := parseIndex(args, len(snap.UserGroups))
	if !ok {
		a.printf("Usage: switch <n> (see: groups)\n")
		return
	}
	group := snap.UserGroups[idx]
	a.store.SwitchGroup(group)
	a.store.LoadGroup(ctx, group.ID)
	a.store.LoadMembers(ctx, group.ID)
	a.store.LoadPunishments(ctx, group.ID)
	a.store.LoadPunishmentRecords(ctx, group.ID)
	a.store.CheckUnlockStatus(ctx, group.ID, *userID)
	a.printf("Now in %s %s\n", group.Emoji, group.Name)
	a.activateFeed()
}

func (a *app) cmdLeave(ctx context.Context) {
	userID := a.user()
	if userID == nil {
		return
	}
	groupID := a.store.CurrentGroupID()
	if groupID == uuid.Nil {
		a.printf("No current group.\n")
		return
	}
	if err := a.store.LeaveGroup(ctx, groupID, *userID); err != nil {
		a.printf("Leave failed: %v\n", err)
		return
	}
	a.printf("Left the group.\n")
	a.activateFeed()
}

func (a *app) cmdMembers() {
	snap := a.store.Snapshot()
	if len(snap.Members) == 0 {
		a.printf("No members loaded.\n")
		return
	}
	for i, m := range snap.Members {
		name := m.UserID.String()
		if m.User != nil {
			name = m.User.Name
		}
		admin := ""
		if snap.CurrentGroup != nil && snap.CurrentGroup.AdminID == m.UserID {
			admin = " (admin)"
		}
		a.printf("%d. %s%s\n", i+1, name, admin)
	}
}

func (a *app) cmdPunishments() {
	snap := a.store.Snapshot()
	if len(snap.Punishments) == 0 {
		a.printf("No punishments loaded.\n")
		return
	}
	for i, p := range snap.Punishments {
		target := p.TargetID.String()
		if p.Target != nil {
			target = p.Target.Name
		}
		used := ""
		if p.IsUsed {
			used = " [used]"
		}
		a.printf("%d. for %s: %s%s\n", i+1, target, p.Title, used)
	}
}

func (a *app) cmdRecords() {
	snap := a.store.Snapshot()
	if len(snap.PunishmentRecords) == 0 {
		a.printf("No draws yet.\n")
		return
	}
	for i, r := range snap.PunishmentRecords {
		title := r.PunishmentID.String()
		if r.Punishment != nil {
			title = r.Punishment.Title
		}
		who := r.PunishedUserID.String()
		if r.PunishedUser != nil {
			who = r.PunishedUser.Name
		}
		a.printf("%d. %s drew %q\n", i+1, who, title)
	}
}

func (a *app) cmdAdd(ctx context.Context, args []string) {
	userID := a.user()
	if userID == nil {
		return
	}
	snap := a.store.Snapshot()
	if snap.CurrentGroup == nil {
		a.printf("No current group.\n")
		return
	}
	if len(args) < 2 {
		a.printf("Usage: add <member#> <title...>\n")
		return
	}
	idx, ok := parseIndex(args[:1], len(snap.Members))
	if !ok {
		a.printf("Bad member number (see: members)\n")
		return
	}
	title := strings.Join(args[1:], " ")
	_, err := a.store.AddPunishment(ctx, snap.CurrentGroup.ID, *userID, snap.Members[idx].UserID, title, "")
	if err != nil {
		a.printf("Add failed: %v\n", err)
		return
	}
	a.printf("Punishment added.\n")
}

func (a *app) cmdRemove(ctx context.Context, args []string) {
	snap := a.store.Snapshot()
	idx, ok := parseIndex(args, len(snap.Punishments))
	if !ok {
		a.printf("Usage: remove <punishment#> (see: punishments)\n")
		return
	}
	if err := a.store.DeletePunishment(ctx, snap.Punishments[idx].ID); err != nil {
		a.printf("Remove failed: %v\n", err)
		return
	}
	a.printf("Removed.\n")
}

func (a *app) cmdSuggest(ctx context.Context, args []string) {
	if a.user() == nil {
		return
	}
	snap := a.store.Snapshot()
	if snap.CurrentGroup == nil {
		a.printf("No current group.\n")
		return
	}
	idx, ok := parseIndex(args, len(snap.Members))
	if !ok {
		a.printf("Usage: suggest <member#>\n")
		return
	}
	suggestions := a.store.GenerateSuggestions(ctx, snap.CurrentGroup.ID, snap.Members[idx].UserID)
	for i, s := range suggestions {
		a.printf("%d. %s\n   %s\n", i+1, s.Suggestion, s.Reason)
	}
}

func (a *app) cmdRoll(ctx context.Context, args []string) {
	userID := a.user()
	if userID == nil {
		return
	}
	snap := a.store.Snapshot()
	if snap.CurrentGroup == nil {
		a.printf("No current group.\n")
		return
	}
	if len(args) < 1 {
		a.printf("Usage: roll <member#> [wish...]\n")
		return
	}
	idx, ok := parseIndex(args[:1], len(snap.Members))
	if !ok {
		a.printf("Bad member number (see: members)\n")
		return
	}
	late := snap.Members[idx]
	wish := strings.Join(args[1:], " ")

	session, err := roll.NewSession(a.backend, a.engine, a.log, *snap.CurrentGroup, late.UserID, snap.Punishments)
	if err != nil {
		a.printf("Cannot roll: %v\n", err)
		return
	}

	a.printf("Rolling...\n")
	outcome, err := session.Roll(ctx, roll.Input{Wish: wish})
	if err != nil {
		a.printf("Roll failed: %v\n", err)
		return
	}
	a.printf("Drawn: %s\n", outcome.Punishment.Title)
	if outcome.AIReason != "" {
		a.printf("AI says: %s\n", outcome.AIReason)
	}

	guessable := roll.GuessableMembers(snap.Members, late.UserID)
	a.printf("Guess the author? Pick a number, or 'skip':\n")
	for i, m := range guessable {
		name := m.UserID.String()
		if m.User != nil {
			name = m.User.Name
		}
		a.printf("%d. %s\n", i+1, name)
	}
	a.printf("guess> ")
	if !a.in.Scan() {
		return
	}
	answer := strings.TrimSpace(a.in.Text())
	if answer == "" || answer == "skip" {
		if err := session.Skip(ctx); err != nil {
			a.printf("Skip failed: %v\n", err)
		}
		return
	}
	gi, ok := parseIndex([]string{answer}, len(guessable))
	if !ok {
		a.printf("Bad number; skipping guess.\n")
		session.Skip(ctx)
		return
	}
	result, err := session.Guess(ctx, guessable[gi].UserID)
	if err != nil {
		a.printf("Guess failed: %v\n", err)
		return
	}
	if result.Correct {
		a.printf("Correct! +%d points\n", result.Points)
	} else {
		a.printf("Wrong! +0 points\n")
	}
}

func (a *app) cmdUnlock(ctx context.Context) {
	userID := a.user()
	if userID == nil {
		return
	}
	groupID := a.store.CurrentGroupID()
	if groupID == uuid.Nil {
		a.printf("No current group.\n")
		return
	}
	if err := a.store.UnlockPunishments(ctx, groupID, *userID); err != nil {
		a.printf("Unlock failed: %v\n", err)
		return
	}
	a.printf("Authors unlocked for this group.\n")
	a.rating.MaybeRequest(ctx)
}

func (a *app) cmdReveal(ctx context.Context) {
	userID := a.user()
	if userID == nil {
		return
	}
	snap := a.store.Snapshot()
	if snap.CurrentGroup == nil {
		a.printf("No current group.\n")
		return
	}
	if !snap.HasUnlocked && !a.store.CheckUnlockStatus(ctx, snap.CurrentGroup.ID, *userID) {
		a.printf("Authors are locked. Try: unlock\n")
		return
	}
	punishments, err := a.store.GetPunishmentsWithAuthors(ctx, snap.CurrentGroup.ID)
	if err != nil {
		a.printf("Reveal failed: %v\n", err)
		return
	}
	for i, p := range punishments {
		author := p.AuthorID.String()
		if p.Author != nil {
			author = p.Author.Name
		}
		a.printf("%d. %q by %s\n", i+1, p.Title, author)
	}
}

func (a *app) cmdSettings(ctx context.Context, args []string) {
	if a.user() == nil {
		return
	}
	groupID := a.store.CurrentGroupID()
	if groupID == uuid.Nil {
		a.printf("No current group.\n")
		return
	}
	var settings backend.GroupSettings
	for _, arg := range args {
		k, v, found := strings.Cut(arg, "=")
		if !found {
			a.printf("Usage: settings max=<n> ai=<on|off> anon=<on|off>\n")
			return
		}
		switch k {
		case "max":
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				a.printf("max must be a positive number\n")
				return
			}
			settings.MaxPunishmentsPerPerson = &n
		case "ai":
			on := v == "on"
			settings.AIMatchingEnabled = &on
		case "anon":
			on := v == "on"
			settings.AllowAnonymousUnlock = &on
		default:
			a.printf("Unknown setting %q\n", k)
			return
		}
	}
	if err := a.store.UpdateGroupSettings(ctx, groupID, settings); err != nil {
		a.printf("Update failed: %v\n", err)
		return
	}
	a.printf("Settings updated.\n")
}

func (a *app) cmdSetupDone(ctx context.Context) {
	userID := a.user()
	if userID == nil {
		return
	}
	groupID := a.store.CurrentGroupID()
	if groupID == uuid.Nil {
		a.printf("No current group.\n")
		return
	}
	if err := a.store.MarkSetupComplete(ctx, groupID, *userID); err != nil {
		a.printf("Failed: %v\n", err)
		return
	}
	a.printf("Setup marked complete.\n")
}

func (a *app) cmdTransfer(ctx context.Context, args []string) {
	if a.user() == nil {
		return
	}
	snap := a.store.Snapshot()
	if snap.CurrentGroup == nil {
		a.printf("No current group.\n")
		return
	}
	idx, ok := parseIndex(args, len(snap.Members))
	if !ok {
		a.printf("Usage: transfer <member#>\n")
		return
	}
	if err := a.store.TransferAdmin(ctx, snap.CurrentGroup.ID, snap.Members[idx].UserID); err != nil {
		a.printf("Transfer failed: %v\n", err)
		return
	}
	a.printf("Admin transferred.\n")
}

func (a *app) cmdUpdate(ctx context.Context, args []string) {
	if a.user() == nil {
		return
	}
	if len(args) == 0 {
		a.printf("Usage: update <name> [instrument ...]\n")
		return
	}
	user, err := a.resolver.UpdateUser(ctx, args[0], args[1:])
	if err != nil {
		a.printf("Update failed: %v\n", err)
		return
	}
	a.printf("Profile updated: %s %v\n", user.Name, user.Instruments)
}

func (a *app) cmdLogout() {
	if err := a.resolver.Logout(); err != nil {
		a.printf("Logout failed: %v\n", err)
		return
	}
	if a.listener != nil {
		a.listener.Deactivate()
		a.listener = nil
	}
	a.store.ClearGroup()
	a.printf("Logged out. This device will get a fresh identity on next login.\n")
}

func parseIndex(args []string, n int) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}
