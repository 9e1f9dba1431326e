package store

import "errors"

// Write-path errors. Screens catch these and present a dismissible message;
// read/reload paths never surface them (prior state stays on screen).
var (
	// ErrGroupNotFound: the invite code matched no group.
	ErrGroupNotFound = errors.New("group not found")

	// ErrCreateGroup wraps any backend failure while creating a group.
	ErrCreateGroup = errors.New("failed to create group")

	// ErrSettingsUpdate wraps a failed partial settings update.
	ErrSettingsUpdate = errors.New("failed to update group settings")

	// ErrUnlock wraps a failed unlock insert (conflict or backend failure).
	ErrUnlock = errors.New("failed to unlock punishments")

	// ErrSelfTarget: a punishment may never target its own author.
	ErrSelfTarget = errors.New("punishment cannot target its author")

	// ErrPunishmentLimit: the (author, target) pair is at the group cap.
	ErrPunishmentLimit = errors.New("punishment limit reached for this member")

	// ErrAdminMustTransfer: the admin tried to leave a group that still has
	// two or more other members without transferring admin first.
	ErrAdminMustTransfer = errors.New("transfer admin before leaving the group")

	// ErrNoGroup: the operation needs an active group selection.
	ErrNoGroup = errors.New("no active group")
)
