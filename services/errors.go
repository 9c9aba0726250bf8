package services

import "errors"

// Sentinel errors surfaced to the HTTP layer so rejections stay distinguishable.
var (
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrEntryNotFound       = errors.New("entry not found")
	ErrCompetitionClosed   = errors.New("competition is not active")
	ErrEntryWindowClosed   = errors.New("entry window is closed")
	ErrVotingWindowClosed  = errors.New("voting window is closed")
	ErrDuplicateEntry      = errors.New("user already has an entry in this competition")
	ErrDuplicateVote       = errors.New("user already voted for this entry")
	ErrInsufficientFunds   = errors.New("insufficient token balance")
	ErrEntryNotActive      = errors.New("entry is not active")
	ErrAlreadyRefunded     = errors.New("entry already refunded")

	// ErrDuplicateTransaction means a ledger movement with the same reference
	// was already recorded; callers treat it as "already applied".
	ErrDuplicateTransaction = errors.New("duplicate ledger transaction")
)
