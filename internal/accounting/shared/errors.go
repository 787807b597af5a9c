package shared

import "errors"

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrInvalidLine indicates a line with a negative amount or both sides set.
	ErrInvalidLine = errors.New("accounting: invalid journal line")
	// ErrSourceAlreadyLinked indicates idempotency conflict.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
)
