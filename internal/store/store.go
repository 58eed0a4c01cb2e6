package store

import (
	"context"
	"errors"

	"github.com/sharehunt/shares-sniper/pkg/types"
)

// ErrNotFound is returned by Get calls when no record exists for the key.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned by Create when the token is already registered.
var ErrDuplicate = errors.New("store: already exists")

// PositionLedger is the durable token -> owned-amount mapping. Writes happen
// only from the trade executor after confirmation; last-writer-wins per key
// is acceptable in this single-process design.
type PositionLedger interface {
	// Get returns the position for a token, or ErrNotFound.
	Get(ctx context.Context, token string) (*types.Position, error)

	// Add appends a confirmed purchase, creating the position if needed.
	Add(ctx context.Context, token string, amount uint64, txHash string) error

	// Remove subtracts a sold amount. Removing more than held is rejected;
	// a position that reaches zero is deleted.
	Remove(ctx context.Context, token string, amount uint64) error

	// List returns all open positions.
	List(ctx context.Context) ([]types.Position, error)

	Close() error
}

// CandidateStore is the durable candidate lifecycle mapping.
type CandidateStore interface {
	// Create inserts a new candidate. Creating an existing token is an error
	// so duplicate creation events cannot double-register.
	Create(ctx context.Context, c *types.Candidate) error

	// Get returns the candidate for a token, or ErrNotFound.
	Get(ctx context.Context, token string) (*types.Candidate, error)

	// Update overwrites the candidate row for c.TokenAddress.
	Update(ctx context.Context, c *types.Candidate) error

	// ListByStatus returns candidates in any of the given statuses,
	// oldest first.
	ListByStatus(ctx context.Context, statuses ...types.CandidateStatus) ([]types.Candidate, error)

	// Delete removes the candidate row.
	Delete(ctx context.Context, token string) error

	// CountByStatus returns candidate counts keyed by status.
	CountByStatus(ctx context.Context) (map[types.CandidateStatus]int, error)

	Close() error
}

// CheckpointStore persists the last fully processed block. Advisory only:
// the monitor never replays missed events from it.
type CheckpointStore interface {
	// LastBlock returns the stored checkpoint, or ErrNotFound.
	LastBlock(ctx context.Context) (uint64, error)

	// SaveLastBlock stores a new checkpoint.
	SaveLastBlock(ctx context.Context, block uint64) error

	Close() error
}
