package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/pkg/types"
)

// FileStore backs all three store interfaces with a single JSON document
// under a data directory. Writes go through a temp file and rename so a
// crash never leaves a half-written document. A single in-process mutex
// serializes access; no cross-process use is supported.
type FileStore struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex
}

type fileState struct {
	Positions  map[string]*types.Position  `json:"positions"`
	Candidates map[string]*types.Candidate `json:"candidates"`
	LastBlock  *uint64                     `json:"lastBlock,omitempty"`
}

const stateFileName = "state.json"

// NewFileStore creates the data directory if missing.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	logger.Info("file-store-ready", zap.String("dir", dir))
	return &FileStore{dir: dir, logger: logger}, nil
}

// Positions returns the position-ledger view of the store.
func (f *FileStore) Positions() PositionLedger { return &filePositions{f} }

// Candidates returns the candidate-store view of the store.
func (f *FileStore) Candidates() CandidateStore { return &fileCandidates{f} }

// Checkpoint returns the checkpoint-store view of the store.
func (f *FileStore) Checkpoint() CheckpointStore { return &fileCheckpoint{f} }

// Close is a no-op for the file store.
func (f *FileStore) Close() error {
	f.logger.Info("closing-file-store")
	return nil
}

func (f *FileStore) load() (*fileState, error) {
	raw, err := os.ReadFile(filepath.Join(f.dir, stateFileName))
	if os.IsNotExist(err) {
		return &fileState{
			Positions:  make(map[string]*types.Position),
			Candidates: make(map[string]*types.Candidate),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state fileState
	err = json.Unmarshal(raw, &state)
	if err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	if state.Positions == nil {
		state.Positions = make(map[string]*types.Position)
	}
	if state.Candidates == nil {
		state.Candidates = make(map[string]*types.Candidate)
	}

	return &state, nil
}

func (f *FileStore) save(state *fileState) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	path := filepath.Join(f.dir, stateFileName)
	tmp := path + ".tmp"

	err = os.WriteFile(tmp, raw, 0o644)
	if err != nil {
		return fmt.Errorf("write temp state: %w", err)
	}

	err = os.Rename(tmp, path)
	if err != nil {
		return fmt.Errorf("rename state: %w", err)
	}

	return nil
}

// filePositions is the PositionLedger view over the shared document.
type filePositions struct {
	fs *FileStore
}

// Get returns the position for a token, or ErrNotFound.
func (p *filePositions) Get(_ context.Context, token string) (*types.Position, error) {
	p.fs.mu.Lock()
	defer p.fs.mu.Unlock()

	state, err := p.fs.load()
	if err != nil {
		return nil, err
	}

	pos, ok := state.Positions[types.NormalizeAddress(token)]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *pos
	cp.Purchases = append([]types.Purchase(nil), pos.Purchases...)
	return &cp, nil
}

// Add appends a confirmed purchase, creating the position if needed.
func (p *filePositions) Add(_ context.Context, token string, amount uint64, txHash string) error {
	p.fs.mu.Lock()
	defer p.fs.mu.Unlock()

	state, err := p.fs.load()
	if err != nil {
		return err
	}

	key := types.NormalizeAddress(token)
	pos, ok := state.Positions[key]
	if !ok {
		pos = &types.Position{TokenAddress: key}
		state.Positions[key] = pos
	}

	pos.TotalAmount += amount
	pos.Purchases = append(pos.Purchases, types.Purchase{
		Amount:    amount,
		TxHash:    txHash,
		Timestamp: time.Now().UTC(),
	})

	return p.fs.save(state)
}

// Remove subtracts a sold amount. A position that reaches zero is deleted.
func (p *filePositions) Remove(_ context.Context, token string, amount uint64) error {
	p.fs.mu.Lock()
	defer p.fs.mu.Unlock()

	state, err := p.fs.load()
	if err != nil {
		return err
	}

	key := types.NormalizeAddress(token)
	pos, ok := state.Positions[key]
	if !ok {
		return ErrNotFound
	}

	if amount > pos.TotalAmount {
		return fmt.Errorf("remove %d exceeds held amount %d for %s", amount, pos.TotalAmount, key)
	}

	pos.TotalAmount -= amount
	if pos.TotalAmount == 0 {
		delete(state.Positions, key)
	}

	return p.fs.save(state)
}

// List returns all open positions sorted by token address.
func (p *filePositions) List(_ context.Context) ([]types.Position, error) {
	p.fs.mu.Lock()
	defer p.fs.mu.Unlock()

	state, err := p.fs.load()
	if err != nil {
		return nil, err
	}

	positions := make([]types.Position, 0, len(state.Positions))
	for _, pos := range state.Positions {
		positions = append(positions, *pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].TokenAddress < positions[j].TokenAddress
	})

	return positions, nil
}

func (p *filePositions) Close() error { return nil }

// fileCandidates is the CandidateStore view over the shared document.
type fileCandidates struct {
	fs *FileStore
}

// Create inserts a new candidate; an existing token is an error.
func (c *fileCandidates) Create(_ context.Context, cand *types.Candidate) error {
	c.fs.mu.Lock()
	defer c.fs.mu.Unlock()

	state, err := c.fs.load()
	if err != nil {
		return err
	}

	key := types.NormalizeAddress(cand.TokenAddress)
	if _, exists := state.Candidates[key]; exists {
		return fmt.Errorf("candidate %s: %w", key, ErrDuplicate)
	}

	cp := *cand
	cp.TokenAddress = key
	state.Candidates[key] = &cp

	return c.fs.save(state)
}

// Get returns the candidate for a token, or ErrNotFound.
func (c *fileCandidates) Get(_ context.Context, token string) (*types.Candidate, error) {
	c.fs.mu.Lock()
	defer c.fs.mu.Unlock()

	state, err := c.fs.load()
	if err != nil {
		return nil, err
	}

	cand, ok := state.Candidates[types.NormalizeAddress(token)]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *cand
	return &cp, nil
}

// Update overwrites the candidate row for cand.TokenAddress.
func (c *fileCandidates) Update(_ context.Context, cand *types.Candidate) error {
	c.fs.mu.Lock()
	defer c.fs.mu.Unlock()

	state, err := c.fs.load()
	if err != nil {
		return err
	}

	key := types.NormalizeAddress(cand.TokenAddress)
	if _, exists := state.Candidates[key]; !exists {
		return ErrNotFound
	}

	cp := *cand
	cp.TokenAddress = key
	state.Candidates[key] = &cp

	return c.fs.save(state)
}

// ListByStatus returns candidates in any of the given statuses, oldest first.
func (c *fileCandidates) ListByStatus(_ context.Context, statuses ...types.CandidateStatus) ([]types.Candidate, error) {
	c.fs.mu.Lock()
	defer c.fs.mu.Unlock()

	state, err := c.fs.load()
	if err != nil {
		return nil, err
	}

	want := make(map[types.CandidateStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	var out []types.Candidate
	for _, cand := range state.Candidates {
		if want[cand.Status] {
			out = append(out, *cand)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

// Delete removes the candidate row.
func (c *fileCandidates) Delete(_ context.Context, token string) error {
	c.fs.mu.Lock()
	defer c.fs.mu.Unlock()

	state, err := c.fs.load()
	if err != nil {
		return err
	}

	delete(state.Candidates, types.NormalizeAddress(token))
	return c.fs.save(state)
}

// CountByStatus returns candidate counts keyed by status.
func (c *fileCandidates) CountByStatus(_ context.Context) (map[types.CandidateStatus]int, error) {
	c.fs.mu.Lock()
	defer c.fs.mu.Unlock()

	state, err := c.fs.load()
	if err != nil {
		return nil, err
	}

	counts := make(map[types.CandidateStatus]int)
	for _, cand := range state.Candidates {
		counts[cand.Status]++
	}

	return counts, nil
}

func (c *fileCandidates) Close() error { return nil }

// fileCheckpoint is the CheckpointStore view over the shared document.
type fileCheckpoint struct {
	fs *FileStore
}

// LastBlock returns the stored checkpoint, or ErrNotFound.
func (c *fileCheckpoint) LastBlock(_ context.Context) (uint64, error) {
	c.fs.mu.Lock()
	defer c.fs.mu.Unlock()

	state, err := c.fs.load()
	if err != nil {
		return 0, err
	}
	if state.LastBlock == nil {
		return 0, ErrNotFound
	}

	return *state.LastBlock, nil
}

// SaveLastBlock stores a new checkpoint.
func (c *fileCheckpoint) SaveLastBlock(_ context.Context, block uint64) error {
	c.fs.mu.Lock()
	defer c.fs.mu.Unlock()

	state, err := c.fs.load()
	if err != nil {
		return err
	}

	state.LastBlock = &block
	return c.fs.save(state)
}

func (c *fileCheckpoint) Close() error { return nil }
