package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"

	"github.com/sharehunt/shares-sniper/internal/reputation"
	"github.com/sharehunt/shares-sniper/internal/store"
	"github.com/sharehunt/shares-sniper/pkg/contract"
	"github.com/sharehunt/shares-sniper/pkg/types"
)

// MemoryLedger is an in-memory PositionLedger for tests.
type MemoryLedger struct {
	mu        sync.Mutex
	positions map[string]*types.Position

	// AddErr and RemoveErr, when set, are returned by the next write.
	AddErr    error
	RemoveErr error
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{positions: make(map[string]*types.Position)}
}

// Get returns the position for a token.
func (m *MemoryLedger) Get(_ context.Context, token string) (*types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[types.NormalizeAddress(token)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *pos
	return &cp, nil
}

// Add appends a purchase.
func (m *MemoryLedger) Add(_ context.Context, token string, amount uint64, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AddErr != nil {
		return m.AddErr
	}

	key := types.NormalizeAddress(token)
	pos, ok := m.positions[key]
	if !ok {
		pos = &types.Position{TokenAddress: key}
		m.positions[key] = pos
	}
	pos.TotalAmount += amount
	pos.Purchases = append(pos.Purchases, types.Purchase{Amount: amount, TxHash: txHash})
	return nil
}

// Remove subtracts a sold amount.
func (m *MemoryLedger) Remove(_ context.Context, token string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RemoveErr != nil {
		return m.RemoveErr
	}

	key := types.NormalizeAddress(token)
	pos, ok := m.positions[key]
	if !ok {
		return store.ErrNotFound
	}
	if amount > pos.TotalAmount {
		return store.ErrNotFound
	}
	pos.TotalAmount -= amount
	if pos.TotalAmount == 0 {
		delete(m.positions, key)
	}
	return nil
}

// List returns all open positions sorted by token address.
func (m *MemoryLedger) List(_ context.Context) ([]types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenAddress < out[j].TokenAddress })
	return out, nil
}

// Close is a no-op.
func (m *MemoryLedger) Close() error { return nil }

// MemoryCandidates is an in-memory CandidateStore for tests.
type MemoryCandidates struct {
	mu         sync.Mutex
	candidates map[string]*types.Candidate
	order      []string
}

// NewMemoryCandidates creates an empty in-memory candidate store.
func NewMemoryCandidates() *MemoryCandidates {
	return &MemoryCandidates{candidates: make(map[string]*types.Candidate)}
}

// Create inserts a new candidate, failing on duplicates.
func (m *MemoryCandidates) Create(_ context.Context, c *types.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := types.NormalizeAddress(c.TokenAddress)
	if _, ok := m.candidates[key]; ok {
		return store.ErrDuplicate
	}
	cp := *c
	m.candidates[key] = &cp
	m.order = append(m.order, key)
	return nil
}

// Get returns the candidate for a token.
func (m *MemoryCandidates) Get(_ context.Context, token string) (*types.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.candidates[types.NormalizeAddress(token)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Update overwrites a candidate row.
func (m *MemoryCandidates) Update(_ context.Context, c *types.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := types.NormalizeAddress(c.TokenAddress)
	if _, ok := m.candidates[key]; !ok {
		return store.ErrNotFound
	}
	cp := *c
	m.candidates[key] = &cp
	return nil
}

// ListByStatus returns candidates in insertion order filtered by status.
func (m *MemoryCandidates) ListByStatus(_ context.Context, statuses ...types.CandidateStatus) ([]types.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[types.CandidateStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	var out []types.Candidate
	for _, key := range m.order {
		c, ok := m.candidates[key]
		if ok && want[c.Status] {
			out = append(out, *c)
		}
	}
	return out, nil
}

// Delete removes a candidate row.
func (m *MemoryCandidates) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.candidates, types.NormalizeAddress(token))
	return nil
}

// CountByStatus returns counts keyed by status.
func (m *MemoryCandidates) CountByStatus(_ context.Context) (map[types.CandidateStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[types.CandidateStatus]int)
	for _, c := range m.candidates {
		out[c.Status]++
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryCandidates) Close() error { return nil }

// MemoryCheckpoint is an in-memory CheckpointStore for tests.
type MemoryCheckpoint struct {
	mu    sync.Mutex
	block *uint64
}

// NewMemoryCheckpoint creates an empty checkpoint store.
func NewMemoryCheckpoint() *MemoryCheckpoint { return &MemoryCheckpoint{} }

// LastBlock returns the stored checkpoint.
func (m *MemoryCheckpoint) LastBlock(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.block == nil {
		return 0, store.ErrNotFound
	}
	return *m.block, nil
}

// SaveLastBlock stores a new checkpoint.
func (m *MemoryCheckpoint) SaveLastBlock(_ context.Context, block uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = &block
	return nil
}

// Close is a no-op.
func (m *MemoryCheckpoint) Close() error { return nil }

// FakeContract is a scriptable shares-contract double. Each hook defaults to
// a success response; set the corresponding func to script failures. Calls
// are recorded in order for serialization assertions.
type FakeContract struct {
	mu    sync.Mutex
	Calls []string

	BuyFn         func(subject common.Address, amount uint64, curveIndex uint8) (*contract.Receipt, error)
	SellFn        func(subject common.Address, amount uint64, gasLimit uint64) (*contract.Receipt, error)
	EstimateFn    func(subject common.Address, amount uint64) (uint64, error)
	BuyStarted    chan struct{}
	BuyProceed    chan struct{}
}

// NewFakeContract creates a contract double with success defaults.
func NewFakeContract() *FakeContract {
	return &FakeContract{}
}

func (f *FakeContract) record(call string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	f.mu.Unlock()
}

// CallLog returns a copy of the recorded calls.
func (f *FakeContract) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

// SubmitBuy runs the scripted buy, blocking between BuyStarted and BuyProceed
// when those channels are set.
func (f *FakeContract) SubmitBuy(_ context.Context, subject common.Address, amount uint64, curveIndex uint8) (*contract.Receipt, error) {
	f.record("buy:" + strings.ToLower(subject.Hex()))

	if f.BuyStarted != nil {
		f.BuyStarted <- struct{}{}
	}
	if f.BuyProceed != nil {
		<-f.BuyProceed
	}

	if f.BuyFn != nil {
		return f.BuyFn(subject, amount, curveIndex)
	}
	return &contract.Receipt{TxHash: "0xbuy", BlockNumber: 100, GasUsed: 90000, Status: 1}, nil
}

// SubmitSell runs the scripted sell.
func (f *FakeContract) SubmitSell(_ context.Context, subject common.Address, amount uint64, gasLimit uint64) (*contract.Receipt, error) {
	f.record("sell:" + strings.ToLower(subject.Hex()))

	if f.SellFn != nil {
		return f.SellFn(subject, amount, gasLimit)
	}
	return &contract.Receipt{TxHash: "0xsell", BlockNumber: 101, GasUsed: 60000, Status: 1}, nil
}

// EstimateSellGas runs the scripted estimation.
func (f *FakeContract) EstimateSellGas(_ context.Context, subject common.Address, amount uint64) (uint64, error) {
	f.record("estimate:" + strings.ToLower(subject.Hex()))

	if f.EstimateFn != nil {
		return f.EstimateFn(subject, amount)
	}
	return 80000, nil
}

// MockReputationAPI serves both the room and profile endpoints for tests.
type MockReputationAPI struct {
	*httptest.Server
	mu       sync.RWMutex
	rooms    map[string]reputation.Room
	profiles map[string]reputation.Profile

	// FailRooms and FailProfiles force 500 responses when set.
	FailRooms    bool
	FailProfiles bool
}

// NewMockReputationAPI creates a mock server with no records.
func NewMockReputationAPI() *MockReputationAPI {
	mock := &MockReputationAPI{
		rooms:    make(map[string]reputation.Room),
		profiles: make(map[string]reputation.Profile),
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.RLock()
		defer mock.mu.RUnlock()

		switch {
		case strings.HasPrefix(r.URL.Path, "/rooms/"):
			if mock.FailRooms {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			token := strings.ToLower(strings.TrimPrefix(r.URL.Path, "/rooms/"))
			room, ok := mock.rooms[token]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(room)

		case strings.HasPrefix(r.URL.Path, "/profiles/"):
			if mock.FailProfiles {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			handle := strings.TrimPrefix(r.URL.Path, "/profiles/")
			profile, ok := mock.profiles[handle]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(profile)

		default:
			http.NotFound(w, r)
		}
	})

	mock.Server = httptest.NewServer(handler)
	return mock
}

// SetRoom registers a room record for a token address.
func (m *MockReputationAPI) SetRoom(token, creatorHandle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[strings.ToLower(token)] = reputation.Room{CreatorHandle: creatorHandle}
}

// SetProfile registers a profile record for a handle.
func (m *MockReputationAPI) SetProfile(handle string, followers int64, verified bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[handle] = reputation.Profile{
		Handle:        handle,
		FollowerCount: followers,
		IsVerified:    verified,
	}
}
