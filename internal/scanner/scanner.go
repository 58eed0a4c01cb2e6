package scanner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/internal/reputation"
	"github.com/sharehunt/shares-sniper/internal/store"
	"github.com/sharehunt/shares-sniper/pkg/contract"
	"github.com/sharehunt/shares-sniper/pkg/types"
)

// Evaluator resolves reputation signals for a candidate.
type Evaluator interface {
	ResolveHandle(ctx context.Context, tokenAddress string) (string, error)
	ResolveProfile(ctx context.Context, handle string) (*reputation.Profile, error)
}

// Buyer is the slice of the trade executor the scanner drives.
type Buyer interface {
	Buy(ctx context.Context, token string, amount uint64, curveIndex int) *types.TradeResult
}

// Notifier receives fire-and-forget admission pushes. Implementations must
// never let a delivery failure surface here.
type Notifier interface {
	TokenAdmitted(ctx context.Context, c *types.Candidate)
}

// EvictionPolicy decides what happens to a candidate that never resolves.
type EvictionPolicy string

const (
	// EvictDelete removes the candidate row entirely.
	EvictDelete EvictionPolicy = "delete"

	// EvictIgnore keeps the row, marked ignored with an eviction reason.
	EvictIgnore EvictionPolicy = "ignore"
)

// Config holds scanner configuration.
type Config struct {
	Candidates store.CandidateStore
	Evaluator  Evaluator
	Executor   Buyer
	Notifier   Notifier // optional
	Logger     *zap.Logger

	ScanInterval      time.Duration
	FollowerThreshold int64
	RequireVerified   bool // switches the admission rule from OR to AND
	BuyAmount         uint64
	MaxPollAttempts   int
	MaxPendingAge     time.Duration
	Eviction          EvictionPolicy
}

// Scanner polls unresolved candidates, drives them through reputation
// lookups, applies the admission policy, and triggers buys. One candidate's
// failure never aborts a pass.
type Scanner struct {
	candidates store.CandidateStore
	evaluator  Evaluator
	executor   Buyer
	notifier   Notifier
	logger     *zap.Logger

	scanInterval      time.Duration
	followerThreshold int64
	requireVerified   bool
	buyAmount         uint64
	maxPollAttempts   int
	maxPendingAge     time.Duration
	eviction          EvictionPolicy

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a candidate scanner.
func New(cfg *Config) *Scanner {
	return &Scanner{
		candidates:        cfg.Candidates,
		evaluator:         cfg.Evaluator,
		executor:          cfg.Executor,
		notifier:          cfg.Notifier,
		logger:            cfg.Logger,
		scanInterval:      cfg.ScanInterval,
		followerThreshold: cfg.FollowerThreshold,
		requireVerified:   cfg.RequireVerified,
		buyAmount:         cfg.BuyAmount,
		maxPollAttempts:   cfg.MaxPollAttempts,
		maxPendingAge:     cfg.MaxPendingAge,
		eviction:          cfg.Eviction,
	}
}

// Start begins the fixed-interval polling loop.
func (s *Scanner) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.logger.Info("scanner-starting", zap.Duration("interval", s.scanInterval))

	s.wg.Add(1)
	go s.loop()

	return nil
}

// Stop halts the polling loop; an in-progress pass finishes.
func (s *Scanner) Stop() {
	s.logger.Info("scanner-stopping")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scanner-stopped")
}

func (s *Scanner) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.ScanOnce(s.ctx)
		}
	}
}

// Register creates a pending candidate from a token-creation event. A token
// already registered is a silent no-op so replayed creation events cannot
// double-register.
func (s *Scanner) Register(ctx context.Context, token string, txHash string, multiplier *big.Int) error {
	now := time.Now().UTC()
	candidate := &types.Candidate{
		TokenAddress:    types.NormalizeAddress(token),
		AddressChecksum: types.ChecksumAddress(token),
		CurveIndex:      contract.CurveIndexForMultiplier(multiplier),
		Multiplier:      multiplier.String(),
		TxHash:          txHash,
		CreatedAt:       now,
		LastChecked:     now,
		Status:          types.StatusPending,
	}

	err := s.candidates.Create(ctx, candidate)
	if errors.Is(err, store.ErrDuplicate) {
		s.logger.Debug("candidate-already-registered", zap.String("token", candidate.TokenAddress))
		return nil
	}
	if err != nil {
		return err
	}

	CandidatesRegisteredTotal.Inc()
	s.logger.Info("candidate-registered",
		zap.String("token", candidate.TokenAddress),
		zap.Int("curve-index", candidate.CurveIndex),
		zap.String("multiplier", candidate.Multiplier))
	return nil
}

// ScanOnce performs a single pass over all unresolved candidates.
func (s *Scanner) ScanOnce(ctx context.Context) {
	start := time.Now()

	unresolved, err := s.candidates.ListByStatus(ctx, types.StatusPending, types.StatusError)
	if err != nil {
		s.logger.Error("candidate-list-failed", zap.Error(err))
		return
	}

	for i := range unresolved {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.scanCandidate(ctx, &unresolved[i])
	}

	ScanDurationSeconds.Observe(time.Since(start).Seconds())
	if len(unresolved) > 0 {
		s.logger.Debug("scan-pass-complete",
			zap.Int("candidates", len(unresolved)),
			zap.Duration("took", time.Since(start)))
	}
}

// scanCandidate drives one candidate through resolution, admission, and buy.
// Failures are absorbed so the pass continues to the next candidate.
func (s *Scanner) scanCandidate(ctx context.Context, c *types.Candidate) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("candidate-scan-panicked",
				zap.String("token", c.TokenAddress),
				zap.Any("panic", r))
		}
	}()

	handle, err := s.evaluator.ResolveHandle(ctx, c.TokenAddress)
	if err != nil || handle == "" {
		s.recordUnresolved(ctx, c, err)
		return
	}
	c.CreatorHandle = handle

	profile, err := s.evaluator.ResolveProfile(ctx, handle)
	if err != nil {
		c.Status = types.StatusError
		c.LastError = fmt.Sprintf("profile lookup for %s: %v", handle, err)
		c.LastChecked = time.Now().UTC()
		s.persist(ctx, c)
		return
	}

	c.FollowerCount = profile.FollowerCount
	c.IsVerified = profile.IsVerified
	c.LastChecked = time.Now().UTC()

	if s.admit(profile) {
		s.buyCandidate(ctx, c)
		return
	}

	now := time.Now().UTC()
	c.Status = types.StatusIgnored
	c.IgnoredAt = &now
	c.LastError = fmt.Sprintf("not admitted: followers %d (threshold %d), verified %t",
		profile.FollowerCount, s.followerThreshold, profile.IsVerified)
	s.persist(ctx, c)

	CandidatesResolvedTotal.WithLabelValues("ignored").Inc()
	s.logger.Info("candidate-ignored",
		zap.String("token", c.TokenAddress),
		zap.String("handle", handle),
		zap.Int64("followers", profile.FollowerCount),
		zap.Bool("verified", profile.IsVerified))
}

// admit applies the admission policy: followers over threshold OR verified,
// tightened to AND when verification is required.
func (s *Scanner) admit(p *reputation.Profile) bool {
	overThreshold := p.FollowerCount > s.followerThreshold
	if s.requireVerified {
		return overThreshold && p.IsVerified
	}
	return overThreshold || p.IsVerified
}

// buyCandidate pushes an admitted candidate through the executor and records
// the outcome. A failed buy leaves the candidate in error state, retried on
// the next pass.
func (s *Scanner) buyCandidate(ctx context.Context, c *types.Candidate) {
	if s.notifier != nil {
		s.notifier.TokenAdmitted(ctx, c)
	}

	s.logger.Info("candidate-admitted",
		zap.String("token", c.TokenAddress),
		zap.String("handle", c.CreatorHandle),
		zap.Int64("followers", c.FollowerCount),
		zap.Bool("verified", c.IsVerified))

	result := s.executor.Buy(ctx, c.TokenAddress, s.buyAmount, c.CurveIndex)
	if !result.Success {
		c.Status = types.StatusError
		c.LastError = fmt.Sprintf("buy failed (%s): %s", result.Code, result.Error)
		s.persist(ctx, c)
		CandidatesResolvedTotal.WithLabelValues("buy_failed").Inc()
		return
	}

	now := time.Now().UTC()
	c.Status = types.StatusBought
	c.BoughtTxHash = result.TxHash
	c.BoughtAt = &now
	c.LastError = ""
	s.persist(ctx, c)

	CandidatesResolvedTotal.WithLabelValues("bought").Inc()
	s.logger.Info("candidate-bought",
		zap.String("token", c.TokenAddress),
		zap.String("tx-hash", result.TxHash))
}

// recordUnresolved counts a failed or empty handle resolution and evicts the
// candidate once it exceeds the attempt or age bound.
func (s *Scanner) recordUnresolved(ctx context.Context, c *types.Candidate, cause error) {
	c.PollAttempts++
	c.LastChecked = time.Now().UTC()
	if cause != nil {
		c.LastError = cause.Error()
	}

	tooManyAttempts := c.PollAttempts >= s.maxPollAttempts
	tooOld := time.Since(c.CreatedAt) >= s.maxPendingAge

	if !tooManyAttempts && !tooOld {
		s.persist(ctx, c)
		return
	}

	reason := fmt.Sprintf("evicted after %d attempts over %s without a resolvable handle",
		c.PollAttempts, time.Since(c.CreatedAt).Round(time.Second))

	switch s.eviction {
	case EvictIgnore:
		now := time.Now().UTC()
		c.Status = types.StatusIgnored
		c.IgnoredAt = &now
		c.LastError = reason
		s.persist(ctx, c)
	default:
		err := s.candidates.Delete(ctx, c.TokenAddress)
		if err != nil {
			s.logger.Error("candidate-evict-failed",
				zap.String("token", c.TokenAddress),
				zap.Error(err))
			return
		}
	}

	CandidatesEvictedTotal.Inc()
	s.logger.Info("candidate-evicted",
		zap.String("token", c.TokenAddress),
		zap.String("policy", string(s.eviction)),
		zap.String("reason", reason))
}

func (s *Scanner) persist(ctx context.Context, c *types.Candidate) {
	err := s.candidates.Update(ctx, c)
	if err != nil {
		s.logger.Error("candidate-update-failed",
			zap.String("token", c.TokenAddress),
			zap.Error(err))
	}
}
