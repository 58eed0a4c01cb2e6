package reputation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/pkg/cache"
)

// Evaluator combines the room and profile lookups the scanner drives
// candidates through. Resolved handles are cached so repeated scan passes
// over the same token do not re-hit the room API.
type Evaluator struct {
	rooms    roomFetcher
	profiles profileFetcher
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

type roomFetcher interface {
	FetchRoom(ctx context.Context, tokenAddress string) (*Room, error)
}

type profileFetcher interface {
	FetchProfile(ctx context.Context, handle string) (*Profile, error)
}

// Config holds evaluator configuration.
type Config struct {
	Rooms    *RoomClient
	Profiles *ProfileClient
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// New creates an evaluator.
func New(cfg *Config) *Evaluator {
	return &Evaluator{
		rooms:    cfg.Rooms,
		profiles: cfg.Profiles,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		logger:   cfg.Logger,
	}
}

// newForTesting wires arbitrary fetchers; used by package tests.
func newForTesting(rooms roomFetcher, profiles profileFetcher, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Evaluator {
	return &Evaluator{rooms: rooms, profiles: profiles, cache: c, cacheTTL: ttl, logger: logger}
}

// ResolveHandle returns the creator handle behind a token, or ("", nil) when
// the room exists but has not published a handle yet. ErrUnavailable flows
// through so the caller can count the attempt.
func (e *Evaluator) ResolveHandle(ctx context.Context, tokenAddress string) (string, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(tokenAddress); ok {
			if handle, ok := v.(string); ok {
				return handle, nil
			}
		}
	}

	room, err := e.rooms.FetchRoom(ctx, tokenAddress)
	if err != nil {
		return "", err
	}
	if room == nil {
		return "", nil
	}

	if e.cache != nil {
		e.cache.Set(tokenAddress, room.CreatorHandle, e.cacheTTL)
	}

	e.logger.Debug("handle-resolved",
		zap.String("token", tokenAddress),
		zap.String("handle", room.CreatorHandle))

	return room.CreatorHandle, nil
}

// ResolveProfile returns follower count and verification for a handle.
func (e *Evaluator) ResolveProfile(ctx context.Context, handle string) (*Profile, error) {
	profile, err := e.profiles.FetchProfile(ctx, handle)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("profile-resolved",
		zap.String("handle", handle),
		zap.Int64("followers", profile.FollowerCount),
		zap.Bool("verified", profile.IsVerified))

	return profile, nil
}
