package reputation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// ErrUnavailable covers timeouts, transport failures, and non-2xx responses
// from either reputation API. Callers treat it as "try again next pass".
var ErrUnavailable = errors.New("reputation: service unavailable")

// Room is the metadata record the room API keeps per subject token.
type Room struct {
	CreatorHandle string `json:"creatorHandle"`
}

// Profile is the social record behind a creator handle.
type Profile struct {
	Handle        string `json:"handle"`
	FollowerCount int64  `json:"followerCount"`
	IsVerified    bool   `json:"isVerified"`
}

// RoomClient resolves a subject token address to its room metadata.
type RoomClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewRoomClient creates a room API client with a shared rate limiter.
func NewRoomClient(baseURL string, timeout time.Duration, limiter *rate.Limiter) *RoomClient {
	return &RoomClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// FetchRoom looks up the room for a token address. A room that exists but
// has no creator handle yet returns (nil, nil); API failures map to
// ErrUnavailable, never to a fatal error.
func (c *RoomClient) FetchRoom(ctx context.Context, tokenAddress string) (*Room, error) {
	err := c.limiter.Wait(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/rooms/%s", c.baseURL, tokenAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var room Room
	err = json.NewDecoder(resp.Body).Decode(&room)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	if room.CreatorHandle == "" {
		return nil, nil
	}

	return &room, nil
}

// ProfileClient resolves a creator handle to follower count and verification.
type ProfileClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewProfileClient creates a profile API client with a shared rate limiter.
func NewProfileClient(baseURL string, timeout time.Duration, limiter *rate.Limiter) *ProfileClient {
	return &ProfileClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// FetchProfile looks up a social profile by handle. API failures map to
// ErrUnavailable.
func (c *ProfileClient) FetchProfile(ctx context.Context, handle string) (*Profile, error) {
	err := c.limiter.Wait(ctx)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/profiles/%s", c.baseURL, handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var profile Profile
	err = json.NewDecoder(resp.Body).Decode(&profile)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	return &profile, nil
}
