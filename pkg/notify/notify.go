// Package notify delivers fire-and-forget admission pushes. Delivery is
// best-effort: failures are logged and never surfaced to the caller, so a
// broken webhook can never affect a trade decision.
package notify

import (
	"bytes"
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/pkg/types"
)

// Pusher posts admission events to a webhook URL.
type Pusher struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a pusher. An empty URL disables delivery entirely.
func New(url string, logger *zap.Logger) *Pusher {
	return &Pusher{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

type admissionPayload struct {
	Event         string `json:"event"`
	TokenAddress  string `json:"tokenAddress"`
	CreatorHandle string `json:"creatorHandle"`
	FollowerCount int64  `json:"followerCount"`
	IsVerified    bool   `json:"isVerified"`
	Timestamp     int64  `json:"timestamp"`
}

// TokenAdmitted pushes an admission event in a background goroutine and
// returns immediately.
func (p *Pusher) TokenAdmitted(ctx context.Context, c *types.Candidate) {
	if p.url == "" {
		return
	}

	payload := admissionPayload{
		Event:         "token_admitted",
		TokenAddress:  c.AddressChecksum,
		CreatorHandle: c.CreatorHandle,
		FollowerCount: c.FollowerCount,
		IsVerified:    c.IsVerified,
		Timestamp:     time.Now().Unix(),
	}

	go p.deliver(payload)
}

func (p *Pusher) deliver(payload admissionPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("notify-encode-failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		p.logger.Warn("notify-request-failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("notify-delivery-failed",
			zap.String("token", payload.TokenAddress),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		p.logger.Warn("notify-rejected",
			zap.String("token", payload.TokenAddress),
			zap.Int("status", resp.StatusCode))
		return
	}

	p.logger.Debug("notify-delivered", zap.String("token", payload.TokenAddress))
}
