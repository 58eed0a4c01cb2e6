package types

import "time"

// CandidateStatus is the lifecycle state of a discovered token.
type CandidateStatus string

const (
	StatusPending CandidateStatus = "pending"
	StatusBought  CandidateStatus = "bought"
	StatusIgnored CandidateStatus = "ignored"
	StatusError   CandidateStatus = "error"
)

// Candidate is a token discovered via a creation event, pending a
// reputation-based admission decision. Status transitions are monotonic
// except pending<->error, which is retryable.
type Candidate struct {
	TokenAddress    string          `json:"tokenAddress"`    // normalized lowercase key
	AddressChecksum string          `json:"addressChecksum"` // EIP-55 display form
	CurveIndex      int             `json:"curveIndex"`
	Multiplier      string          `json:"multiplier"`
	TxHash          string          `json:"txHash"` // originating creation tx
	CreatedAt       time.Time       `json:"createdAt"`
	LastChecked     time.Time       `json:"lastChecked"`
	Status          CandidateStatus `json:"status"`

	CreatorHandle string `json:"creatorHandle,omitempty"`
	FollowerCount int64  `json:"followerCount"`
	IsVerified    bool   `json:"isVerified"`

	BoughtTxHash string     `json:"boughtTxHash,omitempty"`
	BoughtAt     *time.Time `json:"boughtAt,omitempty"`
	IgnoredAt    *time.Time `json:"ignoredAt,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
	PollAttempts int        `json:"pollAttempts"`
}
