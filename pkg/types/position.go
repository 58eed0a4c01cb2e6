package types

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Purchase records a single confirmed buy that contributed to a position.
type Purchase struct {
	Amount    uint64    `json:"amount"`
	TxHash    string    `json:"txHash"`
	Timestamp time.Time `json:"timestamp"`
}

// Position is the owned-share record for one subject token.
// TotalAmount always equals the sum of purchase amounts minus sold amounts
// and never goes negative; the record is deleted when it reaches zero.
type Position struct {
	TokenAddress string     `json:"tokenAddress"` // normalized lowercase key
	TotalAmount  uint64     `json:"totalAmount"`
	Purchases    []Purchase `json:"purchases"`
}

// NormalizeAddress lowercases a hex address so it can be used as a
// case-insensitive store key.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ChecksumAddress returns the EIP-55 display form of an address.
func ChecksumAddress(addr string) string {
	return common.HexToAddress(addr).Hex()
}
