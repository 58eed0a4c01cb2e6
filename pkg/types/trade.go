package types

// TradeCode classifies the outcome of a buy or sell at the executor boundary.
// Callers branch on the code instead of inspecting raw provider errors.
type TradeCode string

const (
	CodeOK                 TradeCode = "OK"
	CodeBusy               TradeCode = "BUSY"
	CodeNoHolding          TradeCode = "NO_HOLDING"
	CodeInsufficientFunds  TradeCode = "INSUFFICIENT_FUNDS"
	CodeInsufficientShares TradeCode = "INSUFFICIENT_SHARES"
	CodeLastShare          TradeCode = "LAST_SHARE_UNSELLABLE"
	CodeGasEstimation      TradeCode = "GAS_ESTIMATION_FAILED"
	CodeRolledBack         TradeCode = "TX_ROLLED_BACK"
	CodeReverted           TradeCode = "REVERTED"
	CodeNetwork            TradeCode = "NETWORK_ERROR"
)

// TradeResult is the structured outcome of a buy or sell operation.
// A deferred sell (last-share) reports Success=true with an empty TxHash.
type TradeResult struct {
	TokenAddress string    `json:"tokenAddress"`
	Success      bool      `json:"success"`
	TxHash       string    `json:"txHash,omitempty"`
	BlockNumber  uint64    `json:"blockNumber,omitempty"`
	GasUsed      uint64    `json:"gasUsed,omitempty"`
	Code         TradeCode `json:"code"`
	Error        string    `json:"error,omitempty"`
}

// Failure builds a failed TradeResult for a token.
func Failure(token string, code TradeCode, msg string) *TradeResult {
	return &TradeResult{
		TokenAddress: token,
		Success:      false,
		Code:         code,
		Error:        msg,
	}
}
