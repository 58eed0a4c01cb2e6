package contract

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Sentinel errors for the revert sub-kinds the executor branches on.
var (
	// ErrLastShare means the contract refuses to liquidate the last unit of
	// a subject's supply. Callers treat it as a soft success and defer.
	ErrLastShare = errors.New("contract: cannot sell the last share")

	// ErrInsufficientShares means the wallet holds fewer shares than the
	// sell asked for. A hard failure; retrying will not help.
	ErrInsufficientShares = errors.New("contract: insufficient shares")

	// ErrInsufficientFunds means the wallet cannot cover value plus gas.
	ErrInsufficientFunds = errors.New("contract: insufficient funds")

	// ErrGasEstimation wraps estimation failures that decoded to no known
	// revert reason.
	ErrGasEstimation = errors.New("contract: gas estimation failed")
)

// Custom-error selectors, computed once from the ABI error signatures.
var (
	selLastShare          = errorSelector("LastShareUnsellable()")
	selInsufficientShares = errorSelector("InsufficientShares()")
)

func errorSelector(sig string) string {
	return "0x" + hex.EncodeToString(crypto.Keccak256([]byte(sig))[:4])
}

// dataError is implemented by go-ethereum RPC errors that carry the raw
// revert payload.
type dataError interface {
	ErrorData() interface{}
}

// ClassifyRevert maps a provider error onto one of the sentinel errors.
// Structured revert data is decoded by selector first; the lowercase
// substring match only remains as a fallback for opaque revert messages.
// Errors that match nothing are returned unchanged.
func ClassifyRevert(err error) error {
	if err == nil {
		return nil
	}

	var de dataError
	if errors.As(err, &de) {
		if data, ok := de.ErrorData().(string); ok {
			switch {
			case strings.HasPrefix(data, selLastShare):
				return ErrLastShare
			case strings.HasPrefix(data, selInsufficientShares):
				return ErrInsufficientShares
			}
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "cannot sell the last share"),
		strings.Contains(msg, "last share"):
		return ErrLastShare
	case strings.Contains(msg, "insufficient shares"):
		return ErrInsufficientShares
	case strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "insufficient balance"):
		return ErrInsufficientFunds
	}

	return err
}
