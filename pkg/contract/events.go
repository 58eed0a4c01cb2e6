package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// sharesABI is the subset of the shares contract the bot touches: the two
// trade functions, the price quote, and the Trade event.
const sharesABI = `[
	{"type":"function","name":"buyShares","stateMutability":"payable","inputs":[{"name":"subject","type":"address"},{"name":"amount","type":"uint256"},{"name":"curveIndex","type":"uint8"}],"outputs":[]},
	{"type":"function","name":"sellShares","stateMutability":"nonpayable","inputs":[{"name":"subject","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getBuyPriceAfterFee","stateMutability":"view","inputs":[{"name":"subject","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"Trade","anonymous":false,"inputs":[
		{"name":"trader","type":"address","indexed":true},
		{"name":"subject","type":"address","indexed":true},
		{"name":"isBuy","type":"bool","indexed":false},
		{"name":"shareAmount","type":"uint256","indexed":false},
		{"name":"ethAmount","type":"uint256","indexed":false},
		{"name":"supply","type":"uint256","indexed":false},
		{"name":"multiplier","type":"uint256","indexed":false}]},
	{"type":"error","name":"LastShareUnsellable","inputs":[]},
	{"type":"error","name":"InsufficientShares","inputs":[]}
]`

// TradeEvent is one decoded on-chain trade.
type TradeEvent struct {
	Trader      common.Address
	Subject     common.Address
	IsBuy       bool
	ShareAmount *big.Int
	EthAmount   *big.Int
	Supply      *big.Int
	Multiplier  *big.Int
	TxHash      common.Hash
	LogIndex    uint
	BlockNumber uint64
}

// DedupKey is the composite identity of an event delivery; the same
// (txHash, logIndex) pair must only be processed once.
func (e *TradeEvent) DedupKey() string {
	return fmt.Sprintf("%s:%d", e.TxHash.Hex(), e.LogIndex)
}

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(sharesABI))
	if err != nil {
		panic(fmt.Sprintf("parse shares ABI: %v", err))
	}
	return parsed
}

// parseTradeLog decodes a raw log into a TradeEvent.
func parseTradeLog(parsed abi.ABI, log ethtypes.Log) (*TradeEvent, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("trade log missing indexed topics")
	}

	var data struct {
		IsBuy       bool
		ShareAmount *big.Int
		EthAmount   *big.Int
		Supply      *big.Int
		Multiplier  *big.Int
	}

	err := parsed.UnpackIntoInterface(&data, "Trade", log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack trade log: %w", err)
	}

	return &TradeEvent{
		Trader:      common.BytesToAddress(log.Topics[1].Bytes()),
		Subject:     common.BytesToAddress(log.Topics[2].Bytes()),
		IsBuy:       data.IsBuy,
		ShareAmount: data.ShareAmount,
		EthAmount:   data.EthAmount,
		Supply:      data.Supply,
		Multiplier:  data.Multiplier,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
		BlockNumber: log.BlockNumber,
	}, nil
}

// CurveIndexForMultiplier maps the event multiplier onto the contract's
// pricing-curve variants. Unknown multipliers fall back to the base curve.
func CurveIndexForMultiplier(multiplier *big.Int) int {
	if multiplier == nil {
		return 0
	}
	switch multiplier.Int64() {
	case 5:
		return 1
	case 10:
		return 2
	default:
		return 0
	}
}
