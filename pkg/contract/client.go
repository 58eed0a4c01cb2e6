package contract

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Receipt is the confirmation surface the trading layer consumes.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Status      uint64
}

// Client submits share trades against the bonding-curve contract and
// delivers its Trade events. Calls and submissions go over the HTTP RPC
// endpoint; event subscriptions use the websocket endpoint.
type Client struct {
	eth      *ethclient.Client
	wsEth    *ethclient.Client
	abi      abi.ABI
	address  common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	feeMult  float64
	logger   *zap.Logger
	tradeSig common.Hash
}

// Config holds contract client configuration.
type Config struct {
	RPCURL          string
	WSURL           string // falls back to RPCURL when empty
	ContractAddress string
	PrivateKeyHex   string
	ChainID         int64
	FeeMultiplier   float64
	Logger          *zap.Logger
}

// NewClient dials both endpoints and prepares the signing key.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url cannot be empty")
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	wsURL := cfg.WSURL
	if wsURL == "" {
		wsURL = cfg.RPCURL
	}
	wsEth, err := ethclient.DialContext(ctx, wsURL)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("dial ws rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		eth.Close()
		wsEth.Close()
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	parsed := mustParseABI()

	c := &Client{
		eth:      eth,
		wsEth:    wsEth,
		abi:      parsed,
		address:  common.HexToAddress(cfg.ContractAddress),
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(cfg.ChainID),
		feeMult:  cfg.FeeMultiplier,
		logger:   cfg.Logger,
		tradeSig: parsed.Events["Trade"].ID,
	}

	cfg.Logger.Info("contract-client-ready",
		zap.String("contract", c.address.Hex()),
		zap.String("wallet", c.from.Hex()),
		zap.Int64("chain-id", cfg.ChainID))

	return c, nil
}

// Wallet returns the sender address derived from the signing key.
func (c *Client) Wallet() common.Address {
	return c.from
}

// BuyPriceAfterFee quotes the total cost of buying amount shares of subject.
func (c *Client) BuyPriceAfterFee(ctx context.Context, subject common.Address, amount uint64) (*big.Int, error) {
	data, err := c.abi.Pack("getBuyPriceAfterFee", subject, new(big.Int).SetUint64(amount))
	if err != nil {
		return nil, fmt.Errorf("pack getBuyPriceAfterFee: %w", err)
	}

	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getBuyPriceAfterFee: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}

// SubmitBuy encodes, prices, signs, and submits a buyShares transaction, then
// waits for one confirmation. Revert-kind classification is the caller's job
// via ClassifyRevert.
func (c *Client) SubmitBuy(ctx context.Context, subject common.Address, amount uint64, curveIndex uint8) (*Receipt, error) {
	price, err := c.BuyPriceAfterFee(ctx, subject, amount)
	if err != nil {
		return nil, err
	}

	data, err := c.abi.Pack("buyShares", subject, new(big.Int).SetUint64(amount), curveIndex)
	if err != nil {
		return nil, fmt.Errorf("pack buyShares: %w", err)
	}

	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.from,
		To:    &c.address,
		Value: price,
		Data:  data,
	})
	if err != nil {
		if classified := ClassifyRevert(err); classified != err {
			return nil, classified
		}
		return nil, fmt.Errorf("%w: %v", ErrGasEstimation, err)
	}

	return c.submit(ctx, data, price, gas)
}

// EstimateSellGas estimates gas for a sellShares call. The two known revert
// reasons surface here before any transaction is submitted.
func (c *Client) EstimateSellGas(ctx context.Context, subject common.Address, amount uint64) (uint64, error) {
	data, err := c.abi.Pack("sellShares", subject, new(big.Int).SetUint64(amount))
	if err != nil {
		return 0, fmt.Errorf("pack sellShares: %w", err)
	}

	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.address,
		Data: data,
	})
	if err != nil {
		return 0, err
	}

	return gas, nil
}

// SubmitSell submits a sellShares transaction with an explicit gas limit and
// waits for one confirmation.
func (c *Client) SubmitSell(ctx context.Context, subject common.Address, amount uint64, gasLimit uint64) (*Receipt, error) {
	data, err := c.abi.Pack("sellShares", subject, new(big.Int).SetUint64(amount))
	if err != nil {
		return nil, fmt.Errorf("pack sellShares: %w", err)
	}

	return c.submit(ctx, data, nil, gasLimit)
}

// submit signs and sends a dynamic-fee transaction and waits for it to mine.
func (c *Client) submit(ctx context.Context, data []byte, value *big.Int, gasLimit uint64) (*Receipt, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	tipCap, feeCap, err := c.suggestFees(ctx)
	if err != nil {
		return nil, err
	}

	if value == nil {
		value = new(big.Int)
	}

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &c.address,
		Value:     value,
		Data:      data,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}

	err = c.eth.SendTransaction(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	c.logger.Info("tx-submitted",
		zap.String("tx-hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas-limit", gasLimit))

	receipt, err := bind.WaitMined(ctx, c.eth, signed)
	if err != nil {
		return nil, fmt.Errorf("wait mined: %w", err)
	}

	return &Receipt{
		TxHash:      signed.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Status:      receipt.Status,
	}, nil
}

// suggestFees computes the EIP-1559 fee caps: the network-suggested tip
// scaled by the configured multiplier, and a fee cap of twice the current
// base fee plus the tip, floored so maxFee >= priority fee.
func (c *Client) suggestFees(ctx context.Context) (tipCap, feeCap *big.Int, err error) {
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest gas tip: %w", err)
	}

	scaled := new(big.Float).Mul(new(big.Float).SetInt(tip), big.NewFloat(c.feeMult))
	tipCap, _ = scaled.Int(nil)

	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("head header: %w", err)
	}

	feeCap = new(big.Int).Set(tipCap)
	if header.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(header.BaseFee, big.NewInt(2)))
	}
	if feeCap.Cmp(tipCap) < 0 {
		feeCap.Set(tipCap)
	}

	return tipCap, feeCap, nil
}

// WatchTrades subscribes to the contract's Trade events and decodes each log
// onto sink. The returned subscription reports transport errors on Err().
func (c *Client) WatchTrades(ctx context.Context, sink chan<- *TradeEvent) (ethereum.Subscription, error) {
	logs := make(chan ethtypes.Log, 128)

	query := ethereum.FilterQuery{
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{c.tradeSig}},
	}

	sub, err := c.wsEth.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, fmt.Errorf("subscribe trade logs: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case log, ok := <-logs:
				if !ok {
					return
				}
				event, parseErr := parseTradeLog(c.abi, log)
				if parseErr != nil {
					c.logger.Warn("trade-log-unparseable", zap.Error(parseErr))
					continue
				}
				select {
				case sink <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return sub, nil
}

// BlockNumber returns the current chain head. The monitor uses it both for
// checkpoint defaults and as a liveness probe.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

// Close releases both RPC connections.
func (c *Client) Close() {
	c.eth.Close()
	c.wsEth.Close()
}
