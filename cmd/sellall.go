package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sharehunt/shares-sniper/internal/execution"
	"github.com/sharehunt/shares-sniper/pkg/config"
	"github.com/sharehunt/shares-sniper/pkg/contract"
	"github.com/sharehunt/shares-sniper/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var sellAllCmd = &cobra.Command{
	Use:   "sell-all",
	Short: "Sell every held position",
	Long: `Enumerates every position in the ledger and sells each one in turn,
pausing between tokens so transactions never race on the nonce.

This command will:
1. List all positions from the configured storage backend
2. Show a summary and ask for confirmation
3. Submit one sell per token, full amount
4. Report per-token results

Example:
  sell-all            # Sell everything with confirmation
  sell-all --yes      # Skip confirmation (use with caution!)
`,
	RunE: runSellAll,
}

//nolint:gochecknoglobals // Cobra boilerplate
var sellAllYes bool

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(sellAllCmd)
	sellAllCmd.Flags().BoolVar(&sellAllYes, "yes", false, "Skip confirmation prompt")
}

func runSellAll(cmd *cobra.Command, args []string) error {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	stores, err := openStores()
	if err != nil {
		return err
	}
	defer func() {
		_ = stores.closer()
	}()

	ctx := context.Background()

	positions, err := stores.ledger.List(ctx)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}
	if len(positions) == 0 {
		fmt.Println("No open positions")
		return nil
	}

	fmt.Printf("About to sell %d positions:\n", len(positions))
	for _, pos := range positions {
		fmt.Printf("  %s  %d shares\n", types.ChecksumAddress(pos.TokenAddress), pos.TotalAmount)
	}

	if !sellAllYes && !confirm("Proceed? [y/N]: ") {
		fmt.Println("Aborted")
		return nil
	}

	client, err := contract.NewClient(ctx, &contract.Config{
		RPCURL:          cfg.RPCURL,
		WSURL:           cfg.RPCWSURL,
		ContractAddress: cfg.ContractAddress,
		PrivateKeyHex:   cfg.PrivateKey,
		ChainID:         cfg.ChainID,
		FeeMultiplier:   cfg.FeeMultiplier,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("create contract client: %w", err)
	}
	defer client.Close()

	executor := execution.New(&execution.Config{
		Client:          client,
		Ledger:          stores.ledger,
		Logger:          logger,
		SellJobDelay:    cfg.SellJobDelay,
		SellAllPause:    cfg.SellAllPause,
		SellGasFallback: cfg.SellGasFallback,
		SellQueueSize:   cfg.SellQueueSize,
	})
	err = executor.Start(ctx)
	if err != nil {
		return fmt.Errorf("start executor: %w", err)
	}
	defer func() {
		_ = executor.Close()
	}()

	results := executor.SellAll(ctx)

	var failed int
	for _, res := range results {
		if res.Success {
			if res.Code == types.CodeLastShare {
				fmt.Printf("DEFER  %s  last share unsellable, will retry on the next external buy\n",
					types.ChecksumAddress(res.TokenAddress))
			} else {
				fmt.Printf("SOLD   %s  tx=%s\n", types.ChecksumAddress(res.TokenAddress), res.TxHash)
			}
			continue
		}
		failed++
		fmt.Printf("FAILED %s  %s: %s\n", types.ChecksumAddress(res.TokenAddress), res.Code, res.Error)
	}

	fmt.Printf("\n%d sold, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d positions could not be sold", failed)
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
