package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sharehunt/shares-sniper/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Display all held positions",
	Long: `Reads the position ledger from the configured storage backend and
displays every token the bot currently holds, with the purchase history
behind each position.

Examples:
  # Show all positions (default table format)
  shares-sniper positions

  # Export to JSON
  shares-sniper positions --format json > positions.json`,
	RunE: runShowPositions,
}

//nolint:gochecknoglobals // Cobra boilerplate
var positionsFormat string

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(positionsCmd)
	positionsCmd.Flags().StringVar(&positionsFormat, "format", "table", "Output format: table, json")
}

func runShowPositions(cmd *cobra.Command, args []string) error {
	if positionsFormat != "table" && positionsFormat != "json" {
		return fmt.Errorf("invalid format: %s (valid: table, json)", positionsFormat)
	}

	stores, err := openStores()
	if err != nil {
		return err
	}
	defer func() {
		_ = stores.closer()
	}()

	positions, err := stores.ledger.List(context.Background())
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}

	if len(positions) == 0 {
		fmt.Println("No open positions")
		return nil
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].TotalAmount > positions[j].TotalAmount
	})

	if positionsFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(positions)
		if err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		return nil
	}

	displayPositionsTable(positions)
	return nil
}

func displayPositionsTable(positions []types.Position) {
	var totalShares uint64

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Token", "Shares", "Buys", "First Tx")

	for _, pos := range positions {
		firstTx := ""
		if len(pos.Purchases) > 0 {
			firstTx = pos.Purchases[0].TxHash
		}
		table.Append(
			types.ChecksumAddress(pos.TokenAddress),
			fmt.Sprintf("%d", pos.TotalAmount),
			fmt.Sprintf("%d", len(pos.Purchases)),
			firstTx,
		)
		totalShares += pos.TotalAmount
	}

	table.Render()
	fmt.Printf("\n%d positions, %d shares total\n", len(positions), totalShares)
}
