package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sharehunt/shares-sniper/pkg/httpserver"
	"github.com/sharehunt/shares-sniper/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running bot for its operational snapshot",
	Long: `Queries the running bot's status endpoint and displays candidate
counts, open positions, the executor's busy/queue state, and the event
monitor's health.

The bot must be running; the endpoint address is derived from HTTP_PORT
(or the --addr flag).`,
	RunE: runShowStatus,
}

//nolint:gochecknoglobals // Cobra boilerplate
var statusAddr string

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "Bot address (default localhost:$HTTP_PORT)")
}

func runShowStatus(cmd *cobra.Command, args []string) error {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	addr := statusAddr
	if addr == "" {
		addr = "localhost:" + envOr("HTTP_PORT", "8080")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/api/status")
	if err != nil {
		return fmt.Errorf("query status endpoint: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status endpoint returned %s", resp.Status)
	}

	var status httpserver.StatusResponse
	err = json.NewDecoder(resp.Body).Decode(&status)
	if err != nil {
		return fmt.Errorf("decode status response: %w", err)
	}

	displayStatus(&status)
	return nil
}

func displayStatus(status *httpserver.StatusResponse) {
	execState := "idle"
	if status.Executor.Busy {
		execState = "busy"
	}
	monState := "up"
	if status.Monitor.Fatal {
		monState = "FATAL"
	} else if !status.Monitor.Monitoring {
		monState = "stopped"
	}

	fmt.Printf("Executor: %s (sell queue %d, deferred %d)\n",
		execState, status.Executor.QueueDepth, status.Executor.Deferred)
	fmt.Printf("Monitor:  %s (%d events, checkpoint block %d, %d reconnects)\n",
		monState, status.Monitor.EventCount,
		status.Monitor.CheckpointBlock, status.Monitor.Reconnects)
	fmt.Printf("Candidates: pending:%d error:%d bought:%d ignored:%d\n\n",
		status.Candidates[types.StatusPending],
		status.Candidates[types.StatusError],
		status.Candidates[types.StatusBought],
		status.Candidates[types.StatusIgnored])

	if len(status.Positions) == 0 {
		fmt.Println("No open positions")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Token", "Shares", "Buys")
	for _, pos := range status.Positions {
		table.Append(
			types.ChecksumAddress(pos.TokenAddress),
			fmt.Sprintf("%d", pos.TotalAmount),
			fmt.Sprintf("%d", pos.Purchases),
		)
	}
	table.Render()
}
