package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sharehunt/shares-sniper/internal/store"
	"github.com/sharehunt/shares-sniper/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Display tracked candidates by lifecycle status",
	Long: `Reads the candidate store and displays every tracked token with its
lifecycle status, creator reputation data, and poll history.

Examples:
  # Show everything still in flight
  shares-sniper candidates

  # Include bought and ignored tokens
  shares-sniper candidates --all`,
	RunE: runShowCandidates,
}

//nolint:gochecknoglobals // Cobra boilerplate
var candidatesAll bool

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(candidatesCmd)
	candidatesCmd.AddCommand(evictCmd)

	candidatesCmd.Flags().BoolVar(&candidatesAll, "all", false, "Include bought and ignored candidates")
}

func runShowCandidates(cmd *cobra.Command, args []string) error {
	stores, err := openStores()
	if err != nil {
		return err
	}
	defer func() {
		_ = stores.closer()
	}()

	statuses := []types.CandidateStatus{types.StatusPending, types.StatusError}
	if candidatesAll {
		statuses = append(statuses, types.StatusBought, types.StatusIgnored)
	}

	candidates, err := stores.candidates.ListByStatus(context.Background(), statuses...)
	if err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}

	if len(candidates) == 0 {
		fmt.Println("No candidates found")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Token", "Status", "Creator", "Followers", "Verified", "Polls", "Age")

	now := time.Now()
	for _, c := range candidates {
		verified := ""
		if c.IsVerified {
			verified = "yes"
		}
		table.Append(
			c.AddressChecksum,
			string(c.Status),
			c.CreatorHandle,
			fmt.Sprintf("%d", c.FollowerCount),
			verified,
			fmt.Sprintf("%d", c.PollAttempts),
			now.Sub(c.CreatedAt).Round(time.Second).String(),
		)
	}

	table.Render()

	counts, err := stores.candidates.CountByStatus(context.Background())
	if err == nil {
		fmt.Printf("\npending:%d error:%d bought:%d ignored:%d\n",
			counts[types.StatusPending], counts[types.StatusError],
			counts[types.StatusBought], counts[types.StatusIgnored])
	}

	return nil
}

//nolint:gochecknoglobals // Cobra boilerplate
var evictCmd = &cobra.Command{
	Use:   "evict <token-address>",
	Short: "Remove or ignore a candidate by token address",
	Long: `Evicts a candidate from the scan loop. By default the row is deleted;
with --keep it is marked ignored instead, which keeps the record around
so a replayed creation event cannot re-register it.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvictCandidate,
}

//nolint:gochecknoglobals // Cobra boilerplate
var evictKeep bool

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	evictCmd.Flags().BoolVar(&evictKeep, "keep", false, "Mark ignored instead of deleting the row")
}

func runEvictCandidate(cmd *cobra.Command, args []string) error {
	token := types.NormalizeAddress(args[0])

	stores, err := openStores()
	if err != nil {
		return err
	}
	defer func() {
		_ = stores.closer()
	}()

	ctx := context.Background()

	candidate, err := stores.candidates.Get(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no candidate tracked for %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("get candidate: %w", err)
	}

	if evictKeep {
		now := time.Now()
		candidate.Status = types.StatusIgnored
		candidate.IgnoredAt = &now
		err = stores.candidates.Update(ctx, candidate)
		if err != nil {
			return fmt.Errorf("update candidate: %w", err)
		}
		fmt.Printf("Marked %s ignored\n", candidate.AddressChecksum)
		return nil
	}

	err = stores.candidates.Delete(ctx, token)
	if err != nil {
		return fmt.Errorf("delete candidate: %w", err)
	}
	fmt.Printf("Deleted %s\n", candidate.AddressChecksum)
	return nil
}
