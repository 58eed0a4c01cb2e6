package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sharehunt/shares-sniper/internal/store"
)

// cliStores bundles read-only store access for the inspection commands,
// opened from the same environment the running bot uses.
type cliStores struct {
	ledger     store.PositionLedger
	candidates store.CandidateStore
	closer     func() error
}

func openStores() (*cliStores, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	mode := os.Getenv("STORAGE_MODE")
	if mode == "" {
		mode = "file"
	}

	logger := zap.NewNop()

	if mode == "postgres" {
		pg, err := store.NewPostgresStore(&store.PostgresConfig{
			Host:     envOr("POSTGRES_HOST", "localhost"),
			Port:     envOr("POSTGRES_PORT", "5432"),
			User:     envOr("POSTGRES_USER", "sniper"),
			Password: envOr("POSTGRES_PASSWORD", "sniper123"),
			Database: envOr("POSTGRES_DB", "shares_sniper"),
			SSLMode:  envOr("POSTGRES_SSLMODE", "disable"),
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return &cliStores{
			ledger:     pg.Positions(),
			candidates: pg.Candidates(),
			closer:     pg.Close,
		}, nil
	}

	fs, err := store.NewFileStore(envOr("FILE_DATA_DIR", "data"), logger)
	if err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}
	return &cliStores{
		ledger:     fs.Positions(),
		candidates: fs.Candidates(),
		closer:     fs.Close,
	}, nil
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
