package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RPC_URL", "https://rpc.example.com")
	t.Setenv("SHARES_CONTRACT_ADDRESS", "0x1111111111111111111111111111111111111111")
}

func TestLoadFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.HTTPPort)
	}
	if cfg.StorageMode != "file" {
		t.Errorf("expected file storage default, got %s", cfg.StorageMode)
	}
	if cfg.EvictionPolicy != EvictDelete {
		t.Errorf("expected delete eviction default, got %s", cfg.EvictionPolicy)
	}
	if cfg.BuyAmount != 1 {
		t.Errorf("expected buy amount 1, got %d", cfg.BuyAmount)
	}
	if cfg.FollowerThreshold != 10000 {
		t.Errorf("expected follower threshold 10000, got %d", cfg.FollowerThreshold)
	}
	if cfg.RequireVerified {
		t.Error("verification must not be required by default")
	}
}

func TestLoadFromEnvRequiresRPC(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("SHARES_CONTRACT_ADDRESS", "0x1111111111111111111111111111111111111111")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("missing RPC_URL must fail validation")
	}
}

func TestValidateEnforcesScanIntervalFloor(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCAN_INTERVAL", "100ms")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ScanInterval != 2*time.Second {
		t.Errorf("expected the 2s floor, got %s", cfg.ScanInterval)
	}
}

func TestValidateRejectsUnknownEvictionPolicy(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CANDIDATE_EVICTION_POLICY", "burn")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("unknown eviction policy must fail validation")
	}
}

func TestValidateRejectsUnknownStorageMode(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_MODE", "redis")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("unknown storage mode must fail validation")
	}
}

func TestValidateRejectsLowFeeMultiplier(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FEE_MULTIPLIER", "0.5")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("fee multiplier below 1.0 must fail validation")
	}
}

func TestValidateRejectsZeroBuyAmount(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BUY_AMOUNT", "0")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("zero buy amount must fail validation")
	}
}

func TestMalformedNumbersFallBackToDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FOLLOWER_THRESHOLD", "lots")
	t.Setenv("SCAN_INTERVAL", "soon")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FollowerThreshold != 10000 {
		t.Errorf("expected default threshold, got %d", cfg.FollowerThreshold)
	}
	if cfg.ScanInterval != 5*time.Second {
		t.Errorf("expected default scan interval, got %s", cfg.ScanInterval)
	}
}
