package config

import "testing"

func TestParseCSV(t *testing.T) {
	got := parseCSV("a, b, ,c,,")
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected values: %#v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("CONFIG_PATH", "")

	cfg, problems := Load("booking-api", 3000)
	for _, p := range problems {
		t.Fatalf("unexpected problem: %s %s", p.Field, p.Message)
	}
	if cfg.TxTimeoutSec != 10 {
		t.Fatalf("expected tx timeout default 10, got %d", cfg.TxTimeoutSec)
	}
	if cfg.OutboxScanSec != 5 || cfg.OutboxBatchSize != 50 || cfg.OutboxMaxRetries != 3 {
		t.Fatalf("unexpected outbox defaults: %d %d %d", cfg.OutboxScanSec, cfg.OutboxBatchSize, cfg.OutboxMaxRetries)
	}
	if cfg.SlotGranularityMins != 15 || cfg.BookingNumberRetries != 5 {
		t.Fatalf("unexpected booking defaults: %d %d", cfg.SlotGranularityMins, cfg.BookingNumberRetries)
	}
}

func TestLoadBookingOverrides(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("SLOT_GRANULARITY_MINUTES", "30")
	t.Setenv("OUTBOX_MAX_RETRIES", "5")
	t.Setenv("TX_TIMEOUT_SECONDS", "20")

	cfg, problems := Load("booking-api", 3000)
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %#v", problems)
	}
	if cfg.SlotGranularityMins != 30 {
		t.Fatalf("expected granularity 30, got %d", cfg.SlotGranularityMins)
	}
	if cfg.OutboxMaxRetries != 5 {
		t.Fatalf("expected outbox retries 5, got %d", cfg.OutboxMaxRetries)
	}
	if cfg.TxTimeoutSec != 20 {
		t.Fatalf("expected tx timeout 20, got %d", cfg.TxTimeoutSec)
	}
}

func TestLoadRejectsBadInteger(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")

	_, problems := Load("booking-api", 3000)
	found := false
	for _, p := range problems {
		if p.Field == "OUTBOX_BATCH_SIZE" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected OUTBOX_BATCH_SIZE problem, got %#v", problems)
	}
}
