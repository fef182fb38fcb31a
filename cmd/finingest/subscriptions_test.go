package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/finance-ingest/internal/config"
)

func TestChargeSource_LocalStatements(t *testing.T) {
	t.Setenv("FININGEST_REASONING_BACKEND", "none")
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	csv := "Trans. Date,Post Date,Description,Amount,Category\n" +
		"01/10/2024,01/11/2024,SPOTIFY USA,10.99,Services\n" +
		"02/10/2024,02/11/2024,SPOTIFY USA,10.99,Services\n" +
		"03/10/2024,03/11/2024,SPOTIFY USA,10.99,Services\n" +
		"03/12/2024,03/13/2024,HARDWARE STORE,42.10,Merchandise\n"
	path := filepath.Join(dir, "discover.csv")
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatal(err)
	}

	src := &chargeSource{min: 2}
	charges, err := src.charges(context.Background(), []interface{}{cfg}, []string{path})
	if err != nil {
		t.Fatalf("charges() error = %v", err)
	}
	if len(charges) != 1 {
		t.Fatalf("charges = %+v, want one subscription", charges)
	}
	if charges[0].ChargeCount != 3 || charges[0].Frequency != "monthly" {
		t.Errorf("charge = %+v", charges[0])
	}
}

func TestChargeSource_MissingFile(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	src := &chargeSource{}
	if _, err := src.charges(context.Background(), []interface{}{cfg}, []string{filepath.Join(t.TempDir(), "nope.csv")}); err == nil {
		t.Error("expected an error for a missing statement")
	}
}
