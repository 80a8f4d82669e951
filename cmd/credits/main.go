package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"adgen/internal/bootstrap"
	"adgen/internal/infra"
)

func main() {
	var (
		userFlag   string
		keyFlag    string
		amountFlag int
		showFlag   bool
	)
	flag.StringVar(&userFlag, "user", "", "user ID that owns the balance")
	flag.StringVar(&keyFlag, "key", "", "key ID the balance is tied to")
	flag.IntVar(&amountFlag, "amount", 10, "credits to grant")
	flag.BoolVar(&showFlag, "show", false, "print the balance without granting")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(userFlag)
	keyID := strings.TrimSpace(keyFlag)
	if userID == "" || keyID == "" {
		exitWithError(errors.New("-user and -key are required"))
	}
	if !showFlag && amountFlag <= 0 {
		exitWithError(errors.New("-amount must be positive"))
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	if cfg.Ledger == infra.BackendMemory {
		exitWithError(errors.New("LEDGER=memory is process local; use postgres or redis"))
	}
	// Only the ledger is needed; skip the record store's own connection.
	cfg.RecordStore = infra.BackendMemory

	logger := infra.NewLogger("cli").With().Str("cmd", "credits").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backends, err := bootstrap.Open(ctx, cfg, logger, bootstrap.Parts{Ledger: true})
	if err != nil {
		exitWithError(fmt.Errorf("failed to open ledger: %w", err))
	}
	defer backends.Close()

	var balance int
	if showFlag {
		balance, err = backends.Ledger.Balance(ctx, userID, keyID)
	} else {
		balance, err = backends.Ledger.Credit(ctx, userID, keyID, amountFlag)
	}
	if err != nil {
		exitWithError(fmt.Errorf("ledger update failed: %w", err))
	}

	fmt.Printf("user=%s key=%s ledger=%s balance=%d\n", userID, keyID, cfg.Ledger, balance)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
