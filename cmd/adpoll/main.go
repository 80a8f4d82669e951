package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"adgen/pkg/adclient"
)

func main() {
	var (
		baseURL  string
		token    string
		id       string
		req      adclient.SubmitRequest
		timeout  time.Duration
		noWait   bool
		initial  time.Duration
		maxDelay time.Duration
	)
	flag.StringVar(&baseURL, "url", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", "", "bearer token (falls back to ADGEN_TOKEN)")
	flag.StringVar(&id, "id", "", "poll an existing ad instead of submitting")
	flag.StringVar(&req.Prompt, "prompt", "", "ad prompt")
	flag.StringVar(&req.TargetAudience, "audience", "", "target audience")
	flag.StringVar(&req.BrandInfo, "brand", "", "brand information")
	flag.StringVar(&req.Style, "style", "", "style preferences")
	flag.StringVar(&req.Locale, "locale", "", "locale for the generated copy")
	flag.DurationVar(&timeout, "timeout", 15*time.Minute, "give up waiting after this long")
	flag.BoolVar(&noWait, "no-wait", false, "print the submitted ad and exit")
	flag.DurationVar(&initial, "poll-initial", 5*time.Second, "first poll interval")
	flag.DurationVar(&maxDelay, "poll-max", time.Minute, "maximum poll interval")
	flag.Parse()

	_ = godotenv.Load()
	if token == "" {
		token = os.Getenv("ADGEN_TOKEN")
	}
	if token == "" {
		exitWithError(fmt.Errorf("-token or ADGEN_TOKEN is required"))
	}

	poll := adclient.DefaultPollConfig()
	poll.Initial, poll.Max = initial, maxDelay
	client, err := adclient.New(baseURL, token, adclient.WithPollConfig(poll))
	if err != nil {
		exitWithError(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if id == "" {
		ad, err := client.Submit(ctx, req)
		if err != nil {
			exitWithError(fmt.Errorf("submit: %w", err))
		}
		fmt.Fprintf(os.Stderr, "submitted ad %s (%s)\n", ad.ID, ad.Status)
		if noWait {
			printAd(ad)
			return
		}
		id = ad.ID
	}

	ad, err := client.WaitForTerminal(ctx, id)
	if err != nil {
		exitWithError(fmt.Errorf("wait: %w", err))
	}
	printAd(ad)
	if ad.Status == adclient.StatusFailed {
		os.Exit(2)
	}
}

func printAd(ad *adclient.Ad) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(ad)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
