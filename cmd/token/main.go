package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"adgen/internal/middleware"
)

func main() {
	var (
		userFlag string
		keyFlag  string
		ttlFlag  time.Duration
	)
	flag.StringVar(&userFlag, "user", "", "user ID placed in the sub claim")
	flag.StringVar(&keyFlag, "key", "default", "key ID the user's credits are tied to")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	flag.Parse()

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required")
		os.Exit(1)
	}
	user := strings.TrimSpace(userFlag)
	if user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(1)
	}

	token, err := middleware.SignToken(secret, os.Getenv("JWT_ISSUER"), user, strings.TrimSpace(keyFlag), ttlFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
