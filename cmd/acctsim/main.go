package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/rustyeddy/accountsim/cmd/acctsim/cmd"
)

func main() {
	// Optional .env for ACCT_* overrides; absence is fine.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
