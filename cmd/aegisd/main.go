package main

import (
	"github.com/joho/godotenv"

	"github.com/aegischain/aegisd/internal/cli"
)

func main() {
	// Best effort: a local .env carries the LLM API key in development.
	_ = godotenv.Load()

	cli.Execute()
}
