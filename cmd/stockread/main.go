package main

import (
	"os"

	"github.com/wonny/stockread/cmd/stockread/commands"
)

// main is the entry point for the stockread CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/stockread [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
