// Package main provides the Skynet chemistry assistant CLI.
//
// Usage:
//
//	skynet [flags] <command> [args]
//
// Commands:
//
//	balance   - Balance an equation and classify its neutralization
//	chat      - Talk to the chemistry tutor
//	speak     - Play a base64 PCM speech payload
//	examples  - List the example equations
//	events    - Tail balance events from Kafka
//	hash-key  - Hash a desk key for DESK_API_KEY_HASH
package main

import (
	"fmt"
	"os"

	"github.com/snappy-loop/skynet/cmd/skynet/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
