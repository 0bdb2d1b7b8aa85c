// FILE: src/cmd/logpulse/main.go
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for LOGPULSE_* overrides; absence is normal
	_ = godotenv.Load()

	InitOutputHandler(hasQuietArg(os.Args[1:]))

	router := NewCommandRouter()
	router.Route(os.Args)
}

func hasQuietArg(args []string) bool {
	for _, arg := range args {
		if arg == "-quiet" || arg == "--quiet" || arg == "-q" {
			return true
		}
	}
	return false
}
