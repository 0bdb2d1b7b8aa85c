// FILE: src/cmd/logpulse/help.go
package main

const helpText = `LogPulse: host log collection and sync agent.

Usage:
  logpulse <command> [options]

Commands:
  scan                     Discover log files without watching them
  watch [path|all]         Tail log files into the local buffer
                           (no argument: list active sessions)
  sync                     Deliver buffered records to the server
  status                   Show agent sessions, watches and buffer depth
  stop [path|all]          Stop running background sessions
  auth add-key|status|logout
                           Manage the server connection key
  version                  Display version information
  help                     Display this help message

Common Options:
  -quiet                   Suppress all operator output
  -background              Detach the command as a daemon (watch, sync)

Sync Options:
  -once                    Run a single sync pass and exit
  -interval <seconds>      Continuous sync interval (overrides config)

Scan Options:
  -shallow                 Check well-known locations only, skip the walk

Configuration Sources (Precedence: Env > File > Defaults):
  - Environment variables use the LOGPULSE_ prefix
  - TOML configuration file at ~/.config/logpulse.toml

Examples:
  # Discover log files on this host
  logpulse scan

  # Watch everything discovered, detached
  logpulse watch all -background

  # Watch one file in the foreground (q stops, b detaches)
  logpulse watch /var/log/auth.log

  # Store a connection key, then ship the buffer once
  logpulse auth add-key <key> -endpoint https://ingest.example.com
  logpulse sync -once

  # Continuous background sync every 5 minutes
  logpulse sync -background -interval 300
`
