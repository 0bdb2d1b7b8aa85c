// FILE: src/cmd/logpulse/background.go
package main

import (
	"os"
	"os/exec"
	"syscall"
)

// Internal marker so the re-invoked child knows it is the detached
// process and must not re-detach.
const backgroundEnvMarker = "LOGPULSE_BACKGROUND"

func isBackgroundProcess() bool {
	return os.Getenv(backgroundEnvMarker) == "1"
}

// runInBackground re-invokes the same command line as a detached
// session leader with the marker set, then returns so the foreground
// process can exit.
func runInBackground() (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), backgroundEnvMarker+"=1")
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	return pid, cmd.Process.Release()
}
