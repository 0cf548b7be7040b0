package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/JeredArc/jeredmgr/internal/cmd"
)

// relaunchEnv guards against relaunch recursion: a process started by the
// self-update handoff never hands off again.
const relaunchEnv = "JEREDMGR_RELAUNCH"

func main() {
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	if cmd.RestartRequested() && os.Getenv(relaunchEnv) == "" {
		relaunch()
	}

	if err != nil {
		os.Exit(1)
	}
}

// relaunch replaces the running process with a freshly started copy of the
// just-updated executable, preserving the original arguments. On success
// it never returns.
func relaunch() {
	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: locating executable for relaunch: %v\n", err)
		return
	}
	env := append(os.Environ(), relaunchEnv+"=1")
	if err := syscall.Exec(exe, os.Args, env); err != nil {
		fmt.Fprintf(os.Stderr, "Error: relaunch failed: %v\n", err)
	}
}
