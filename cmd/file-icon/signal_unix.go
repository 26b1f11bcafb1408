//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifyExtraSignals stops extraction on termination or hangup.
func notifyExtraSignals(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGHUP)
}
