//go:build windows

package main

import "os"

// notifyExtraSignals is a no-op: os.Interrupt already covers Ctrl+C and
// Ctrl+Break on Windows.
func notifyExtraSignals(_ chan<- os.Signal) {}
