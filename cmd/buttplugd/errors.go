package main

import "errors"

// ErrNoDeviceAddress indicates a subcommand needing a target device was
// run without one.
var ErrNoDeviceAddress = errors.New("device address required")

// FormatUserError renders err for display on stderr, without a Go error
// trace.
func FormatUserError(err error) string {
	return err.Error()
}
