// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package build

import (
	"os"

	"github.com/btcsuite/btclog"
)

// LogType indicates the type of logging a subsystem logger should use.
type LogType byte

const (
	// LogTypeNone indicates no logging.
	LogTypeNone LogType = iota

	// LogTypeStdOut logs directly to stdout.
	LogTypeStdOut

	// LogTypeDefault delegates to the caller-supplied backend.
	LogTypeDefault
)

// String returns a human readable identifier for the logging type.
func (t LogType) String() string {
	switch t {
	case LogTypeNone:
		return "none"
	case LogTypeStdOut:
		return "stdout"
	case LogTypeDefault:
		return "default"
	default:
		return "unknown"
	}
}

// LoggingType selects which of the two subsystem logger constructions below
// NewSubLogger uses. cmd/psbtctl, a single-process CLI with no daemon-style
// log backend of its own, always runs with LogTypeStdOut.
var LoggingType = LogTypeStdOut

// NewSubLogger constructs a new subsystem logger. With LoggingType set to
// LogTypeDefault it delegates to genSubLogger, mirroring how a long-running
// daemon would hand out one logger per subsystem from a shared backend;
// with LogTypeStdOut it logs directly to stdout at LogLevel, independent of
// any shared backend, appropriate for a one-shot CLI invocation.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	switch LoggingType {
	case LogTypeDefault:
		if genSubLogger != nil {
			return genSubLogger(subsystem)
		}

	case LogTypeStdOut:
		backend := btclog.NewBackend(os.Stdout)
		logger := backend.Logger(subsystem)

		level, _ := btclog.LevelFromString(LogLevel)
		logger.SetLevel(level)

		return logger
	}

	return btclog.Disabled
}
