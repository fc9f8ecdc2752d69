// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package clog provides global conditional logging for the choreography
// toolchain's components: parser, analyzer, projector, runtime endpoints,
// and middleware.
package clog

import (
	"fmt"
	"log"
	"strings"
)

var enabled = false

// Enable turns on conditional log output.
func Enable() {
	enabled = true
}

// Enabled reports whether conditional logging is currently on.
func Enabled() bool {
	return enabled
}

// A CLogger represents a logger object that logs output in the manner of
// the standard logger but can be conditionally enabled. By default,
// conditional logging is disabled.
type CLogger struct {
	logger *log.Logger // standard logger with prefix
}

// New creates a new conditional logger with the given prefix.
func New(prefixFormat string, prefixArgs ...any) *CLogger {
	return &CLogger{
		log.New(
			log.Default().Writer(),
			fmt.Sprintf(prefixFormat, prefixArgs...),
			log.Ldate|log.Ltime|log.Lmicroseconds|log.Lmsgprefix,
		),
	}
}

// Printf logs output conditionally (if enabled) in the manner of
// log.Printf.
func (c *CLogger) Printf(format string, a ...any) {
	if !enabled {
		return
	}
	c.logger.Printf(format, a...)
}

// Errorf logs output unconditionally, i.e. always, in the manner of
// log.Printf.
func (c *CLogger) Errorf(format string, a ...any) {
	c.logger.Printf(format, a...)
}

// Eventf logs a structured trace event conditionally: op, peer, outcome and
// any additional key/value pairs, in the shape the Trace middleware emits
// on entry/exit of a ChoreoHandler primitive (spec §4.6).
func (c *CLogger) Eventf(op, peer, outcome string, kv ...any) {
	if !enabled {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "op=%s peer=%s outcome=%s", op, peer, outcome)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	c.logger.Print(b.String())
}
