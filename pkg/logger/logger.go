// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package logger provides a structured logger constructor and the RunInfo
// type used to report lifecycle-loop outcomes back to the main goroutine.
package logger

import (
	"io"
	"log/slog"
)

// RunInfo carries the outcome of a single loop cycle.
type RunInfo struct {
	Level   slog.Level
	Details []slog.Attr
	Message string
}

// New returns a JSON slog logger writing to w with the given level.
func New(w io.Writer, levelText string) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelText)); err != nil {
		return nil, err
	}

	logHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})

	return slog.New(logHandler), nil
}
