package cothread

import (
	"io"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// logEvent is the concrete logiface.Event implementation this package logs
// through: stumpy's JSON event, the "model" logger implementation the
// logiface ecosystem is built and tested against.
type logEvent = stumpy.Event

// NewLogger builds a structured JSON logger suitable for WithLogger,
// writing to w at the given level, using the same
// stumpy.L.New(stumpy.L.WithStumpy(...), stumpy.L.WithLevel(...)) shape the
// logiface ecosystem's own examples use.
func NewLogger(w io.Writer, level logiface.Level) *logiface.Logger[*logEvent] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	)
}

func discardLogger() *logiface.Logger[*logEvent] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(),
		stumpy.L.WithLevel(logiface.LevelDisabled),
	)
}
