// File: internal/logging/logger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// zerolog backend for api.Logger.

package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Zerolog implements api.Logger on top of a zerolog.Logger.
type Zerolog struct {
	l zerolog.Logger
}

// NewZerolog writes human-readable lines to w (stdout when nil), tagging
// every line with app. Colors are used only when w is a terminal.
func NewZerolog(app string, w io.Writer) *Zerolog {
	if w == nil {
		w = os.Stdout
	}
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
	return &Zerolog{l: zerolog.New(output).With().Timestamp().Str("app", app).Logger()}
}

// FromZerolog wraps an existing logger.
func FromZerolog(l zerolog.Logger) *Zerolog { return &Zerolog{l: l} }

// Level returns a copy that drops events below lvl.
func (z *Zerolog) Level(lvl zerolog.Level) *Zerolog {
	return &Zerolog{l: z.l.Level(lvl)}
}

// Zerolog returns the underlying logger.
func (z *Zerolog) Zerolog() zerolog.Logger { return z.l }

func (z *Zerolog) Debug(msg string, args ...any) { z.l.Debug().Fields(pairs(args)).Msg(msg) }
func (z *Zerolog) Info(msg string, args ...any)  { z.l.Info().Fields(pairs(args)).Msg(msg) }
func (z *Zerolog) Warn(msg string, args ...any)  { z.l.Warn().Fields(pairs(args)).Msg(msg) }
func (z *Zerolog) Error(msg string, args ...any) { z.l.Error().Fields(pairs(args)).Msg(msg) }

// pairs turns slog-style alternating key/value args into zerolog fields.
// A dangling value is logged under "!BADKEY", as slog does.
func pairs(args []any) []any {
	out := make([]any, 0, len(args)+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			out = append(out, "!BADKEY", value(args[i]))
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		out = append(out, key, value(args[i+1]))
	}
	return out
}

func value(v any) any {
	switch v := v.(type) {
	case error:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return v
}
