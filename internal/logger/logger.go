// Package logger sets up the global zerolog logger and carries request and
// game identifiers into log lines.
package logger

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey struct{}

const (
	milliTimeFormat = "2006-01-02T15:04:05.000Z07:00"
	callerWidth     = 24
	maxBodyLog      = 1000
)

// Options controls the global logger.
type Options struct {
	Level string // zerolog level name, info when empty or unknown
	JSON  bool   // one JSON object per line instead of console output
	File  string // optional file that receives a copy of every line
	Color bool
}

// Init configures the global logger. The returned closer releases the log
// file, if one was opened.
func Init(opts Options) (io.Closer, error) {
	zerolog.TimeFieldFormat = milliTimeFormat
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	zerolog.CallerMarshalFunc = padCaller

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: milliTimeFormat, NoColor: !opts.Color}
	}
	var closer io.Closer = io.NopCloser(nil)
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
		closer = f
	}

	log.Logger = zerolog.New(out).With().Timestamp().Caller().Str("service", "machiavelli").Logger()
	log.Info().Str("level", level.String()).Bool("json", opts.JSON).Msg("Logger initialized")
	return closer, nil
}

func padCaller(_ uintptr, file string, line int) string {
	path := fmt.Sprintf("%s:%d", filepath.Base(file), line)
	if len(path) >= callerWidth {
		return path[len(path)-callerWidth:]
	}
	return path + strings.Repeat(" ", callerWidth-len(path))
}

// NewRequestID returns a random 8-character alphanumeric id.
func NewRequestID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req%05d", time.Now().UnixNano()%100000)
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// WithRequestID stores a request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// RequestIDFromContext returns the request id in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// ForRequest returns the global logger tagged with the request id of ctx.
func ForRequest(ctx context.Context) zerolog.Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return log.Logger.With().Str("requestId", id).Logger()
	}
	return log.Logger
}

// ForGame returns a logger for work on one game, carrying the request ID
// when ctx has one.
func ForGame(ctx context.Context, gameID string) zerolog.Logger {
	return ForRequest(ctx).With().Str("gameId", gameID).Logger()
}

// LogBody writes body under field at debug level, cut at 1000 bytes.
func LogBody(l zerolog.Logger, field string, body []byte) {
	if len(body) == 0 {
		return
	}
	ev := l.Debug()
	if len(body) > maxBodyLog {
		body = body[:maxBodyLog]
		ev = ev.Bool("truncated", true)
	}
	ev.Str(field, string(body)).Msg("Body")
}
