package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level enumerates supported logging granularities.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format enumerates supported logger output encodings.
type Format string

const (
	FormatStructured Format = "structured"
	FormatConsole    Format = "console"
)

var levelMapping = map[Level]zapcore.Level{
	LevelDebug: zapcore.DebugLevel,
	LevelInfo:  zapcore.InfoLevel,
	LevelWarn:  zapcore.WarnLevel,
	LevelError: zapcore.ErrorLevel,
}

var encodingMapping = map[Format]string{
	FormatStructured: "json",
	FormatConsole:    "console",
}

// Factory builds zap loggers with consistent configuration.
type Factory struct{}

// NewFactory constructs a logger factory.
func NewFactory() *Factory {
	return &Factory{}
}

// CreateLogger produces a logger for the requested level and format.
// Output goes to stderr so operator-facing stdout stays readable.
func (f *Factory) CreateLogger(level Level, format Format) (*zap.Logger, error) {
	zapLevel, ok := levelMapping[Level(strings.ToLower(string(level)))]
	if !ok {
		return nil, fmt.Errorf("unsupported log level: %s", level)
	}
	encoding, ok := encodingMapping[Format(strings.ToLower(string(format)))]
	if !ok {
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.Encoding = encoding
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if encoding == "console" {
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
	}
	return cfg.Build()
}
