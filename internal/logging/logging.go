// Package logging builds the optional launch log: a rotated plain-text file
// recording every worker launch and launch failure. Operator-facing output
// stays on stderr; the file log exists so a long-running session leaves a
// trail.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Nop returns a disabled logger. Used whenever no log file is configured.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// Open creates a file-backed logger with rotation. The parent directory is
// created if needed.
func Open(path string) (*zap.SugaredLogger, error) {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return nil, err
	}

	rotated := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(rotated),
		zapcore.InfoLevel,
	)

	return zap.New(core).Sugar(), nil
}
