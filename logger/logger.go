// Package logger provides the global logger for the faculty hours CLI.
//
// The logger is a no-op until Initialize is called, so packages may log
// freely during early startup without nil checks.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the global logger instance.
	Logger *zap.SugaredLogger

	// JSONOutput tracks whether structured JSON output is enabled.
	JSONOutput bool
)

func init() {
	// Safe no-op logger at package load time. Prevents nil pointer
	// panics if logging happens before Initialize() is called.
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger.
//
// With jsonOutput the logger emits machine-readable JSON lines, suitable
// for scheduled runs whose output lands in a log collector. Otherwise it
// emits human-readable console output for interactive use.
func Initialize(jsonOutput bool) error {
	JSONOutput = jsonOutput

	var zapLogger *zap.Logger
	var err error

	if jsonOutput {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
		zapLogger, err = config.Build()
		if err != nil {
			return err
		}
	} else {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapLogger = zap.New(
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(encoderConfig),
				zapcore.AddSync(os.Stdout),
				zap.InfoLevel,
			),
		)
	}

	Logger = zapLogger.Sugar()
	return nil
}

// SetVerbose lowers the log level to debug for the console logger.
// Call after Initialize.
func SetVerbose() {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	zapLogger := zap.New(
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			zap.DebugLevel,
		),
	)
	Logger = zapLogger.Sugar()
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	_ = Logger.Sync()
}
