package framework

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// initLogger builds the framework logger from the resolved log settings.
// Debug mode switches to the colored console encoder; otherwise output is
// JSON with ISO8601 timestamps.
func initLogger(st *Settings) *zap.Logger {
	var level zapcore.Level
	switch strings.ToLower(st.LogLevel) {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}
	if st.DebugMode {
		level = zapcore.DebugLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if st.DebugMode {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var outputPaths []string
	if st.LogToConsole {
		outputPaths = append(outputPaths, "stdout")
	}
	if st.LogFile != "" {
		outputPaths = append(outputPaths, st.LogFile)
	}
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      st.DebugMode,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
