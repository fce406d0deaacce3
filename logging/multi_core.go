package logging

import (
	"go.uber.org/zap/zapcore"
)

// NewMultiCore tees log entries to a console writer and a file writer.
// The file always receives JSON. The console gets colored text in
// development mode and JSON otherwise.
func NewMultiCore(level zapcore.LevelEnabler, console, file zapcore.WriteSyncer, isDev bool) zapcore.Core {
	consoleEncoder := zapcore.NewJSONEncoder(NewEncoderConfig())
	if isDev {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	}

	return zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, console, level),
		zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), file, level),
	)
}
