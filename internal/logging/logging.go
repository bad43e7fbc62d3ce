// Package logging owns the process-wide zap logger
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dispatchlab/rtdcheck/internal/config"
)

var (
	global atomic.Pointer[zap.Logger]
	once   sync.Once
)

// levelColors are forced on: LoggingConfig.Color already decided for them
var levelColors = map[zapcore.Level]*color.Color{
	zapcore.DebugLevel:  forced(color.FgCyan),
	zapcore.InfoLevel:   forced(color.FgGreen),
	zapcore.WarnLevel:   forced(color.FgYellow),
	zapcore.ErrorLevel:  forced(color.FgRed),
	zapcore.DPanicLevel: forced(color.FgRed, color.Bold),
	zapcore.PanicLevel:  forced(color.FgRed, color.Bold),
	zapcore.FatalLevel:  forced(color.FgMagenta, color.Bold),
}

func forced(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}

// Initialize builds the global logger once: a console or JSON core on w, teed with a
// JSON core on a rotating file when cfg.File is set
func Initialize(cfg config.LoggingConfig, w io.Writer) *zap.Logger {
	once.Do(func() {
		global.Store(New(cfg, w))
	})
	return L()
}

// New builds a logger without touching the global one
func New(cfg config.LoggingConfig, w io.Writer) *zap.Logger {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder(cfg.Format, cfg.Color), zapcore.Lock(zapcore.AddSync(w)), level),
	}
	if cfg.File != "" {
		file := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(encoder("json", false), file, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)).Named("rtdcheck")
}

func encoder(format string, colored bool) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	if format != "console" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(ec)
	}
	if colored {
		ec.EncodeLevel = colorLevel
	} else {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ".")
	}
	return zapcore.NewConsoleEncoder(ec)
}

func colorLevel(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	text := strings.ToUpper(level.String())
	if c, ok := levelColors[level]; ok {
		enc.AppendString(c.Sprint(text))
		return
	}
	enc.AppendString(text)
}

// L returns the global logger, or a no-op logger before Initialize
func L() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Named returns a component logger, e.g. Named("walker")
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushes buffered entries, ignoring the errors terminals report on sync
func Sync() {
	l := global.Load()
	if l == nil {
		return
	}
	if err := l.Sync(); err != nil {
		msg := err.Error()
		if !strings.Contains(msg, "sync /dev/std") &&
			!strings.Contains(msg, "invalid argument") &&
			!strings.Contains(msg, "inappropriate ioctl") {
			fmt.Fprintln(os.Stderr, "failed to sync logger:", err)
		}
	}
}

// ResetForTest clears the global logger so the next Initialize runs again
func ResetForTest() {
	global.Store(nil)
	once = sync.Once{}
}
