// Package logx builds the zap logger shared by the binaries.
package logx

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger, or a console logger when dev is set.
func New(service, level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	conf := zap.NewProductionConfig()
	if dev {
		conf = zap.NewDevelopmentConfig()
	}
	conf.Level = zap.NewAtomicLevelAt(lvl)
	conf.DisableStacktrace = true
	conf.EncoderConfig.TimeKey = "ts"
	conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := conf.Build(zap.AddCaller())
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("service", service)), nil
}

// Must is New for main packages, where a broken logger is fatal.
func Must(service, level string, dev bool) *zap.Logger {
	l, err := New(service, level, dev)
	if err != nil {
		panic(err)
	}
	return l
}
