package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Entry
)

type Fields = logrus.Fields

// FileOptions controls log file rotation
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func SetLevel(l logrus.Level) {
	logger.Logger.SetLevel(l)
}

// SetFormat switches between "text" and "json" output
func SetFormat(f string) {
	switch f {
	case "json":
		logger.Logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// SetFile tees log output into a rotated file
func SetFile(o FileOptions) {
	if o.Path == "" {
		return
	}

	lj := &lumberjack.Logger{
		Filename:   o.Path,
		MaxSize:    o.MaxSizeMB,
		MaxBackups: o.MaxBackups,
		MaxAge:     o.MaxAgeDays,
		Compress:   o.Compress,
	}

	logger.Logger.SetOutput(io.MultiWriter(os.Stderr, lj))
}

func init() {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
}

func WithError(e error) *logrus.Entry {
	return logger.WithError(e)
}

func WithFields(f Fields) *logrus.Entry {
	return logger.WithFields(f)
}

func Entry() *logrus.Entry {
	return logger
}

func Logger() *logrus.Logger {
	return logger.Logger
}

func Error(args ...interface{}) {
	logger.Error(args...)
}
