// Package logging owns the process-wide logrus logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logg = newLogger("info")

func newLogger(level string) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Init replaces the shared logger. Call once from main after config is loaded.
func Init(level string) *logrus.Logger {
	logg = newLogger(level)
	return logg
}

func GetLogger() *logrus.Logger {
	return logg
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
