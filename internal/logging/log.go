// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Console is the log path value that keeps output on stderr.
const Console = "console"

// InitLog parses and sets the log level, and redirects output to a rotating
// file when logPath names one.
func InitLog(logLevel string, logPath string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Errorf("failed parsing log-level %s: %s", logLevel, err)
		return err
	}

	if logPath != "" && logPath != Console {
		lumberjackLogger := &lumberjack.Logger{
			Filename:   filepath.ToSlash(logPath),
			MaxSize:    5, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}
		log.SetOutput(io.Writer(lumberjackLogger))
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	log.SetLevel(level)
	return nil
}
