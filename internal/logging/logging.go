package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	rootOnce sync.Once
	root     *logrus.Logger
)

// rootLogger lazily builds the shared logger. Level comes from
// SENTINEL_LOG_LEVEL when set; SetVerbose can lower it later.
func rootLogger() *logrus.Logger {
	rootOnce.Do(func() {
		root = logrus.New()
		root.SetOutput(os.Stderr)
		root.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})

		level := logrus.InfoLevel
		if env := os.Getenv("SENTINEL_LOG_LEVEL"); env != "" {
			if parsed, err := logrus.ParseLevel(env); err == nil {
				level = parsed
			}
		}
		root.SetLevel(level)
	})
	return root
}

// NewLogger returns a logger entry tagged with a component field. All
// components share the same underlying logger and configuration.
func NewLogger(component string) *logrus.Entry {
	return rootLogger().WithField("component", component)
}

// SetVerbose switches the shared logger to debug level
func SetVerbose(verbose bool) {
	if verbose {
		rootLogger().SetLevel(logrus.DebugLevel)
	}
}
