package config

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Logging configures the process-wide logrus logger for the given service.
func Logging(service, level string) {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.JSONFormatter{})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("invalid LOG_LEVEL %q, falling back to info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	log.WithField("service", service).Info("logging initialized")
}
