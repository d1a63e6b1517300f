// Package log wires logrus formatting/level plus an optional Loki hook
// from a config.LogConfig. Grounded on the teacher's proxy/main.go
// initLogging (level/formatter setup, loki.NewLokiHookWithOpts), lifted
// out into its own package the way core/log is structured in the
// surviving test file (core/log/log_test.go), which is the only evidence
// of that package's shape left in the pack.
package log

import (
	log "github.com/sirupsen/logrus"
	loki "github.com/yukitsune/lokirus"

	"github.com/nimbusmq/nimbus/config"
)

// Initialize sets the standard logger's level and formatter from cfg,
// and, if cfg.Loki.Address is set, attaches a Loki hook for the info,
// warn, error and fatal levels.
func Initialize(cfg config.LogConfig) {
	if cfg.Level != "" {
		if level, err := log.ParseLevel(cfg.Level); err == nil {
			log.SetLevel(level)
		}
	}

	if cfg.Formatter == "json" {
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if cfg.Loki.Address == "" {
		return
	}

	opts := loki.NewLokiHookOptions().
		WithLevelMap(loki.LevelMap{log.PanicLevel: "critical"}).
		WithFormatter(&log.JSONFormatter{}).
		WithStaticLabels(loki.Labels(cfg.Loki.Labels))

	hook := loki.NewLokiHookWithOpts(
		cfg.Loki.Address,
		opts,
		log.InfoLevel,
		log.WarnLevel,
		log.ErrorLevel,
		log.FatalLevel,
	)

	log.AddHook(hook)
}
