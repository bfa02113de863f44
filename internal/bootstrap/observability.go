package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/campusworks/caseboard-ui-api/config"
	"github.com/campusworks/caseboard-ui-api/internal/observability/statsd"
)

// BuildMetrics creates the StatsD client. A disabled config yields a no-op
// client, so callers never need nil checks.
func BuildMetrics(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (*statsd.Client, error) {
	client, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.IsEnabled(),
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build statsd client: %w", err)
	}
	if cfg.IsEnabled() && logger != nil {
		logger.Info("metrics enabled", "address", cfg.StatsdAddress, "prefix", cfg.Prefix)
	}
	return client, nil
}
