// Package sources holds the concrete metadata sources and builds the
// registry the service resolves source names against.
package sources

import (
	"time"

	"reel-go/internal/config"
	"reel-go/internal/reel"
)

// NewRegistryFromConfig registers every built-in source. The web source is
// always present; it fails at fetch time when no base URL is configured.
func NewRegistryFromConfig(cfg config.SourcesConfig, fsmgr reel.FilesystemManager) (*reel.SourceRegistry, error) {
	web := NewWebSource(cfg.Web.BaseURL, time.Duration(cfg.Web.TimeoutSeconds)*time.Second, cfg.Web.UserAgent)
	return reel.NewSourceRegistry(
		NewNFOSource(fsmgr),
		web,
		NewGuessSource(),
	)
}
