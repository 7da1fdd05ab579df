package geo

import (
	"context"

	"github.com/prime-rewards/internal/errors"
	"github.com/prime-rewards/internal/logging"
	"github.com/prime-rewards/internal/models"
)

// CountryLookup resolves an IP to a location
type CountryLookup interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// ConfigSource provides the network guard document
type ConfigSource interface {
	Geo(ctx context.Context) (*models.GeoConfig, error)
}

// Guard evaluates whether a client network location may use the app
type Guard struct {
	lookup  CountryLookup
	configs ConfigSource
	logger  *logging.Logger
}

// NewGuard creates a new network guard
func NewGuard(lookup CountryLookup, configs ConfigSource, logger *logging.Logger) *Guard {
	return &Guard{
		lookup:  lookup,
		configs: configs,
		logger:  logger.WithField("component", "geo"),
	}
}

// Evaluate returns nil when the client may proceed. When the guard is
// active, an unresolvable location is denied: failing open would let
// anyone bypass the country requirement by blocking the lookup.
func (g *Guard) Evaluate(ctx context.Context, ip string) error {
	cfg, err := g.configs.Geo(ctx)
	if err != nil {
		return err
	}

	if !cfg.VPNRequired {
		return nil
	}

	loc, err := g.lookup.Lookup(ctx, ip)
	if err != nil {
		g.logger.WithError(err).WithField("ip", ip).Warn("geo lookup failed, denying")
		return errors.NewGeoBlockedError("")
	}

	// Allow-list entries may be codes or names, so both resolved parts
	// are consulted
	for _, allowed := range cfg.AllowedCountries {
		if loc.Matches(allowed) {
			return nil
		}
	}

	return errors.NewGeoBlockedError(loc.String())
}
