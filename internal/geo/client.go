// Package geo resolves client network locations and enforces the
// network guard rules.
package geo

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/prime-rewards/internal/logging"
)

// Provider is one geolocation lookup endpoint. The URL template takes
// the client IP.
type Provider struct {
	Name        string
	URLTemplate string
}

// DefaultProviders returns the lookup endpoints in fallback order
func DefaultProviders() []Provider {
	return []Provider{
		{Name: "ipapi", URLTemplate: "https://ipapi.co/%s/json/"},
		{Name: "ipwhois", URLTemplate: "https://ipwhois.app/json/%s"},
		{Name: "ipsb", URLTemplate: "https://api.ip.sb/geoip/%s"},
	}
}

// Location is a resolved client location. Providers disagree on which
// fields they return, so either part may be empty, never both.
type Location struct {
	Code string // ISO2 country code, upper case
	Name string // full country name as the provider spells it
}

// Matches reports whether an allow-list entry covers this location.
// Entries may be ISO2 codes, exact names, or name fragments; fragments
// shorter than three characters would shadow codes and are ignored.
func (l Location) Matches(allowed string) bool {
	allowed = strings.TrimSpace(allowed)
	if allowed == "" {
		return false
	}
	if strings.EqualFold(allowed, l.Code) || strings.EqualFold(allowed, l.Name) {
		return true
	}
	if len(allowed) > 2 && l.Name != "" {
		return strings.Contains(strings.ToLower(l.Name), strings.ToLower(allowed))
	}
	return false
}

// String returns the display form of the location
func (l Location) String() string {
	if l.Name != "" {
		return l.Name
	}
	return l.Code
}

// Client resolves an IP to a country, trying each provider in order
// until one answers.
type Client struct {
	http      *http.Client
	providers []Provider
	logger    *logging.Logger
}

// NewClient creates a lookup client
func NewClient(httpClient *http.Client, providers []Provider, logger *logging.Logger) *Client {
	if len(providers) == 0 {
		providers = DefaultProviders()
	}
	return &Client{
		http:      httpClient,
		providers: providers,
		logger:    logger.WithField("component", "geo"),
	}
}

// lookupResponse is the union of the country fields the providers use.
// The bare country field holds the ISO2 code on some providers and the
// full name on others.
type lookupResponse struct {
	CountryCode  string `json:"country_code"`
	CountryCode2 string `json:"countryCode"`
	CountryName  string `json:"country_name"`
	Country      string `json:"country"`
}

func (r *lookupResponse) location() Location {
	loc := Location{Name: r.CountryName}
	for _, c := range []string{r.CountryCode, r.CountryCode2} {
		if c != "" {
			loc.Code = strings.ToUpper(c)
			break
		}
	}
	if r.Country != "" {
		if len(r.Country) == 2 {
			if loc.Code == "" {
				loc.Code = strings.ToUpper(r.Country)
			}
		} else if loc.Name == "" {
			loc.Name = r.Country
		}
	}
	return loc
}

// Lookup resolves the location for an IP. Each provider failure falls
// through to the next; the last error is returned when all fail.
func (c *Client) Lookup(ctx context.Context, ip string) (Location, error) {
	var lastErr error
	for _, provider := range c.providers {
		loc, err := c.lookup(ctx, provider, ip)
		if err != nil {
			c.logger.WithError(err).WithField("provider", provider.Name).Debug("geo lookup failed, trying next")
			lastErr = err
			continue
		}
		return loc, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no geo providers configured")
	}
	return Location{}, fmt.Errorf("all geo providers failed: %w", lastErr)
}

// Country resolves an IP to its ISO2 code, falling back to the name
// when a provider returns only that
func (c *Client) Country(ctx context.Context, ip string) (string, error) {
	loc, err := c.Lookup(ctx, ip)
	if err != nil {
		return "", err
	}
	if loc.Code != "" {
		return loc.Code, nil
	}
	return loc.Name, nil
}

func (c *Client) lookup(ctx context.Context, provider Provider, ip string) (Location, error) {
	url := fmt.Sprintf(provider.URLTemplate, ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, fmt.Errorf("failed to build lookup request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("lookup request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("%s returned %d", provider.Name, resp.StatusCode)
	}

	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Location{}, fmt.Errorf("failed to decode %s response: %w", provider.Name, err)
	}

	loc := out.location()
	if loc.Code == "" && loc.Name == "" {
		return Location{}, fmt.Errorf("%s returned no country", provider.Name)
	}

	return loc, nil
}
