package portal

import "time"

// Config describes the target portal and the engine's timing behavior.
// Selector cascades are part of the engine itself; only entry points and
// bounded waits are configurable.
type Config struct {
	// AuthURL is the portal's authentication entry point; loading it
	// redirects to the identity provider.
	AuthURL string
	// LoginHost is the identity provider's host. The login flow waits for
	// the redirect to land there.
	LoginHost string
	// OverviewURL is the shipment-list view.
	OverviewURL string
	// TrackingURL is the public single-shipment tracking view.
	TrackingURL string

	// ElementTimeout is the independent budget of each strategy in a
	// selector cascade.
	ElementTimeout time.Duration
	// RedirectTimeout bounds the wait for the identity-provider redirect.
	RedirectTimeout time.Duration

	// SettleShort, SettlePage and SettleResults are fixed waits after
	// keystrokes, page navigations and search submissions respectively.
	SettleShort   time.Duration
	SettlePage    time.Duration
	SettleResults time.Duration

	// OverdueAfter is the staleness threshold: a shipment whose last update
	// is older than this is flagged overdue.
	OverdueAfter time.Duration

	// MaxParentHops bounds the walk from a tracking-number anchor up to its
	// table-row ancestor.
	MaxParentHops int
}

// DefaultConfig returns the engine configuration for the GLS Austria portal.
func DefaultConfig() Config {
	return Config{
		AuthURL:         "https://gls-group.eu/authenticate/?locale=de-AT",
		LoginHost:       "auth.dc.gls-group.eu",
		OverviewURL:     "https://gls-group.eu/app/service/closed/page/AT/de/witt004#/",
		TrackingURL:     "https://gls-group.eu/AT/de/tracking",
		ElementTimeout:  200 * time.Millisecond,
		RedirectTimeout: 10 * time.Second,
		SettleShort:     time.Second,
		SettlePage:      5 * time.Second,
		SettleResults:   5 * time.Second,
		OverdueAfter:    7 * 24 * time.Hour,
		MaxParentHops:   5,
	}
}

// withDefaults backfills zero values so a partially filled Config stays usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AuthURL == "" {
		c.AuthURL = d.AuthURL
	}
	if c.LoginHost == "" {
		c.LoginHost = d.LoginHost
	}
	if c.OverviewURL == "" {
		c.OverviewURL = d.OverviewURL
	}
	if c.TrackingURL == "" {
		c.TrackingURL = d.TrackingURL
	}
	if c.ElementTimeout <= 0 {
		c.ElementTimeout = d.ElementTimeout
	}
	if c.RedirectTimeout <= 0 {
		c.RedirectTimeout = d.RedirectTimeout
	}
	if c.SettleShort <= 0 {
		c.SettleShort = d.SettleShort
	}
	if c.SettlePage <= 0 {
		c.SettlePage = d.SettlePage
	}
	if c.SettleResults <= 0 {
		c.SettleResults = d.SettleResults
	}
	if c.OverdueAfter <= 0 {
		c.OverdueAfter = d.OverdueAfter
	}
	if c.MaxParentHops <= 0 {
		c.MaxParentHops = d.MaxParentHops
	}
	return c
}
