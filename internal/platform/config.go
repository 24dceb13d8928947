package platform

import (
	"errors"
	"strings"
	"time"
)

// DefaultTimeout bounds every remote call when Config.Timeout is unset.
const DefaultTimeout = 15 * time.Second

// AccessTokenHeader is the header the store admin API authenticates with.
const AccessTokenHeader = "X-Shopify-Access-Token"

var ErrMissingBaseURL = errors.New("platform: store base URL is required")

// Config describes one remote store session. It is injected into New;
// nothing in this package reads process-wide settings.
type Config struct {
	// BaseURL is the store root, e.g. https://example.myshopify.com
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}
