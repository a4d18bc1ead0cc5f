package aegis

import "net/http"

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL      string
	threatsPath  string
	httpClient   *http.Client
	skipPrecheck bool
}

// WithBaseURL sets the aegisd daemon address.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithThreats sets the path to a threat pattern YAML file for the local
// checks. Defaults to the built-in patterns.
func WithThreats(path string) Option {
	return func(c *clientConfig) { c.threatsPath = path }
}

// WithHTTPClient overrides the HTTP client used to reach the daemon.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithoutPrecheck disables the local pre-submission checks; every
// transaction goes straight to the daemon.
func WithoutPrecheck() Option {
	return func(c *clientConfig) { c.skipPrecheck = true }
}
