// Package deezer finds a playable preview track for a symphony using the
// Deezer keyword search API. Only the first result is used.
package deezer

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ewilliams-labs/aura/internal/core/ports"
)

// DefaultBaseURL is the public Deezer API.
const DefaultBaseURL = "https://api.deezer.com"

// Client is an HTTP client for the Deezer search API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	relayURL   string
}

// compile-time interface assertion
var _ ports.TrackFinder = (*Client)(nil)

// NewClient constructs a new Deezer client. relayURL is an optional prefix
// (for example "https://corsproxy.io/?") to which the fully encoded search
// URL is appended; leave it empty to call the API directly.
func NewClient(httpClient *http.Client, baseURL, relayURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		relayURL:   relayURL,
	}
}

// searchURL builds the request URL for keyword, wrapped in the relay if set.
func (c *Client) searchURL(keyword string) string {
	target := c.baseURL + "/search/track?q=" + encodeComponent(keyword) + "&limit=1"
	if c.relayURL == "" {
		return target
	}
	return c.relayURL + encodeComponent(target)
}

// componentUnescaper undoes the QueryEscape output that encodeURIComponent
// leaves literal: '+' for space, and the marks !'()*.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeComponent percent-encodes s the way encodeURIComponent does.
func encodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
