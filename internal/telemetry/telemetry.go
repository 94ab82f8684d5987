// Package telemetry sends anonymous, opt-in usage events. A disabled client
// is a no-op, so callers never have to nil-check.
package telemetry

import (
	"log"

	"github.com/posthog/posthog-go"
)

// PostHogKey and PostHogHost are injected at build time via -ldflags. With
// an empty key the client stays inert even when telemetry is enabled.
var (
	PostHogKey  = ""
	PostHogHost = "https://eu.i.posthog.com"
)

// Client wraps the analytics backend behind the opt-in switch.
type Client struct {
	ph         posthog.Client
	distinctID string
}

// New creates a telemetry client. enabled reflects the user's settings;
// distinctID is the anonymous install id.
func New(enabled bool, distinctID string) *Client {
	c := &Client{distinctID: distinctID}
	if !enabled || PostHogKey == "" {
		return c
	}

	ph, err := posthog.NewWithConfig(PostHogKey, posthog.Config{Endpoint: PostHogHost})
	if err != nil {
		log.Printf("[Telemetry] Failed to initialize: %v", err)
		return c
	}
	c.ph = ph
	return c
}

// Track enqueues one event. Safe to call on a disabled client.
func (c *Client) Track(event string, props map[string]interface{}) {
	if c == nil || c.ph == nil {
		return
	}
	properties := posthog.NewProperties()
	for k, v := range props {
		properties.Set(k, v)
	}
	if err := c.ph.Enqueue(posthog.Capture{
		DistinctId: c.distinctID,
		Event:      event,
		Properties: properties,
	}); err != nil {
		log.Printf("[Telemetry] Failed to enqueue event: %v", err)
	}
}

// Close flushes pending events.
func (c *Client) Close() {
	if c == nil || c.ph == nil {
		return
	}
	c.ph.Close()
}
