// Package overpass implements the geo query transport against the Overpass
// API. It builds Overpass QL queries for a viewport, parses the element
// payload, and maps upstream failures onto the service error taxonomy.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	brewmap "github.com/brewmap/brewmap/internal"
)

const (
	defaultBaseURL = "https://overpass-api.de/api/interpreter"

	// queryTimeoutSec is the server-side execution budget passed in the QL
	// header. The HTTP client deadline should exceed it slightly so the
	// server can report its own timeout instead of the socket dying first.
	queryTimeoutSec = 25

	// maxResponseBody caps payload reads; dense city viewports run to a few
	// MB, anything beyond this is a runaway query.
	maxResponseBody = 32 << 20
)

// Client queries a single Overpass endpoint.
type Client struct {
	name    string
	baseURL string
	agent   string
	http    *http.Client
}

// New creates a Client for one Overpass mirror. name identifies the mirror
// in logs and circuit breaker state; baseURL defaults to the main public
// endpoint when empty. The Overpass usage policy requires a descriptive
// User-Agent, passed as agent.
func New(name, baseURL, agent string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		agent:   agent,
		http:    client,
	}
}

// Name returns the mirror identifier.
func (c *Client) Name() string { return c.name }

// Query fetches all coffee-related elements inside bounds. Cancellation of
// ctx aborts the underlying request; a cancelled call never returns a
// partial result.
func (c *Client) Query(ctx context.Context, b brewmap.Bounds) ([]brewmap.Element, error) {
	form := url.Values{"data": {BuildQuery(b)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("overpass: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Context errors pass through unwrapped so callers can distinguish
		// cancellation from transport failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("overpass: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ParseAPIError(c.name, resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("overpass: read response: %w", err)
	}

	// Overpass reports runtime errors (query timeout, memory exhaustion) as
	// HTTP 200 with a "remark" field instead of a status code.
	if remark := gjson.GetBytes(body, "remark").String(); remark != "" {
		return nil, &APIError{Mirror: c.name, StatusCode: resp.StatusCode, Body: remark}
	}

	var envelope struct {
		Elements []brewmap.Element `json:"elements"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("overpass: decode response: %w", err)
	}
	return envelope.Elements, nil
}

// selectors are the tag filters the service is interested in. Kept in sync
// with brewmap.ClassifyTags: every selector here must classify to a known
// location type.
var selectors = []string{
	`["amenity"="cafe"]`,
	`["shop"="coffee"]`,
	`["craft"="roaster"]`,
	`["amenity"="fast_food"]["cuisine"="sandwich"]`,
}

// BuildQuery renders the Overpass QL program for a viewport. Nodes carry
// direct coordinates; "out center" adds centroids for ways and relations.
func BuildQuery(b brewmap.Bounds) string {
	bbox := fmt.Sprintf("(%g,%g,%g,%g)", b.South, b.West, b.North, b.East)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[out:json][timeout:%d];(", queryTimeoutSec)
	for _, sel := range selectors {
		sb.WriteString("nwr")
		sb.WriteString(sel)
		sb.WriteString(bbox)
		sb.WriteByte(';')
	}
	sb.WriteString(");out center;")
	return sb.String()
}
