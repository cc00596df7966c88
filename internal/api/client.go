// Package api is the HTTP client for the media player's one-shot
// endpoints: transport commands, queue add, metadata preview, and the
// radio station directory. Live state never arrives here; that is the
// transport package's job.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"playdeck/internal/httputil"
	"playdeck/internal/protocol"
)

// ServerError is an application-level failure the server reported with a
// human-readable message, as opposed to a plain transport failure.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

type Client struct {
	baseURL string
	http    *http.Client

	// Metadata lookups shell out to an external resolver server-side,
	// so they get a longer timeout and a rate limit that keeps fast
	// typists from hammering that path.
	metaHTTP    *http.Client
	metaLimiter *rate.Limiter
}

func NewClient(baseURL string) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if err := httputil.ValidateServerURL(baseURL); err != nil {
		return nil, err
	}
	return &Client{
		baseURL:     baseURL,
		http:        httputil.NewClient(),
		metaHTTP:    httputil.NewClientWithTimeout(httputil.MetadataTimeout),
		metaLimiter: rate.NewLimiter(2, 4),
	}, nil
}

// Play starts or resumes playback.
func (c *Client) Play(ctx context.Context) error {
	return c.command(ctx, "/api/player/play")
}

// Pause pauses playback, keeping the current position.
func (c *Client) Pause(ctx context.Context) error {
	return c.command(ctx, "/api/player/pause")
}

// Stop stops playback.
func (c *Client) Stop(ctx context.Context) error {
	return c.command(ctx, "/api/player/stop")
}

// SkipNext advances to the next queue item.
func (c *Client) SkipNext(ctx context.Context) error {
	return c.command(ctx, "/api/player/skip-next")
}

// SkipPrevious returns to the previous queue item.
func (c *Client) SkipPrevious(ctx context.Context) error {
	return c.command(ctx, "/api/player/skip-back")
}

func (c *Client) command(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodPost, path, nil, nil)
	return err
}

type addParams struct {
	URL string `json:"url"`
}

type addResponse struct {
	ID protocol.TrackID `json:"mpd_id"`
}

// QueueAdd asks the server to resolve mediaURL and append it to the
// queue, returning the new track's id. The queue snapshot reflecting the
// addition arrives separately over the live connection.
func (c *Client) QueueAdd(ctx context.Context, mediaURL string) (protocol.TrackID, error) {
	body, err := c.doJSON(ctx, http.MethodPost, "/api/queue", addParams{URL: mediaURL})
	if err != nil {
		return "", err
	}
	var resp addResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding queue add response: %w", err)
	}
	return resp.ID, nil
}

// Metadata fetches a display preview for a URL the user is about to
// enqueue. Cancellation is a normal outcome, not an error: a lookup
// superseded by newer input returns (nil, nil).
func (c *Client) Metadata(ctx context.Context, mediaURL string) (*protocol.Metadata, error) {
	if err := c.metaLimiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, nil
		}
		return nil, err
	}

	query := url.Values{"url": {mediaURL}}
	body, err := c.doVia(ctx, c.metaHTTP, http.MethodGet, "/api/metadata", query, nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, nil
		}
		return nil, err
	}

	var md protocol.Metadata
	if err := json.Unmarshal(body, &md); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &md, nil
}

// RadioStations lists the configured stations in server order.
func (c *Client) RadioStations(ctx context.Context) ([]protocol.RadioStation, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/radio/stations", nil, nil)
	if err != nil {
		return nil, err
	}
	var stations []protocol.RadioStation
	if err := json.Unmarshal(body, &stations); err != nil {
		return nil, fmt.Errorf("decoding stations: %w", err)
	}
	return stations, nil
}

type tuneParams struct {
	URL string `json:"url"`
}

// Tune switches playback to the given radio stream.
func (c *Client) Tune(ctx context.Context, streamURL string) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/api/radio/tune", tuneParams{URL: streamURL})
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return c.do(ctx, method, path, nil, bytes.NewReader(data))
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (json.RawMessage, error) {
	return c.doVia(ctx, c.http, method, path, query, body)
}

func (c *Client) doVia(ctx context.Context, hc *http.Client, method, path string, query url.Values, body io.Reader) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		// *url.Error unwraps to context.Canceled for aborted requests,
		// so errors.Is checks upstream still work.
		return nil, err
	}
	defer httputil.DrainBody(resp)

	return readResponse(method, path, resp)
}

func readResponse(method, path string, resp *http.Response) (json.RawMessage, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusInternalServerError &&
		strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var info struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &info); err == nil && info.Message != "" {
			return nil, &ServerError{Message: info.Message}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s failed: status %d: %s",
			method, path, resp.StatusCode, httputil.Truncate(data, 200))
	}

	return json.RawMessage(data), nil
}
