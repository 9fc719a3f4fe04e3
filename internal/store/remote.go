package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fakeyudi/pomosync/internal/state"
)

// DeviceHeader carries the pushing device's id on PUT /state.
const DeviceHeader = "X-Pomosync-Device"

// maxRemoteBody bounds how much of a GET /state response is read.
const maxRemoteBody = 1 << 20

// RemoteClient talks to the remote tier's two-endpoint contract:
// GET /state returns a snapshot or {} and PUT /state replaces it.
type RemoteClient struct {
	baseURL string
	device  string
	http    *http.Client
}

// NewRemoteClient returns a client for the server at baseURL. device may be
// empty. A nil httpClient uses http.DefaultClient; per-call deadlines come
// from the context.
func NewRemoteClient(baseURL, device string, httpClient *http.Client) *RemoteClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		device:  device,
		http:    httpClient,
	}
}

// Fetch returns the remote snapshot. It returns (nil, nil) when the server
// has no state yet, and an error when the server is unreachable, answers
// non-2xx, or sends a payload that does not decode.
func (c *RemoteClient) Fetch(ctx context.Context) (*state.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/state", nil)
	if err != nil {
		return nil, fmt.Errorf("building fetch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetching remote state: status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody))
	if err != nil {
		return nil, fmt.Errorf("reading remote state: %w", err)
	}
	if isEmptyObject(body) {
		return nil, nil
	}
	snap, err := state.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decoding remote state: %w", err)
	}
	return &snap, nil
}

// Push replaces the remote snapshot with snap minus its transient fields.
func (c *RemoteClient) Push(ctx context.Context, snap state.Snapshot) error {
	data, err := state.Encode(snap.ForRemote())
	if err != nil {
		return fmt.Errorf("encoding remote state: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/state", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.device != "" {
		req.Header.Set(DeviceHeader, c.device)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pushing remote state: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxRemoteBody))

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("pushing remote state: status %s", resp.Status)
	}
	return nil
}

// isEmptyObject reports whether body is {} or null, the server's way of
// saying it holds nothing yet.
func isEmptyObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return true
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return false
	}
	return len(probe) == 0
}
