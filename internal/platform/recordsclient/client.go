// Package recordsclient fetches patients, interactions and doctors from the
// records API over HTTP.
package recordsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/manan-gakkhar/Doc-Plus/internal/domain/records"
)

// ErrNotFound is returned by GetPatientByUID when the API has no patient for
// the uid.
var ErrNotFound = errors.New("patient not found")

// StatusError is returned when the records API answers with a non-2xx status.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("records API %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

func (e *StatusError) StatusCode() int { return e.Status }

// Observer is notified after every call. telemetry.Provider implements it.
type Observer interface {
	ObserveFetch(resource string, d time.Duration, err error)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// Client makes one attempt per call; there is no retry.
type Client struct {
	base     string
	http     *http.Client
	timeout  time.Duration
	observer Observer
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse records API url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("records API url must be http or https, got %q", baseURL)
	}
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetPatientByUID returns the first patient linked to the Firebase uid.
func (c *Client) GetPatientByUID(ctx context.Context, uid string) (*records.Patient, error) {
	var patients []records.Patient
	q := url.Values{"firebaseUid": {uid}}
	if err := c.get(ctx, "patient", "/patients", q, &patients); err != nil {
		return nil, err
	}
	if len(patients) == 0 {
		return nil, ErrNotFound
	}
	return &patients[0], nil
}

func (c *Client) ListInteractions(ctx context.Context, patientID string) ([]records.Interaction, error) {
	var out []records.Interaction
	q := url.Values{"patientId": {patientID}}
	if err := c.get(ctx, "interactions", "/pdinteraction", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListDoctors(ctx context.Context) ([]records.Doctor, error) {
	var out []records.Doctor
	if err := c.get(ctx, "doctors", "/doctors", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, resource, path string, q url.Values, dst any) (err error) {
	start := time.Now()
	if c.observer != nil {
		defer func() { c.observer.ObserveFetch(resource, time.Since(start), err) }()
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.base + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", resource, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", resource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Endpoint: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", resource, err)
	}
	return nil
}
