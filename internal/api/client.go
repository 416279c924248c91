package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const orphanagesPath = "orphanages"

// Client talks to the orphanage API.
type Client struct {
	base *url.URL
	http *http.Client
	log  *logrus.Entry
}

// NewClient resolves request paths relative to baseURL. timeout bounds
// each request; zero means no client-side limit.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base url %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &Client{
		base: u,
		http: &http.Client{Timeout: timeout},
		log:  logrus.WithField("component", "api"),
	}, nil
}

// Created is the result of a successful create.
type Created struct {
	Status int
	Body   []byte
}

// CreateOrphanage issues exactly one multipart POST for reg.
func (c *Client) CreateOrphanage(ctx context.Context, reg Registration) (Created, error) {
	var body bytes.Buffer
	contentType, err := EncodeMultipart(&body, reg)
	if err != nil {
		return Created{}, fmt.Errorf("encode registration: %w", err)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: orphanagesPath})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), &body)
	if err != nil {
		return Created{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("create orphanage failed")
		return Created{}, &NetworkError{Op: "POST " + endpoint.Path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Created{}, &NetworkError{Op: "read response", Err: err}
	}
	c.log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"images":   len(reg.Images),
		"duration": time.Since(start).String(),
	}).Info("create orphanage")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Created{}, &ServerRejection{Status: resp.StatusCode, Message: rejectionMessage(raw)}
	}
	return Created{Status: resp.StatusCode, Body: raw}, nil
}

// Image is an uploaded picture as reported by the listing endpoint.
type Image struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// Orphanage is one row of the listing endpoint.
type Orphanage struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	About          string  `json:"about"`
	Instructions   string  `json:"instructions"`
	OpeningHours   string  `json:"opening_hours"`
	OpenOnWeekends bool    `json:"open_on_weekends"`
	Images         []Image `json:"images"`
}

// ListOrphanages fetches every registered orphanage.
func (c *Client) ListOrphanages(ctx context.Context) ([]Orphanage, error) {
	endpoint := c.base.ResolveReference(&url.URL{Path: orphanagesPath})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "GET " + endpoint.Path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &NetworkError{Op: "read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServerRejection{Status: resp.StatusCode, Message: rejectionMessage(raw)}
	}
	var out []Orphanage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode orphanages: %w", err)
	}
	return out, nil
}

// rejectionMessage prefers {"message"} then {"error"}, else the trimmed body.
func rejectionMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
