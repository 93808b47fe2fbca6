// Package geo resolves a GSM cell identity (MCC/MNC/LAC/CID as reported by
// AT+CREG/AT+COPS) to an approximate geographic position via an external
// cell-location lookup service (out of this module's core scope).
package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Cell identifies a GSM cell as reported by the network.
type Cell struct {
	MCC int
	MNC int
	LAC int
	CID int
}

// Position is a resolved geographic location, decoded from the locator's
// response. Latitude/Longitude/Accuracy are lifted out of the well-known
// "lat"/"lon"/"accuracy" keys for callers that only need the coordinates;
// Raw carries the full decoded response body verbatim, since the documented
// API contract passes the response through as-is rather than constraining
// it to a fixed schema.
type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Raw       map[string]any
}

// Locator resolves a Cell to a Position. Implementations may reach out to a
// network service and should respect ctx cancellation/deadline.
type Locator interface {
	Locate(ctx context.Context, cell Cell) (Position, error)
}

// defaultTimeout bounds every HTTPLocator request (as the http.Client
// timeout), in addition to any deadline ctx carries.
const defaultTimeout = 5 * time.Second

// HTTPLocator resolves cells against a regional cell-location HTTP endpoint,
// POSTing the documented geolocate request body and passing the decoded
// response back verbatim (via Position.Raw), in addition to lifting out the
// common lat/lon/accuracy fields.
type HTTPLocator struct {
	Endpoint string
	Client   *http.Client

	// Token authenticates the request against the locator service.
	Token string

	// AcceptLanguage is sent as the request's "accept-language" field.
	// Defaults to "en" when empty.
	AcceptLanguage string
}

// NewHTTPLocator builds an HTTPLocator pointed at endpoint with token,
// using http.DefaultClient's transport with a bounded per-request timeout.
func NewHTTPLocator(endpoint, token string) *HTTPLocator {
	return &HTTPLocator{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: defaultTimeout},
		Token:    token,
	}
}

// geolocateCell is one entry of the documented "cells" array.
type geolocateCell struct {
	LAC int `json:"lac"`
	CID int `json:"cid"`
}

// geolocateRequest is the external geolocation API's documented wire
// contract: `{ token, radio:"gsm", mcc, mnc, cells:[{lac, cid}], address,
// accept-language }`.
type geolocateRequest struct {
	Token          string          `json:"token"`
	Radio          string          `json:"radio"`
	MCC            int             `json:"mcc"`
	MNC            int             `json:"mnc"`
	Cells          []geolocateCell `json:"cells"`
	Address        int             `json:"address"`
	AcceptLanguage string          `json:"accept-language"`
}

// Locate implements Locator.
func (l *HTTPLocator) Locate(ctx context.Context, cell Cell) (Position, error) {
	if l.Endpoint == "" {
		return Position{}, fmt.Errorf("geo: no endpoint configured")
	}

	lang := l.AcceptLanguage
	if lang == "" {
		lang = "en"
	}
	reqBody := geolocateRequest{
		Token:          l.Token,
		Radio:          "gsm",
		MCC:            cell.MCC,
		MNC:            cell.MNC,
		Cells:          []geolocateCell{{LAC: cell.LAC, CID: cell.CID}},
		Address:        1,
		AcceptLanguage: lang,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Position{}, fmt.Errorf("geo: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Position{}, fmt.Errorf("geo: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Position{}, fmt.Errorf("geo: request cell %+v: %w", cell, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Position{}, fmt.Errorf("geo: locator returned %s: %s", resp.Status, data)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Position{}, fmt.Errorf("geo: decode response: %w", err)
	}

	return Position{
		Latitude:  floatField(raw, "lat"),
		Longitude: floatField(raw, "lon"),
		Accuracy:  floatField(raw, "accuracy"),
		Raw:       raw,
	}, nil
}

// floatField reads a numeric field out of a verbatim-decoded JSON response,
// returning 0 if absent or not a number.
func floatField(raw map[string]any, key string) float64 {
	v, ok := raw[key].(float64)
	if !ok {
		return 0
	}
	return v
}

var _ Locator = (*HTTPLocator)(nil)

// RegionEndpoint returns one of a small set of known regional lookup
// endpoints a deployment can pick by operator country, falling back to the
// global default when region is unrecognized.
func RegionEndpoint(region string) string {
	switch region {
	case "us":
		return "https://geo-us.example.com/v1/geolocate"
	case "eu":
		return "https://geo-eu.example.com/v1/geolocate"
	case "apac":
		return "https://geo-apac.example.com/v1/geolocate"
	default:
		return "https://geo-global.example.com/v1/geolocate"
	}
}
