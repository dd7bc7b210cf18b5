// Package medsetu is a client for the MedSetu terminology and records API.
package medsetu

import (
	"MedsetuPortal/internal/entities"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	doctorsPath  = "/api/doctors"
	patientsPath = "/api/patients"
	mapPath      = "/api/map"

	// mapFallbackMessage is shown when /api/map fails without an error body.
	mapFallbackMessage = "Mapping not found"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("medsetu api: status %d", e.Status)
	}
	return fmt.Sprintf("medsetu api: status %d: %s", e.Status, e.Message)
}

// Message extracts a user-facing string from err: the server-provided message
// when there is one, otherwise fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Doctors(ctx context.Context) ([]entities.Doctor, error) {
	op := "medsetu.Doctors()"
	var doctors []entities.Doctor
	if err := c.getJSON(ctx, doctorsPath, &doctors); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doctors, nil
}

func (c *Client) Patients(ctx context.Context) ([]entities.Patient, error) {
	op := "medsetu.Patients()"
	var patients []entities.Patient
	if err := c.getJSON(ctx, patientsPath, &patients); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return patients, nil
}

// Map translates code into zero or more candidates from the other coding system.
func (c *Client) Map(ctx context.Context, code string) ([]entities.MappedDiagnosis, error) {
	op := "medsetu.Map()"

	body, err := json.Marshal(entities.MapRequest{Code: code})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+mapPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: mapFallbackMessage}
		var payload entities.MapError
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return nil, fmt.Errorf("%s: %w", op, apiErr)
	}

	var mapped []entities.MappedDiagnosis
	if err := json.Unmarshal(data, &mapped); err != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return mapped, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &APIError{Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
