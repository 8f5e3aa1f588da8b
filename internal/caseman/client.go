// Package caseman is the HTTP client for the external case-management system:
// customer creation, ticket creation and follow-up escalation.
package caseman

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SetTestTransport points the client at a test server.
func (c *Client) SetTestTransport(url string) {
	c.baseURL = url
}

// APIError is a non-2xx response from the case-management system.
// Server-side errors are retryable; validation rejections are not.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("caseman api error %d: %s", e.Status, e.Body)
}

// Retryable reports whether err is worth retrying: network failures,
// timeouts and 5xx responses. 4xx validation rejections are final.
func Retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return err != nil
}

// CustomerRequest creates a customer record. LeadID/Campaign link the
// creation to the originating marketing campaign when the caller was a lead.
type CustomerRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	GovernmentID string `json:"government_id,omitempty"`
	LeadID       string `json:"lead_id,omitempty"`
	Campaign     string `json:"campaign,omitempty"`
}

type CustomerResponse struct {
	CustomerID string `json:"customer_id"`
}

// TicketRequest creates one ticket. PolicyNumbers must already be sanitized:
// the receiving system's multi-value parser only accepts pipe separators.
type TicketRequest struct {
	CustomerID       string `json:"customer_id,omitempty"`
	CallID           string `json:"call_id"`
	IncidentType     string `json:"incident_type"`
	ManagementReason string `json:"management_reason"`
	InsuranceLine    string `json:"insurance_line,omitempty"`
	PolicyNumbers    string `json:"policy_numbers"`
	Notes            string `json:"notes,omitempty"`
	AudioURL         string `json:"audio_url,omitempty"`
}

type TicketResponse struct {
	TicketID string `json:"ticket_id"`
}

// FollowUpRequest escalates an existing open incident instead of opening a
// new ticket.
type FollowUpRequest struct {
	RelatedIncidentID string `json:"related_incident_id"`
	CallID            string `json:"call_id"`
	Reason            string `json:"reason,omitempty"`
}

type FollowUpResponse struct {
	FollowUpID string `json:"follow_up_id"`
}

func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (*CustomerResponse, error) {
	var resp CustomerResponse
	if err := c.post(ctx, "/api/v1/customers", req, &resp); err != nil {
		return nil, err
	}
	if resp.CustomerID == "" {
		return nil, fmt.Errorf("caseman returned empty customer id")
	}
	return &resp, nil
}

func (c *Client) CreateTicket(ctx context.Context, req TicketRequest) (*TicketResponse, error) {
	var resp TicketResponse
	if err := c.post(ctx, "/api/v1/tickets", req, &resp); err != nil {
		return nil, err
	}
	if resp.TicketID == "" {
		return nil, fmt.Errorf("caseman returned empty ticket id")
	}
	return &resp, nil
}

func (c *Client) CreateFollowUp(ctx context.Context, req FollowUpRequest) (*FollowUpResponse, error) {
	var resp FollowUpResponse
	if err := c.post(ctx, "/api/v1/follow-ups", req, &resp); err != nil {
		return nil, err
	}
	if resp.FollowUpID == "" {
		return nil, fmt.Errorf("caseman returned empty follow-up id")
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("caseman post %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
