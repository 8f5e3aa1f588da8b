package caseman

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateCustomer_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/customers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		var req CustomerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Name != "Lucía Fernández" || req.LeadID != "L-4411" {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(CustomerResponse{CustomerID: "CUST-1"})
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key")
	resp, err := c.CreateCustomer(context.Background(), CustomerRequest{Name: "Lucía Fernández", LeadID: "L-4411"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.CustomerID != "CUST-1" {
		t.Errorf("customer id = %q", resp.CustomerID)
	}
}

func TestCreateTicket_ValidationRejectionNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": "policy_numbers: comma separator not accepted"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	_, err := c.CreateTicket(context.Background(), TicketRequest{CallID: "conv-1", PolicyNumbers: "1,2"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 APIError, got %v", err)
	}
	if Retryable(err) {
		t.Error("validation rejection must not be retryable")
	}
}

func TestRetryable_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	_, err := c.CreateFollowUp(context.Background(), FollowUpRequest{RelatedIncidentID: "INC-1", CallID: "conv-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !Retryable(err) {
		t.Error("5xx must be retryable")
	}
}

func TestCreateTicket_EmptyIDRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TicketResponse{})
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	if _, err := c.CreateTicket(context.Background(), TicketRequest{CallID: "conv-1"}); err == nil {
		t.Error("empty ticket id must be an error")
	}
}
