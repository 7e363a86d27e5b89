package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"github.com/libdns/libdns"

	"github.com/jptrhost/pelican-dns/internal/models"
)

func newTestClient(t *testing.T, token string, h http.HandlerFunc) *CloudflareClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewCloudflareClient(srv.URL, token, 2*time.Second, logr.Discard())
}

func TestGetZoneID(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/zones" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("name"); got != "jptr.host" {
			t.Errorf("expected name=jptr.host, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", got)
		}
		w.Write([]byte(`{"success":true,"errors":[],"result":[{"id":"zone-123","name":"jptr.host","status":"active"}]}`))
	})

	id, err := c.GetZoneID(context.Background(), "jptr.host")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "zone-123" {
		t.Errorf("expected zone-123, got %q", id)
	}
}

func TestGetZoneID_NotFound(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"errors":[],"result":[]}`))
	})

	_, err := c.GetZoneID(context.Background(), "jptr.host")
	if !errors.Is(err, ErrZoneNotFound) {
		t.Fatalf("expected ErrZoneNotFound, got %v", err)
	}
}

func TestGetZoneID_SuccessFalseWithHTTP200(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success":false,"errors":[{"code":10000,"message":"Authentication error"}],"result":null}`))
	})

	_, err := c.GetZoneID(context.Background(), "jptr.host")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", apiErr.StatusCode)
	}
	if !apiErr.HasCode(10000) {
		t.Errorf("expected error code 10000 in %v", apiErr.Errors)
	}
}

func TestMissingCredentialSkipsNetwork(t *testing.T) {
	var calls int32
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	if _, err := c.GetZoneID(context.Background(), "jptr.host"); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("expected no requests, got %d", calls)
	}
}

func TestNonJSONResponse(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := c.GetZoneID(context.Background(), "jptr.host")
	if err == nil {
		t.Fatal("expected error for non-JSON response")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("expected a decode error, got APIError %v", apiErr)
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"success":true,"result":[]}`))
	}))
	t.Cleanup(srv.Close)
	c := NewCloudflareClient(srv.URL, "tok", 20*time.Millisecond, logr.Discard())

	if _, err := c.GetZoneID(context.Background(), "jptr.host"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestAppendRecords(t *testing.T) {
	var got DNSRecordRequest
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/zones/zone-123/dns_records" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"success":true,"errors":[],"result":{"id":"rec-1","type":"SRV","name":"_minecraft._tcp.a.jptr.host"}}`))
	})

	recs, err := c.AppendRecords(context.Background(), "zone-123", []libdns.Record{{
		Type:  "SRV",
		Name:  "_minecraft._tcp.a.jptr.host",
		Value: "0 5 25565 wings.jptr.host",
		TTL:   300 * time.Second,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := DNSRecordRequest{Type: "SRV", Name: "_minecraft._tcp.a.jptr.host", Content: "0 5 25565 wings.jptr.host", TTL: 300}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
	if len(recs) != 1 || recs[0].ID != "rec-1" {
		t.Errorf("expected created record rec-1, got %+v", recs)
	}
}

func TestAppendRecords_ProviderErrors(t *testing.T) {
	c := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"errors":[{"code":81057,"message":"Record already exists."},{"code":1004,"message":"DNS Validation Error"}]}`))
	})

	recs, err := c.AppendRecords(context.Background(), "zone-123", []libdns.Record{{Type: "SRV", Name: "x", Value: "0 5 1 y"}})
	if len(recs) != 0 {
		t.Errorf("expected no created records, got %d", len(recs))
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	want := []models.ProviderError{
		{Code: 81057, Message: "Record already exists."},
		{Code: 1004, Message: "DNS Validation Error"},
	}
	if diff := cmp.Diff(want, apiErr.Errors); diff != "" {
		t.Errorf("provider errors mismatch (-want +got):\n%s", diff)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", apiErr.StatusCode)
	}
}
