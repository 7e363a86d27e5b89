package client

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
	"time"

	"github.com/go-logr/logr"
	"github.com/libdns/libdns"

	"github.com/jptrhost/pelican-dns/internal/models"
)

var (
	ErrMissingCredential = errors.New("cloudflare API token is not configured")
	ErrZoneNotFound      = errors.New("zone not found")
)

// APIError is returned when Cloudflare answers with success=false or a
// non-2xx status. Errors holds the provider's structured error list.
type APIError struct {
	Operation  string
	StatusCode int
	Errors     []models.ProviderError
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("cloudflare %s failed (status %d)", e.Operation, e.StatusCode)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, pe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%d: %s", pe.Code, pe.Message))
	}
	return fmt.Sprintf("cloudflare %s failed (status %d): %s", e.Operation, e.StatusCode, strings.Join(msgs, "; "))
}

// HasCode reports whether the provider returned the given error code.
func (e *APIError) HasCode(code int) bool {
	for _, pe := range e.Errors {
		if pe.Code == code {
			return true
		}
	}
	return false
}

// CloudflareClient calls the Cloudflare v4 API with a bearer token
type CloudflareClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	log        logr.Logger
}

// NewCloudflareClient creates a new Cloudflare client. Every call is bounded
// by timeout.
func NewCloudflareClient(baseURL, apiToken string, timeout time.Duration, log logr.Logger) *CloudflareClient {
	return &CloudflareClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Zone is an entry of the zones list
type Zone struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// DNSRecordRequest is the body of a create-record call
type DNSRecordRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

// DNSRecord is a record as returned by Cloudflare
type DNSRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

type envelope struct {
	Success bool                   `json:"success"`
	Errors  []models.ProviderError `json:"errors"`
	Result  json.RawMessage        `json:"result"`
}

// GetZoneID looks up the identifier of the zone named name.
func (c *CloudflareClient) GetZoneID(ctx context.Context, name string) (string, error) {
	var zones []Zone
	if err := c.do(ctx, "zone lookup", http.MethodGet, "/zones", url.Values{"name": {name}}, nil, &zones); err != nil {
		return "", err
	}

	for _, z := range zones {
		if strings.EqualFold(z.Name, name) {
			return z.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrZoneNotFound, name)
}

// CreateDNSRecord creates a record in the given zone.
func (c *CloudflareClient) CreateDNSRecord(ctx context.Context, zoneID string, req *DNSRecordRequest) (*DNSRecord, error) {
	c.log.V(1).Info("creating DNS record", "zone", zoneID, "type", req.Type, "name", req.Name, "content", req.Content)

	var rec DNSRecord
	path := "/zones/" + url.PathEscape(zoneID) + "/dns_records"
	if err := c.do(ctx, "record creation", http.MethodPost, path, nil, req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// AppendRecords creates recs in the zone identified by zone (a Cloudflare zone
// id) and returns the created records with their provider ids. It stops at the
// first failure and returns what was created so far.
func (c *CloudflareClient) AppendRecords(ctx context.Context, zone string, recs []libdns.Record) ([]libdns.Record, error) {
	var created []libdns.Record
	for _, rec := range recs {
		out, err := c.CreateDNSRecord(ctx, zone, &DNSRecordRequest{
			Type:    rec.Type,
			Name:    rec.Name,
			Content: rec.Value,
			TTL:     int(rec.TTL / time.Second),
		})
		if err != nil {
			return created, err
		}
		rec.ID = out.ID
		created = append(created, rec)
	}
	return created, nil
}

func (c *CloudflareClient) do(ctx context.Context, op, method, path string, query url.Values, body interface{}, result interface{}) error {
	if c.apiToken == "" {
		return ErrMissingCredential
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("cloudflare %s: send request: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cloudflare %s: read response: %w", op, err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("cloudflare %s: decode response (status %d): %w", op, resp.StatusCode, err)
	}

	if !env.Success || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Errors: env.Errors}
	}

	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("cloudflare %s: decode result: %w", op, err)
		}
	}
	return nil
}

var _ libdns.RecordAppender = (*CloudflareClient)(nil)
