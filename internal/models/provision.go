package models

import "time"

// PipelineState is a step of one webhook's provisioning run.
type PipelineState string

const (
	StateReceived           PipelineState = "received"
	StateValidated          PipelineState = "validated"
	StateNoAllocation       PipelineState = "no_allocation"
	StateAlreadyProvisioned PipelineState = "already_provisioned"
	StateNameGenerated      PipelineState = "name_generated"
	StateZoneResolved       PipelineState = "zone_resolved"
	StateProvisioned        PipelineState = "provisioned"
	StateFailed             PipelineState = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s PipelineState) Terminal() bool {
	switch s {
	case StateNoAllocation, StateAlreadyProvisioned, StateProvisioned, StateFailed:
		return true
	}
	return false
}

// Ledger row status constants
const (
	RecordStatusPending     = "pending"
	RecordStatusProvisioned = "provisioned"
	RecordStatusFailed      = "failed"
)

// ProvisionRequest is derived from a validated WebhookEvent.
type ProvisionRequest struct {
	Label      string // DNS label, [a-z0-9-]+
	Hostname   string // Label + "." + parent domain
	Port       int
	TargetHost string
}

// ProviderError is one entry of the DNS provider's structured error list.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ProvisionResult is the terminal outcome of one pipeline run.
type ProvisionResult struct {
	RunID          string          `json:"run_id"`
	State          PipelineState   `json:"state"`
	Success        bool            `json:"success"`
	Hostname       string          `json:"hostname,omitempty"`
	Address        string          `json:"address,omitempty"`
	ZoneID         string          `json:"zone_id,omitempty"`
	RecordID       string          `json:"record_id,omitempty"`
	ErrorKind      string          `json:"error_kind,omitempty"`
	Error          string          `json:"error,omitempty"`
	ProviderErrors []ProviderError `json:"provider_errors,omitempty"`
}

// ProvisionedRecord is a ledger row keyed by (server uuid, allocation id).
type ProvisionedRecord struct {
	ID           string
	ServerUUID   string
	AllocationID int64
	ServerName   string
	Hostname     *string
	Allocation   string // ip:port
	ZoneID       *string
	RecordID     *string
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
