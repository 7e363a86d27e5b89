package models

import (
	"net"
	"strconv"
)

// WebhookEvent is the normalized Pelican "server created" payload.
type WebhookEvent struct {
	ID           int64       `json:"id"`
	UUID         string      `json:"uuid"`
	UUIDShort    string      `json:"uuid_short"`
	Name         string      `json:"name" validate:"notblank"`
	NodeID       int64       `json:"node_id"`
	AllocationID int64       `json:"allocation_id"`
	Allocation   *Allocation `json:"allocation,omitempty"`
	Event        string      `json:"event,omitempty"`
}

// Allocation is one (ip, port) endpoint Pelican assigned to a server.
type Allocation struct {
	ID       int64  `json:"id"`
	NodeID   int64  `json:"node_id"`
	IP       string `json:"ip" validate:"required,ip|hostname_rfc1123"`
	Port     int    `json:"port" validate:"min=1,max=65535"`
	ServerID int64  `json:"server_id"`
	Primary  bool   `json:"primary,omitempty"`
}

// Address returns ip:port, bracketing IPv6 literals.
func (a *Allocation) Address() string {
	return net.JoinHostPort(a.IP, strconv.Itoa(a.Port))
}

// HasAllocation reports whether the event carries an endpoint to provision.
func (e *WebhookEvent) HasAllocation() bool {
	return e.Allocation != nil
}

// EffectiveAllocationID prefers the top-level allocation_id and falls back to
// the nested allocation's id.
func (e *WebhookEvent) EffectiveAllocationID() int64 {
	if e.AllocationID != 0 {
		return e.AllocationID
	}
	if e.Allocation != nil {
		return e.Allocation.ID
	}
	return 0
}
