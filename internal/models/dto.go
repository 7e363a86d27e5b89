package models

// WebhookAck is the body returned to the webhook sender.
type WebhookAck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// RecordInfo is the API view of a ledger row.
type RecordInfo struct {
	ID           string  `json:"id"`
	ServerUUID   string  `json:"server_uuid"`
	AllocationID int64   `json:"allocation_id"`
	ServerName   string  `json:"server_name"`
	Hostname     *string `json:"hostname,omitempty"`
	Allocation   string  `json:"allocation"`
	RecordID     *string `json:"record_id,omitempty"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// RecordListResponse wraps a ledger query.
type RecordListResponse struct {
	Records []RecordInfo `json:"records"`
}
