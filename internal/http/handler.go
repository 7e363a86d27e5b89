package http

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	"github.com/jptrhost/pelican-dns/internal/models"
	"github.com/jptrhost/pelican-dns/internal/repository"
	"github.com/jptrhost/pelican-dns/internal/service"
)

const (
	maxWebhookBody   = 1 << 20
	defaultListLimit = 50
	maxListLimit     = 500
)

var redactedHeaders = map[string]bool{
	"Authorization":     true,
	webhookSecretHeader: true,
}

type Handler struct {
	provisionService *service.ProvisionService
	store            repository.RecordStore
	log              logr.Logger
}

func NewHandler(provisionService *service.ProvisionService, store repository.RecordStore, log logr.Logger) *Handler {
	return &Handler{
		provisionService: provisionService,
		store:            store,
		log:              log,
	}
}

// Webhook runs the provisioning pipeline for a Pelican delivery. The sender
// always gets {"ok":true}; the outcome is only logged.
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		h.log.Error(err, "failed to read webhook body", "ip", c.ClientIP())
		c.JSON(http.StatusOK, models.WebhookAck{OK: true})
		return
	}

	if v := h.log.V(1); v.Enabled() {
		v.Info("webhook received", "headers", redact(c.Request.Header), "body", string(body))
	}

	res := h.provisionService.HandleWebhook(c.Request.Context(), body)
	c.Header("X-Run-ID", res.RunID)
	c.JSON(http.StatusOK, models.WebhookAck{OK: true})
}

// ListRecords returns ledger rows, optionally filtered by server_uuid.
func (h *Handler) ListRecords(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ledger not configured"})
		return
	}

	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxListLimit)
	}

	records, err := h.store.List(c.Request.Context(), c.Query("server_uuid"), limit)
	if err != nil {
		h.log.Error(err, "failed to list records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list records"})
		return
	}

	resp := models.RecordListResponse{Records: make([]models.RecordInfo, 0, len(records))}
	for _, r := range records {
		resp.Records = append(resp.Records, toRecordInfo(r))
	}
	c.JSON(http.StatusOK, resp)
}

func toRecordInfo(r *models.ProvisionedRecord) models.RecordInfo {
	return models.RecordInfo{
		ID:           r.ID,
		ServerUUID:   r.ServerUUID,
		AllocationID: r.AllocationID,
		ServerName:   r.ServerName,
		Hostname:     r.Hostname,
		Allocation:   r.Allocation,
		RecordID:     r.RecordID,
		Status:       r.Status,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    r.UpdatedAt.Format(time.RFC3339),
	}
}

func redact(h http.Header) http.Header {
	out := h.Clone()
	for k := range out {
		if redactedHeaders[http.CanonicalHeaderKey(k)] {
			out[k] = []string{"[redacted]"}
		}
	}
	return out
}
