package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/jptrhost/pelican-dns/internal/client"
	"github.com/jptrhost/pelican-dns/internal/models"
	"github.com/jptrhost/pelican-dns/internal/repository"
)

const ledgerWriteTimeout = 5 * time.Second

// RecordLedger is the part of the provisioning ledger the pipeline needs.
type RecordLedger interface {
	Reserve(ctx context.Context, rec *models.ProvisionedRecord) error
	MarkProvisioned(ctx context.Context, id, hostname, zoneID, recordID string) error
	MarkFailed(ctx context.Context, id, errorMsg string) error
}

// ProvisionService runs the webhook-to-DNS pipeline:
// validate, reserve (optional), name, resolve zone, create record.
// Each call is one independent, single-attempt run.
type ProvisionService struct {
	names      *NameGenerator
	zones      *ZoneResolver
	records    *RecordProvisioner
	ledger     RecordLedger
	targetHost string
	timeout    time.Duration
	log        logr.Logger
}

// NewProvisionService creates a new provision service. ledger may be nil, in
// which case repeated deliveries create repeated records.
func NewProvisionService(
	names *NameGenerator,
	zones *ZoneResolver,
	records *RecordProvisioner,
	ledger RecordLedger,
	targetHost string,
	timeout time.Duration,
	log logr.Logger,
) *ProvisionService {
	return &ProvisionService{
		names:      names,
		zones:      zones,
		records:    records,
		ledger:     ledger,
		targetHost: targetHost,
		timeout:    timeout,
		log:        log,
	}
}

// HandleWebhook runs the pipeline for one webhook body and returns its
// terminal result. Failures never escape as errors; they are logged and
// reported in the result. The run is detached from ctx's cancellation and
// bounded by the service timeout instead.
func (s *ProvisionService) HandleWebhook(ctx context.Context, body []byte) *models.ProvisionResult {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	run := s.newRun()

	event, err := ParseWebhook(body)
	if err != nil {
		return run.fail(KindValidation, err)
	}
	run.log = run.log.WithValues("server", event.Name, "serverUUID", event.UUID)
	run.advance(models.StateValidated)

	if !event.HasAllocation() {
		run.result.State = models.StateNoAllocation
		run.result.Success = true
		run.log.Info("no allocation in webhook payload, nothing to provision")
		return run.result
	}
	alloc := event.Allocation
	run.log = run.log.WithValues("allocation", alloc.Address())

	reservationID, done := s.reserve(ctx, run, event)
	if done {
		return run.result
	}

	req, err := s.names.Generate(event.Name, alloc.Port, s.targetHost)
	if err != nil {
		return s.abort(run, reservationID, KindValidation, err)
	}
	run.result.Hostname = req.Hostname
	run.log = run.log.WithValues("hostname", req.Hostname, "port", req.Port)
	run.advance(models.StateNameGenerated)

	zoneID, err := s.zones.Resolve(ctx)
	if err != nil {
		kind := KindZoneResolution
		if errors.Is(err, client.ErrMissingCredential) {
			kind = KindMissingCredential
		}
		return s.abort(run, reservationID, kind, err)
	}
	run.result.ZoneID = zoneID
	run.advance(models.StateZoneResolved)

	rec, err := s.records.Provision(ctx, zoneID, req)
	if err != nil {
		kind := KindRecordCreation
		if errors.Is(err, client.ErrMissingCredential) {
			kind = KindMissingCredential
		}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && zoneRejected(apiErr) {
			s.zones.Invalidate()
		}
		return s.abort(run, reservationID, kind, err)
	}

	run.result.State = models.StateProvisioned
	run.result.Success = true
	run.result.RecordID = rec.ID
	run.result.Address = net.JoinHostPort(req.Hostname, strconv.Itoa(req.Port))

	if reservationID != "" {
		lctx, lcancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
		defer lcancel()
		if err := s.ledger.MarkProvisioned(lctx, reservationID, req.Hostname, zoneID, rec.ID); err != nil {
			run.log.Error(err, "record created but ledger update failed", "recordID", rec.ID)
		}
	}

	run.log.Info("DNS record provisioned", "address", run.result.Address, "recordID", rec.ID, "record", rec.Name)
	return run.result
}

// reserve claims the (uuid, allocation) key when a ledger is configured. done
// is true when the run already reached a terminal state. Events without a
// complete key bypass the ledger.
func (s *ProvisionService) reserve(ctx context.Context, run *pipelineRun, event *models.WebhookEvent) (id string, done bool) {
	if s.ledger == nil {
		return "", false
	}
	if strings.TrimSpace(event.UUID) == "" || event.EffectiveAllocationID() == 0 {
		run.log.Info("webhook has no server uuid or allocation id, provisioning without deduplication")
		return "", false
	}

	rec := &models.ProvisionedRecord{
		ServerUUID:   event.UUID,
		AllocationID: event.EffectiveAllocationID(),
		ServerName:   event.Name,
		Allocation:   event.Allocation.Address(),
	}
	err := s.ledger.Reserve(ctx, rec)
	if errors.Is(err, repository.ErrAlreadyProvisioned) {
		run.result.State = models.StateAlreadyProvisioned
		run.result.Success = true
		run.log.Info("allocation already provisioned, skipping redelivery", "allocationID", rec.AllocationID)
		return "", true
	}
	if err != nil {
		run.fail(KindPersistence, fmt.Errorf("reserve ledger entry: %w", err))
		return "", true
	}
	return rec.ID, false
}

// abort records the failure in the ledger (if any) and fails the run.
func (s *ProvisionService) abort(run *pipelineRun, reservationID string, kind ErrorKind, err error) *models.ProvisionResult {
	result := run.fail(kind, err)
	if reservationID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerWriteTimeout)
		defer cancel()
		if lerr := s.ledger.MarkFailed(ctx, reservationID, result.Error); lerr != nil {
			run.log.Error(lerr, "failed to record provisioning failure in ledger")
		}
	}
	return result
}

// zoneRejected reports whether a record-creation failure suggests the cached
// zone id is no longer valid.
func zoneRejected(e *client.APIError) bool {
	switch e.StatusCode {
	case http.StatusNotFound, http.StatusForbidden:
		return true
	}
	// 7003: could not route to zone; 1001: invalid zone identifier
	return e.HasCode(7003) || e.HasCode(1001)
}

type pipelineRun struct {
	result *models.ProvisionResult
	log    logr.Logger
}

func (s *ProvisionService) newRun() *pipelineRun {
	id := uuid.New().String()
	return &pipelineRun{
		result: &models.ProvisionResult{RunID: id, State: models.StateReceived},
		log:    s.log.WithValues("run", id),
	}
}

func (r *pipelineRun) advance(state models.PipelineState) {
	r.result.State = state
	r.log.V(1).Info("pipeline advanced", "state", state)
}

func (r *pipelineRun) fail(kind ErrorKind, err error) *models.ProvisionResult {
	perr := &PipelineError{Kind: kind, State: r.result.State, Err: err}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		perr.ProviderErrors = apiErr.Errors
	}

	r.result.State = models.StateFailed
	r.result.Success = false
	r.result.ErrorKind = string(kind)
	r.result.Error = err.Error()
	r.result.ProviderErrors = perr.ProviderErrors

	r.log.Error(perr, "provisioning failed", "kind", kind, "failedAfter", perr.State, "providerErrors", perr.ProviderErrors)
	return r.result
}
