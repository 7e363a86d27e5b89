package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/libdns/libdns"
	"github.com/miekg/dns"

	"github.com/jptrhost/pelican-dns/internal/models"
)

// SRVSettings fixes the non-variable parts of the records created.
type SRVSettings struct {
	Prefix   string // "_service._proto"
	Priority uint16
	Weight   uint16
	TTL      time.Duration
}

// RecordProvisioner creates one SRV record per request. It does not
// deduplicate: repeating a request creates another record or fails.
//
// The appender is called with the provider zone id already resolved by
// ZoneResolver (not a zone name) and with absolute record names, which is
// what client.CloudflareClient expects. Generic libdns providers, which take
// a zone name and zone-relative names, cannot be plugged in unchanged.
type RecordProvisioner struct {
	appender libdns.RecordAppender
	srv      SRVSettings
	log      logr.Logger
}

func NewRecordProvisioner(appender libdns.RecordAppender, srv SRVSettings, log logr.Logger) *RecordProvisioner {
	return &RecordProvisioner{appender: appender, srv: srv, log: log}
}

// BuildRecord renders req as "<prefix>.<hostname>" with content
// "<priority> <weight> <port> <target>".
func (p *RecordProvisioner) BuildRecord(req *models.ProvisionRequest) (libdns.Record, error) {
	name := p.srv.Prefix + "." + req.Hostname
	if _, ok := dns.IsDomainName(name); !ok {
		return libdns.Record{}, fmt.Errorf("invalid record name %q", name)
	}
	if req.Port < 1 || req.Port > 65535 {
		return libdns.Record{}, fmt.Errorf("invalid port %d", req.Port)
	}

	rr := &dns.SRV{
		Hdr: dns.RR_Header{
			Name:   dns.Fqdn(name),
			Rrtype: dns.TypeSRV,
			Class:  dns.ClassINET,
			Ttl:    uint32(p.srv.TTL / time.Second),
		},
		Priority: p.srv.Priority,
		Weight:   p.srv.Weight,
		Port:     uint16(req.Port),
		Target:   dns.Fqdn(req.TargetHost),
	}

	return libdns.Record{
		Type:  dns.TypeToString[rr.Hdr.Rrtype],
		Name:  strings.TrimSuffix(rr.Hdr.Name, "."),
		Value: fmt.Sprintf("%d %d %d %s", rr.Priority, rr.Weight, rr.Port, strings.TrimSuffix(rr.Target, ".")),
		TTL:   time.Duration(rr.Hdr.Ttl) * time.Second,
	}, nil
}

// Provision creates the SRV record in zoneID and returns it with the
// provider's record id. Provider failures come back unchanged so callers can
// inspect the structured error list.
func (p *RecordProvisioner) Provision(ctx context.Context, zoneID string, req *models.ProvisionRequest) (libdns.Record, error) {
	rec, err := p.BuildRecord(req)
	if err != nil {
		return libdns.Record{}, err
	}

	created, err := p.appender.AppendRecords(ctx, zoneID, []libdns.Record{rec})
	if err != nil {
		return libdns.Record{}, err
	}
	if len(created) != 1 {
		return libdns.Record{}, fmt.Errorf("provider created %d records, expected 1", len(created))
	}

	p.log.V(1).Info("SRV record created", "name", created[0].Name, "content", created[0].Value, "id", created[0].ID)
	return created[0], nil
}
