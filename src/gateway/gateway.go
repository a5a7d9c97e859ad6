package gateway

import (
	"bytes"
	"cmp"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/mkmccarty/CoopBoard/src/ei"
	"github.com/mkmccarty/CoopBoard/src/maj"
	"github.com/mkmccarty/CoopBoard/src/metrics"
)

// SentinelContractID is the placeholder contract every account starts with.
const SentinelContractID = "first-contract"

// ReplayPrefix on a coop code replays the archived snapshot instead of fetching.
const ReplayPrefix = maj.ReplayPrefix

const catalogKey = "catalog"

// ContractSource provides the contract catalog.
type ContractSource interface {
	FetchContracts(ctx context.Context) ([]ei.Contract, error)
}

// CoopStatusSource provides raw coop status payloads.
type CoopStatusSource interface {
	FetchCoopStatus(ctx context.Context, contractID, coopID string) ([]byte, error)
}

// RosterSource provides the published roster of coops for a contract.
type RosterSource interface {
	FetchRoster(ctx context.Context, contractID string) (*maj.Response, error)
}

// Options configures a Gateway.
type Options struct {
	Contracts  ContractSource
	CoopStatus CoopStatusSource
	Roster     RosterSource
	Archive    *Archive
	TTL        time.Duration
	Metrics    *metrics.Metrics
}

// Gateway fetches remote data through per key caches.
//
// Key space: the catalog lives under "catalog", rosters under the contract
// id and coop snapshots under "contract:coop". The catalog never expires.
// Rosters and snapshots expire after TTL when it is set.
type Gateway struct {
	opts      Options
	contracts *Cache[[]ei.Contract]
	statuses  *Cache[*ei.CoopStatus]
	rosters   *Cache[[]maj.Entry]
}

// New creates a Gateway.
func New(opts Options) *Gateway {
	return &Gateway{
		opts:      opts,
		contracts: NewCache[[]ei.Contract]("contracts", 0, opts.Metrics),
		statuses:  NewCache[*ei.CoopStatus]("coop_status", opts.TTL, opts.Metrics),
		rosters:   NewCache[[]maj.Entry]("roster", opts.TTL, opts.Metrics),
	}
}

// StatusKey is the cache key of a coop snapshot.
func StatusKey(contractID, coopID string) string {
	return contractID + ":" + coopID
}

// Contracts returns the catalog newest first, without the sentinel contract.
func (g *Gateway) Contracts(ctx context.Context) ([]ei.Contract, error) {
	contracts, err := g.contracts.Get(ctx, catalogKey, false, func(ctx context.Context) ([]ei.Contract, error) {
		all, err := g.opts.Contracts.FetchContracts(ctx)
		if err != nil {
			return nil, err
		}
		contracts := slices.DeleteFunc(slices.Clone(all), func(c ei.Contract) bool {
			return c.ID == SentinelContractID
		})
		slices.SortStableFunc(contracts, func(a, b ei.Contract) int {
			if c := b.StartTime.Compare(a.StartTime); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		log.Printf("gateway: loaded %d contracts", len(contracts))
		return contracts, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(contracts), nil
}

// Contract returns one contract from the catalog.
func (g *Gateway) Contract(ctx context.Context, contractID string) (*ei.Contract, error) {
	contracts, err := g.Contracts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range contracts {
		if contracts[i].ID == contractID {
			return &contracts[i], nil
		}
	}
	return nil, ei.NotFound(contractID, "", fmt.Errorf("contract not in catalog"))
}

// CoopStatus returns the snapshot of a coop. A non-success response status is NotFound.
func (g *Gateway) CoopStatus(ctx context.Context, contractID, coopID string, force bool) (*ei.CoopStatus, error) {
	if strings.HasPrefix(coopID, ReplayPrefix) {
		return g.replay(contractID, strings.TrimPrefix(coopID, ReplayPrefix))
	}
	return g.statuses.Get(ctx, StatusKey(contractID, coopID), force, func(ctx context.Context) (*ei.CoopStatus, error) {
		body, err := g.opts.CoopStatus.FetchCoopStatus(ctx, contractID, coopID)
		if err != nil {
			return nil, err
		}
		s, err := decodeStatus(contractID, coopID, body)
		if err != nil {
			return nil, err
		}
		g.archive(contractID, coopID, body)
		return s, nil
	})
}

// Roster returns the validated roster entries for a contract.
func (g *Gateway) Roster(ctx context.Context, contractID string, force bool) ([]maj.Entry, error) {
	return g.rosters.Get(ctx, contractID, force, func(ctx context.Context) ([]maj.Entry, error) {
		resp, err := g.opts.Roster.FetchRoster(ctx, contractID)
		if err != nil {
			return nil, err
		}
		return resp.Entries(contractID), nil
	})
}

// Invalidate drops a cached coop snapshot, or the contract's roster when coopID is empty.
func (g *Gateway) Invalidate(contractID, coopID string) {
	if coopID == "" {
		g.rosters.Invalidate(contractID)
		return
	}
	g.statuses.Invalidate(StatusKey(contractID, coopID))
}

// InvalidateAll drops every cached roster and snapshot. The catalog is kept.
func (g *Gateway) InvalidateAll() {
	log.Printf("gateway: dropping %d rosters and %d snapshots", g.rosters.Len(), g.statuses.Len())
	g.rosters.Clear()
	g.statuses.Clear()
}

func (g *Gateway) replay(contractID, coopID string) (*ei.CoopStatus, error) {
	if g.opts.Archive == nil {
		return nil, ei.NotFound(contractID, coopID, fmt.Errorf("no archive configured"))
	}
	if !g.opts.Archive.Has(contractID, coopID) {
		return nil, ei.NotFound(contractID, coopID, fmt.Errorf("no archived snapshot"))
	}
	body, err := g.opts.Archive.Load(contractID, coopID)
	if err != nil {
		return nil, ei.NotFound(contractID, coopID, err)
	}
	log.Printf("gateway: replaying archived snapshot %s/%s", contractID, coopID)
	return decodeStatus(contractID, coopID, body)
}

func (g *Gateway) archive(contractID, coopID string, body []byte) {
	if g.opts.Archive == nil {
		return
	}
	outcome := "ok"
	if err := g.opts.Archive.Save(contractID, coopID, body); err != nil {
		log.Printf("gateway: archive %s/%s: %v", contractID, coopID, err)
		outcome = "error"
	}
	if g.opts.Metrics != nil {
		g.opts.Metrics.ArchiveWrites.WithLabelValues(outcome).Inc()
	}
}

// decodeStatus decodes a base64 AuthenticatedMessage holding a coop status response.
func decodeStatus(contractID, coopID string, body []byte) (*ei.CoopStatus, error) {
	raw, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(body)))
	if err != nil {
		return nil, ei.DataError(contractID, coopID, "coop status encoding: %w", err)
	}
	msg, err := ei.UnwrapAuthenticated(raw)
	if err != nil {
		return nil, ei.DataError(contractID, coopID, "%w", err)
	}
	s, err := ei.UnmarshalCoopStatus(msg)
	if err != nil {
		return nil, ei.DataError(contractID, coopID, "%w", err)
	}
	if s.ContractID == "" {
		s.ContractID = contractID
	}
	if s.CoopID == "" {
		s.CoopID = coopID
	}
	if s.Status != ei.StatusNoError {
		return nil, ei.NotFound(contractID, coopID, fmt.Errorf("response status %d", s.Status))
	}
	return s, nil
}
