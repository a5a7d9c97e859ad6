package leaderboard

import (
	"cmp"
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mkmccarty/CoopBoard/src/coop"
	"github.com/mkmccarty/CoopBoard/src/ei"
	"github.com/mkmccarty/CoopBoard/src/maj"
	"github.com/mkmccarty/CoopBoard/src/metrics"
	"github.com/rs/xid"
)

// DefaultWorkers bounds concurrent coop fetches when Options.Workers is unset.
const DefaultWorkers = 8

// Source provides contracts, rosters and coop snapshots.
type Source interface {
	Contract(ctx context.Context, contractID string) (*ei.Contract, error)
	Roster(ctx context.Context, contractID string, force bool) ([]maj.Entry, error)
	CoopStatus(ctx context.Context, contractID, coopID string, force bool) (*ei.CoopStatus, error)
}

// Options for one ranked build.
type Options struct {
	// Force refetches the roster and every snapshot and discards coops built earlier.
	Force   bool
	Reverse bool
	Workers int
}

// Failure is a coop that could not be built.
type Failure struct {
	Code string
	Err  error
}

// Result is the ordered outcome of a ranked build.
type Result struct {
	RunID      string
	ContractID string
	Flags      maj.Flags
	Contract   *ei.Contract
	Coops      []*coop.Aggregate
	Failures   []Failure
	Roster     []maj.Entry
	BuiltAt    time.Time
}

type contractState struct {
	coops map[string]*coop.Aggregate
}

// Orchestrator builds ranked coop results and remembers the coops built per contract.
type Orchestrator struct {
	src     Source
	metrics *metrics.Metrics
	now     func() time.Time

	mu        sync.Mutex
	contracts map[string]*contractState
}

// New creates an Orchestrator. m may be nil.
func New(src Source, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		src:       src,
		metrics:   m,
		now:       time.Now,
		contracts: make(map[string]*contractState),
	}
}

type job struct {
	slot  int
	entry maj.Entry
}

// BuildRanked builds every roster coop of the contract whose flags intersect
// flags and returns all built coops matching flags in ranked order. Coops
// built by an earlier call are reused unless opts.Force is set. A coop that
// fails to build is logged and left out.
func (o *Orchestrator) BuildRanked(ctx context.Context, contractID string, flags maj.Flags, opts Options) (*Result, error) {
	start := time.Now()
	runID := xid.New().String()
	res, err := o.buildRanked(ctx, runID, contractID, flags, opts)
	if o.metrics != nil {
		o.metrics.BuildDuration.Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		o.metrics.BuildsTotal.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		log.Printf("%s: contract %s: %v", runID, contractID, err)
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.LastBuildCoops.Set(float64(len(res.Coops)))
	}
	log.Printf("%s: contract %s %v: %d coops ranked, %d failed", runID, contractID, flags, len(res.Coops), len(res.Failures))
	return res, nil
}

func (o *Orchestrator) buildRanked(ctx context.Context, runID, contractID string, flags maj.Flags, opts Options) (*Result, error) {
	if flags == 0 {
		flags = maj.DefaultFlags
	}
	contract, err := o.src.Contract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	roster, err := o.src.Roster(ctx, contractID, opts.Force)
	if err != nil {
		return nil, err
	}
	pending := o.selectPending(contractID, roster, flags, opts.Force)
	now := o.now()
	slots, failures := o.buildAll(ctx, runID, contract, pending, now, opts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	coops := o.store(contractID, roster, slots, flags, opts.Force)
	coop.Sort(coops, opts.Reverse)
	return &Result{
		RunID:      runID,
		ContractID: contractID,
		Flags:      flags,
		Contract:   contract,
		Coops:      coops,
		Failures:   failures,
		Roster:     roster,
		BuiltAt:    now,
	}, nil
}

// selectPending keeps roster entries matching flags that have not been built
// yet. Duplicate codes are merged with their flags combined.
func (o *Orchestrator) selectPending(contractID string, roster []maj.Entry, flags maj.Flags, force bool) []maj.Entry {
	o.mu.Lock()
	defer o.mu.Unlock()
	state := o.contracts[contractID]
	if force {
		state = nil
	}

	var pending []maj.Entry
	index := make(map[string]int)
	for _, e := range roster {
		if e.Code == "" || !e.Flags.Intersects(flags) {
			continue
		}
		if state != nil && state.coops[e.Code] != nil {
			continue
		}
		if i, ok := index[e.Code]; ok {
			pending[i].Flags |= e.Flags
			pending[i].Users = append(slices.Clone(pending[i].Users), e.Users...)
			continue
		}
		index[e.Code] = len(pending)
		pending = append(pending, e)
	}
	return pending
}

func (o *Orchestrator) buildAll(ctx context.Context, runID string, contract *ei.Contract, pending []maj.Entry, now time.Time, opts Options) ([]*coop.Aggregate, []Failure) {
	n := len(pending)
	slots := make([]*coop.Aggregate, n)
	errs := make([]error, n)
	if n == 0 {
		return slots, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	workers = max(min(n, workers), 1)

	jobs := make(chan job, n)
	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for j := range jobs {
			if ctx.Err() != nil {
				errs[j.slot] = ctx.Err()
				continue
			}
			slots[j.slot], errs[j.slot] = o.buildOne(ctx, contract, j.entry, now, opts.Force)
		}
	}
	wg.Add(workers)
	for range workers {
		go worker()
	}
	for i, e := range pending {
		jobs <- job{slot: i, entry: e}
	}
	close(jobs)
	wg.Wait()

	var failures []Failure
	for i, err := range errs {
		if err == nil {
			continue
		}
		log.Printf("%s: coop %s/%s skipped: %v", runID, contract.ID, pending[i].Code, err)
		failures = append(failures, Failure{Code: pending[i].Code, Err: err})
		if o.metrics != nil {
			o.metrics.CoopsFailed.WithLabelValues(errorKind(err)).Inc()
		}
	}
	return slots, failures
}

// BuildCoop builds one coop by code outside of any roster. A code starting
// with maj.ReplayPrefix is served from the snapshot archive. The coop is not
// added to the contract's result set.
func (o *Orchestrator) BuildCoop(ctx context.Context, contractID, code string, force bool) (*coop.Aggregate, error) {
	replay := strings.HasPrefix(code, maj.ReplayPrefix)
	code = maj.NormalizeCode(strings.TrimPrefix(code, maj.ReplayPrefix))
	if err := maj.ValidateCode(contractID, code); err != nil {
		return nil, err
	}
	if replay {
		code = maj.ReplayPrefix + code
	}
	contract, err := o.src.Contract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	return o.buildOne(ctx, contract, maj.Entry{Code: code}, o.now(), force)
}

func (o *Orchestrator) buildOne(ctx context.Context, contract *ei.Contract, e maj.Entry, now time.Time, force bool) (*coop.Aggregate, error) {
	status, err := o.src.CoopStatus(ctx, contract.ID, e.Code, force)
	if err != nil {
		return nil, err
	}
	a, err := coop.Build(status, contract, e.Flags, now)
	if err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.CoopsBuilt.Inc()
	}
	return a, nil
}

// store adds the built coops to the contract's result set and returns every
// stored coop matching flags. A forced build replaces the result set. Stored
// coops selected again by the roster pick up the selecting entry's flags.
func (o *Orchestrator) store(contractID string, roster []maj.Entry, built []*coop.Aggregate, flags maj.Flags, force bool) []*coop.Aggregate {
	o.mu.Lock()
	defer o.mu.Unlock()
	state := o.contracts[contractID]
	if state == nil || force {
		state = &contractState{coops: make(map[string]*coop.Aggregate)}
		o.contracts[contractID] = state
	}
	for _, a := range built {
		if a != nil {
			state.coops[a.CoopID] = a
		}
	}
	for _, e := range roster {
		a := state.coops[e.Code]
		if a != nil && e.Flags.Intersects(flags) && a.Flags|e.Flags != a.Flags {
			state.coops[e.Code] = a.WithFlags(a.Flags | e.Flags)
		}
	}

	var coops []*coop.Aggregate
	for _, a := range state.coops {
		if a.Flags.Intersects(flags) {
			coops = append(coops, a)
		}
	}
	// Map order is random; fix a base order before the stable sort.
	slices.SortFunc(coops, func(a, b *coop.Aggregate) int {
		return cmp.Compare(a.CoopID, b.CoopID)
	})
	return coops
}

// Forget drops the coops built for a contract.
func (o *Orchestrator) Forget(contractID string) {
	o.mu.Lock()
	delete(o.contracts, contractID)
	o.mu.Unlock()
}

// Built returns the number of coops built for a contract.
func (o *Orchestrator) Built(contractID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if state := o.contracts[contractID]; state != nil {
		return len(state.coops)
	}
	return 0
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ei.ErrNotFound):
		return "not_found"
	case errors.Is(err, ei.ErrData):
		return "data"
	case errors.Is(err, ei.ErrTransient):
		return "transient"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "other"
}
