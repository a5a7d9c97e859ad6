package cookies

import (
	"encoding/json"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/mkmccarty/CoopBoard/src/coop"
	"github.com/mkmccarty/CoopBoard/src/ei"
	"github.com/mkmccarty/CoopBoard/src/leaderboard"
	"github.com/mkmccarty/CoopBoard/src/maj"
	"github.com/mkmccarty/CoopBoard/src/metrics"
	"github.com/peterbourgon/diskv/v3"
)

// Entry is the reward bookkeeping recorded for one contract.
type Entry struct {
	ContractID         string    `json:"contractId"`
	SeasonID           string    `json:"seasonId,omitempty"`
	RecordedAt         time.Time `json:"recordedAt"`
	FastestCoop        string    `json:"fastestCoop,omitempty"`
	FastestDuration    float64   `json:"fastestDuration,omitempty"`
	FastestCoopPlayers []string  `json:"fastestCoopPlayers,omitempty"`
	SinkPlayers        []string  `json:"sinkPlayers,omitempty"`
}

// Ledger persists cookie entries, one JSON file per contract.
type Ledger struct {
	store   *diskv.Diskv
	metrics *metrics.Metrics
}

// NewLedger opens a ledger rooted at basePath. m may be nil.
func NewLedger(basePath string, m *metrics.Metrics) *Ledger {
	return &Ledger{
		store: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: AdvancedTransform,
			InverseTransform:  InverseTransform,
			CacheSizeMax:      512 * 512,
		}),
		metrics: m,
	}
}

// AdvancedTransform stores each key as a .json file
func AdvancedTransform(key string) *diskv.PathKey {
	path := strings.Split(key, "/")
	last := len(path) - 1
	return &diskv.PathKey{
		Path:     path[:last],
		FileName: path[last] + ".json",
	}
}

// InverseTransform for storing KV pairs
func InverseTransform(pathKey *diskv.PathKey) string {
	name := strings.TrimSuffix(pathKey.FileName, ".json")
	return strings.Join(append(append([]string{}, pathKey.Path...), name), "/")
}

// FromResult derives the cookie entry of a ranked result. The fastest coop is
// the best ranked coop of any flag; players and sinks come from the roster and
// exclude external members.
func FromResult(res *leaderboard.Result, now time.Time) Entry {
	e := Entry{ContractID: res.ContractID, RecordedAt: now.UTC()}
	if res.Contract != nil {
		e.SeasonID = res.Contract.SeasonID
	}

	users := make(map[string][]maj.User)
	for _, r := range res.Roster {
		users[r.Code] = append(users[r.Code], r.Users...)
	}

	if len(res.Coops) > 0 {
		fastest := slices.MinFunc(res.Coops, coop.CompareAggregates)
		e.FastestCoop = fastest.CoopID
		e.FastestDuration = fastest.PredictedDuration
		e.FastestCoopPlayers = memberIDs(users[fastest.CoopID], func(maj.User) bool { return true })
	}

	isSink := func(u maj.User) bool { return strings.EqualFold(u.Role, maj.SinkRole) }
	var sinks []maj.User
	for _, a := range res.Coops {
		var n int
		for _, u := range users[a.CoopID] {
			if isSink(u) {
				n++
			}
		}
		switch {
		case n == 0:
			log.Printf("cookies: no sink in %s for %s", a.CoopID, res.ContractID)
		case n > 1:
			log.Printf("cookies: %d sinks in %s for %s", n, a.CoopID, res.ContractID)
		}
		sinks = append(sinks, users[a.CoopID]...)
	}
	e.SinkPlayers = memberIDs(sinks, isSink)
	return e
}

func memberIDs(users []maj.User, keep func(maj.User) bool) []string {
	var ids []string
	for _, u := range users {
		if u.IsExternal || u.ID == "" || !keep(u) {
			continue
		}
		ids = append(ids, u.ID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Record stores the entry derived from res, replacing any earlier entry for the contract.
func (l *Ledger) Record(res *leaderboard.Result, now time.Time) (Entry, error) {
	e := FromResult(res, now)
	b, err := json.Marshal(e)
	if err != nil {
		return e, err
	}
	if err := l.store.Write(e.ContractID, b); err != nil {
		return e, err
	}
	if l.metrics != nil {
		l.metrics.LedgerRecords.Inc()
	}
	return e, nil
}

// Get returns the stored entry for a contract.
func (l *Ledger) Get(contractID string) (*Entry, error) {
	b, err := l.store.Read(contractID)
	if err != nil {
		return nil, ei.NotFound(contractID, "", err)
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, ei.DataError(contractID, "", "cookie entry: %w", err)
	}
	return &e, nil
}

// Contracts lists the contracts with a stored entry.
func (l *Ledger) Contracts() []string {
	var ids []string
	for key := range l.store.Keys(nil) {
		ids = append(ids, key)
	}
	slices.Sort(ids)
	return ids
}
