// Package assign implements the hash-bucketed round-robin chooser
// between an office's eligible managers, and the PickManager wrapper
// that walks neighbour offices when the nearest one has no eligible
// manager.
package assign

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ticketfire/backend/internal/competency"
	"github.com/ticketfire/backend/internal/geo"
	"github.com/ticketfire/backend/internal/models"
)

// bucketMod is 10^9, the modulus the md5 tiebreak is taken against.
var bucketMod = big.NewInt(1_000_000_000)

// bucket is the key round-robin alternation is tracked under:
// (office, is_vip_or_priority, language, is_data_change).
type bucket struct {
	office          string
	isVIPOrPriority bool
	language        string
	isDataChange    bool
}

func bucketFor(office string, ticket models.Ticket) bucket {
	return bucket{
		office: office,
		isVIPOrPriority: ticket.Segment == models.SegmentVIP ||
			ticket.Segment == models.SegmentPriority,
		language:     ticket.Language,
		isDataChange: ticket.RequestType == models.TypeDataChange,
	}
}

// RoundRobinState is the per-batch mutable state the assigner threads
// through a run: the last manager chosen per bucket, and a monotonic
// counter per bucket used to seed the hash tiebreak. Fresh per batch,
// mutated only during the sequential assignment stage, so no locking
// is required.
type RoundRobinState struct {
	lastAssigned map[bucket]string
	counter      map[bucket]int
}

// NewRoundRobinState returns an empty state for a new batch.
func NewRoundRobinState() *RoundRobinState {
	return &RoundRobinState{
		lastAssigned: make(map[bucket]string),
		counter:      make(map[bucket]int),
	}
}

// Choose picks one manager from eligible for the given office/ticket
// bucket, alternating within the top-2 by workload.
func (s *RoundRobinState) Choose(office string, ticket models.Ticket, eligible []models.Manager) (models.Manager, bool) {
	if len(eligible) == 0 {
		return models.Manager{}, false
	}

	b := bucketFor(office, ticket)
	i := s.counter[b]
	s.counter[b]++

	sorted := make([]models.Manager, len(eligible))
	copy(sorted, eligible)
	sort.Slice(sorted, func(a, c int) bool {
		if sorted[a].Workload != sorted[c].Workload {
			return sorted[a].Workload < sorted[c].Workload
		}
		return tiebreak(sorted[a].ManagerID, i) < tiebreak(sorted[c].ManagerID, i)
	})

	top2 := sorted
	if len(top2) > 2 {
		top2 = top2[:2]
	}

	prev, hadPrev := s.lastAssigned[b]
	var chosen models.Manager
	switch {
	case !hadPrev || len(top2) == 1:
		chosen = top2[0]
	case prev == top2[0].ManagerID:
		chosen = top2[1]
	case prev == top2[1].ManagerID:
		chosen = top2[0]
	default:
		chosen = top2[0]
	}

	s.lastAssigned[b] = chosen.ManagerID
	return chosen, true
}

// tiebreak computes md5_hex("{manager_id}:{i}") mod 10^9.
func tiebreak(managerID string, i int) int64 {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d", managerID, i)))
	hexStr := hex.EncodeToString(sum[:])
	n := new(big.Int)
	n.SetString(hexStr, 16)
	n.Mod(n, bucketMod)
	return n.Int64()
}

// PickManager wraps Choose with the Spam short-circuit, the competency
// filter, and the neighbour-office fallback walk. It mutates the chosen
// manager's in-memory workload on success.
//
// managers and officeIdx are scoped to the full batch; nearestOffice is
// the ticket's pre-resolved nearest office.
func (s *RoundRobinState) PickManager(
	ticket models.Ticket,
	nearestOffice models.Office,
	managersByOffice map[string][]*models.Manager,
	officeIdx *geo.Index,
) (*models.Manager, models.Office, models.AssignmentOutcome) {
	if ticket.RequestType == models.TypeSpam {
		return nil, nearestOffice, models.OutcomeSpam
	}

	office := nearestOffice
	eligible := filterAt(managersByOffice, office.Name, ticket)

	if len(eligible) == 0 {
		for _, name := range officeIdx.SortedOfficesByDistance(nearestOffice) {
			candidates := filterAt(managersByOffice, name, ticket)
			if len(candidates) > 0 {
				if o, ok := officeIdx.Get(name); ok {
					office = o
				}
				eligible = candidates
				break
			}
		}
	}

	if len(eligible) == 0 {
		return nil, office, models.OutcomeNoEligibleManager
	}

	chosen, ok := s.Choose(office.Name, ticket, eligible)
	if !ok {
		return nil, office, models.OutcomeNoEligibleManager
	}

	for _, m := range managersByOffice[strings.ToLower(office.Name)] {
		if m.ManagerID == chosen.ManagerID {
			m.Workload++
			return m, office, models.OutcomeAssigned
		}
	}
	return &chosen, office, models.OutcomeAssigned
}

// managersByOffice is keyed case-insensitively (lower-cased office name)
// since manager/office casing in CSV or DB data is not guaranteed to
// agree.
func filterAt(managersByOffice map[string][]*models.Manager, office string, ticket models.Ticket) []models.Manager {
	var flat []models.Manager
	for _, m := range managersByOffice[strings.ToLower(office)] {
		flat = append(flat, *m)
	}
	return competency.Filter(flat, office, ticket)
}

