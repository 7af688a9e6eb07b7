// Package store holds normalized requirement sets in memory for the
// lifetime of the process, keyed by opaque handles. No persistence, no
// eviction; a restart starts empty.
package store

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/reqgate/reqgate/internal/model"
)

// Store is a concurrency-safe map from baseline handle to requirement set.
type Store struct {
	mu        sync.RWMutex
	baselines map[string][]model.Requirement
}

// New returns an empty store.
func New() *Store {
	return &Store{baselines: make(map[string][]model.Requirement)}
}

// NewHandle returns a fresh opaque baseline handle.
func NewHandle() string {
	return uuid.NewString()
}

// Put stores a requirement set under the given handle, replacing any
// previous set.
func (s *Store) Put(handle string, records []model.Requirement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[handle] = records
}

// Get returns the requirement set for a handle.
func (s *Store) Get(handle string) ([]model.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, ok := s.baselines[handle]
	if !ok {
		return nil, &model.NotFoundError{Kind: "baseline", Key: handle}
	}
	return records, nil
}

// Clear drops every stored baseline.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines = make(map[string][]model.Requirement)
}

// QueryParams narrows and pages a stored requirement set. Subtypes is
// conjunctive: a record must carry every requested subtype. A Limit of
// zero or less means no limit.
type QueryParams struct {
	Subtypes []string
	Status   string
	Limit    int
	Offset   int
}

// Page is one window over the filtered, uid-sorted requirement set.
type Page struct {
	Requirements  []model.Requirement `json:"requirements"`
	TotalCount    int                 `json:"total_count"`
	ReturnedCount int                 `json:"returned_count"`
	Offset        int                 `json:"offset"`
}

// Query filters a baseline and returns one page. Results are always sorted
// ascending by uid before pagination so identical queries return identical
// pages. Out-of-range offsets return an empty page, never an error.
func (s *Store) Query(handle string, params QueryParams) (*Page, error) {
	records, err := s.Get(handle)
	if err != nil {
		return nil, err
	}

	if params.Status != "" && !model.IsValidStatus(model.Status(params.Status)) {
		return nil, model.NewInputError("invalid status filter %q", params.Status)
	}

	var filtered []model.Requirement
	for _, rec := range records {
		if params.Status != "" && string(rec.Status) != params.Status {
			continue
		}
		if !hasAllSubtypes(rec.Subtypes, params.Subtypes) {
			continue
		}
		filtered = append(filtered, rec)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].UID < filtered[j].UID
	})

	total := len(filtered)
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	page := []model.Requirement{}
	if offset < total {
		end := total
		if params.Limit > 0 && offset+params.Limit < end {
			end = offset + params.Limit
		}
		page = filtered[offset:end]
	}

	return &Page{
		Requirements:  page,
		TotalCount:    total,
		ReturnedCount: len(page),
		Offset:        offset,
	}, nil
}

func hasAllSubtypes(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
