// Package search runs the end-to-end discovery pipeline: locate
// stores near a ZIP, scrape their discounted inventory, price each
// item across marketplaces and record the profitable spreads. One
// search is tracked by an in-memory state that only ever moves
// forward; counters are monotonic and a terminal status is final.
package search

import (
	"sync"
	"time"
)

// Search lifecycle statuses as reported to callers.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Pipeline phases, the finer progress detail within running.
const (
	PhaseLocating  = "locating"
	PhaseScraping  = "scraping"
	PhaseAnalyzing = "analyzing"
)

// Params describes one search request.
type Params struct {
	Zip         string   `json:"zip"`
	RadiusMiles float64  `json:"radius_miles"`
	Retailers   []string `json:"retailers"`
	// MinProfit and MinMargin override the configured thresholds
	// when positive.
	MinProfit float64 `json:"min_profit"`
	MinMargin float64 `json:"min_margin"`
}

// State is a live snapshot of one search run.
type State struct {
	SearchID string    `json:"search_id"`
	Params   Params    `json:"params"`
	Status   string    `json:"status"`
	Phase    string    `json:"phase,omitempty"`
	Errors   []string  `json:"errors,omitempty"`
	Started  time.Time `json:"started_at"`
	Finished time.Time `json:"finished_at,omitempty"`

	StoresFound        int `json:"stores_found"`
	StoresScraped      int `json:"stores_scraped"`
	StoresFailed       int `json:"stores_failed"`
	ItemsFound         int `json:"items_found"`
	ItemsAnalyzed      int `json:"items_analyzed"`
	OpportunitiesFound int `json:"opportunities_found"`
}

func terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Registry tracks search states by ID.
type Registry struct {
	mu     sync.RWMutex
	states map[string]*State
}

func NewRegistry() *Registry {
	return &Registry{states: make(map[string]*State)}
}

func (r *Registry) create(id string, params Params) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = &State{
		SearchID: id,
		Params:   params,
		Status:   StatusPending,
		Started:  time.Now(),
	}
}

// Get returns a copy of the state, so callers can never race the
// pipeline's updates.
func (r *Registry) Get(id string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.states[id]
	if !ok {
		return State{}, false
	}
	snapshot := *st
	snapshot.Errors = append([]string(nil), st.Errors...)
	return snapshot, true
}

// List returns copies of all known states, newest first.
func (r *Registry) List() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]State, 0, len(r.states))
	for _, st := range r.states {
		snapshot := *st
		snapshot.Errors = append([]string(nil), st.Errors...)
		out = append(out, snapshot)
	}
	return out
}

// setStatus advances the status. Terminal states are sticky: a late
// worker can never resurrect a finished search.
func (r *Registry) setStatus(id, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[id]
	if !ok || terminal(st.Status) {
		return
	}
	st.Status = status
	if terminal(status) {
		st.Phase = ""
		st.Finished = time.Now()
	}
}

// setPhase marks the search running and records where in the
// pipeline it is.
func (r *Registry) setPhase(id, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[id]
	if !ok || terminal(st.Status) {
		return
	}
	st.Status = StatusRunning
	st.Phase = phase
}

func (r *Registry) recordError(id, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[id]; ok {
		st.Errors = append(st.Errors, msg)
	}
}

func (r *Registry) add(id string, apply func(*State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[id]; ok {
		apply(st)
	}
}
