package compare

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/antithesishq/antithesis-sdk-go/assert"
	"github.com/google/renameio/v2"
)

// Mismatch records one failed equivalence check
type Mismatch struct {
	Case   string `json:"case"`
	Check  string `json:"check"`
	Detail string `json:"detail"`
}

// Divergence records a declared behavioral difference that was observed
type Divergence struct {
	Case     string `json:"case"`
	Check    string `json:"check"`
	New      string `json:"new"`
	Original string `json:"original"`
}

// GasSample is the gas used by both implementations for one operation
type GasSample struct {
	Case     string  `json:"case"`
	Check    string  `json:"check"`
	New      uint64  `json:"new"`
	Original uint64  `json:"original"`
	Overhead float64 `json:"overhead"`
}

// Report aggregates the outcome of a comparison run. With antithesis
// enabled every check is also emitted as an assertion.
type Report struct {
	mu sync.RWMutex

	Suite       string
	Cases       int
	Checks      int
	Mismatches  []Mismatch
	Divergences []Divergence
	Gas         []GasSample

	StartTime  time.Time
	antithesis bool
}

// NewReport creates an empty report for suite
func NewReport(suite string, antithesis bool) *Report {
	return &Report{
		Suite:      suite,
		StartTime:  time.Now(),
		antithesis: antithesis,
	}
}

func (r *Report) check(ok bool, caseName, check, detail string, details map[string]any) {
	r.mu.Lock()
	r.Checks++
	if !ok {
		r.Mismatches = append(r.Mismatches, Mismatch{Case: caseName, Check: check, Detail: detail})
	}
	r.mu.Unlock()

	if r.antithesis {
		if details == nil {
			details = map[string]any{}
		}
		details["case"] = caseName
		details["detail"] = detail
		assert.Always(ok, fmt.Sprintf("%s: %s", r.Suite, check), details)
	}
}

func (r *Report) diverged(d Divergence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Divergences = append(r.Divergences, d)
}

func (r *Report) gas(s GasSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Gas = append(r.Gas, s)
}

func (r *Report) caseStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cases++
}

// OK reports whether every check passed
func (r *Report) OK() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Mismatches) == 0
}

// Err summarizes the mismatches, or returns nil
func (r *Report) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.Mismatches) == 0 {
		return nil
	}
	first := r.Mismatches[0]
	return fmt.Errorf("%s: %d of %d checks failed, first: %s/%s: %s",
		r.Suite, len(r.Mismatches), r.Checks, first.Case, first.Check, first.Detail)
}

// EmitFinalAssertions emits run-level assertions once all cases completed.
func (r *Report) EmitFinalAssertions() {
	if !r.antithesis {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	assert.Always(
		len(r.Mismatches) == 0,
		r.Suite+"_equivalent",
		map[string]any{
			"message":    fmt.Sprintf("%d mismatches in %d checks", len(r.Mismatches), r.Checks),
			"cases":      r.Cases,
			"mismatches": r.Mismatches,
		},
	)
	assert.Sometimes(
		r.Cases > 0,
		r.Suite+"_cases_ran",
		map[string]any{"cases": r.Cases},
	)
}

// Summary returns the headline numbers of the run
func (r *Report) Summary() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]any{
		"suite":       r.Suite,
		"cases":       r.Cases,
		"checks":      r.Checks,
		"mismatches":  len(r.Mismatches),
		"divergences": len(r.Divergences),
		"duration":    time.Since(r.StartTime).String(),
	}
}

// SaveToFile writes the report as JSON, replacing path atomically
func (r *Report) SaveToFile(path string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data := map[string]any{
		"suite":       r.Suite,
		"startTime":   r.StartTime,
		"cases":       r.Cases,
		"checks":      r.Checks,
		"mismatches":  r.Mismatches,
		"divergences": r.Divergences,
		"gas":         r.Gas,
	}

	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, bytes, 0644)
}
