package compare

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"math/big"
	"reflect"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Tolerance bounds how much more gas the new implementation may use, as a
// fraction of the original's.
type Tolerance struct {
	Creation float64
	Call     float64
}

// DefaultTolerance allows 15% on deployment and 1% per transaction.
var DefaultTolerance = Tolerance{Creation: 0.15, Call: 0.01}

// Harness drives one New/Original pair through identical calls and records
// every difference in its report. Check failures are not returned as errors;
// errors are reserved for calls that could not be made at all.
type Harness struct {
	New      Instance
	Original Instance

	accounts   Deployer
	tol        Tolerance
	classifier *Classifier
	report     *Report
	log        log.Logger
	caseName   string
}

func newHarness(caseName string, newInst, original Instance, accounts Deployer, opts Options, report *Report) *Harness {
	return &Harness{
		New:        newInst,
		Original:   original,
		accounts:   accounts,
		tol:        *opts.Tolerance,
		classifier: opts.Classifier,
		report:     report,
		log:        opts.Logger.With("case", caseName),
		caseName:   caseName,
	}
}

// Account returns the address of a named test account.
func (h *Harness) Account(name string) common.Address {
	return h.accounts.Account(name)
}

func (h *Harness) check(ok bool, check, detail string, details map[string]any) bool {
	h.report.check(ok, h.caseName, check, detail, details)
	if !ok {
		h.log.Warn("Mismatch", "check", check, "detail", detail)
	} else {
		h.log.Debug("Check passed", "check", check)
	}
	return ok
}

// CheckCreation compares the deployment gas of both instances.
func (h *Harness) CheckCreation() bool {
	return h.checkGas("deploy", h.New.DeployGas(), h.Original.DeployGas(), h.tol.Creation)
}

func (h *Harness) checkGas(check string, newGas, originalGas uint64, tolerance float64) bool {
	overhead := 0.0
	if originalGas > 0 {
		overhead = (float64(newGas) - float64(originalGas)) / float64(originalGas)
	}
	h.report.gas(GasSample{
		Case:     h.caseName,
		Check:    check,
		New:      newGas,
		Original: originalGas,
		Overhead: overhead,
	})

	ok := withinTolerance(newGas, originalGas, tolerance)
	return h.check(ok, "gas "+check,
		fmt.Sprintf("new %d original %d (%+.2f%%, limit %.2f%%)", newGas, originalGas, overhead*100, tolerance*100),
		map[string]any{"new": newGas, "original": originalGas, "tolerance": tolerance})
}

func withinTolerance(newGas, originalGas uint64, tolerance float64) bool {
	if newGas <= originalGas {
		return true
	}
	if originalGas == 0 {
		return false
	}
	return float64(newGas-originalGas)/float64(originalGas) <= tolerance
}

// Transact sends the same call from the same account to both instances and
// compares outcome, rejection kind, events and gas. It returns the New
// instance's result.
func (h *Harness) Transact(ctx context.Context, from, method string, args ...any) (*Result, error) {
	return h.transact(ctx, true, from, method, args...)
}

// TransactIgnoringEvents is Transact without the event comparison, for calls
// whose logs are allowed to differ, such as a transferFrom that leaves an
// unlimited allowance untouched and skips the Approval event.
func (h *Harness) TransactIgnoringEvents(ctx context.Context, from, method string, args ...any) (*Result, error) {
	return h.transact(ctx, false, from, method, args...)
}

func (h *Harness) transact(ctx context.Context, events bool, from, method string, args ...any) (*Result, error) {
	newRes, err := h.New.Transact(ctx, from, method, args...)
	if err != nil {
		return nil, fmt.Errorf("new %s: %w", method, err)
	}
	origRes, err := h.Original.Transact(ctx, from, method, args...)
	if err != nil {
		return nil, fmt.Errorf("original %s: %w", method, err)
	}

	newRej := h.classifier.Classify(newRes)
	origRej := h.classifier.Classify(origRes)
	if !h.check(newRej.Kind == origRej.Kind, method+" outcome",
		fmt.Sprintf("new %s, original %s", newRej, origRej), nil) {
		return newRes, nil
	}
	if newRes.Reverted {
		return newRes, nil
	}

	if events {
		h.compareEvents(method, newRes.Events, origRes.Events)
	}
	h.checkGas(method, newRes.GasUsed, origRes.GasUsed, h.tol.Call)
	return newRes, nil
}

func (h *Harness) compareEvents(method string, newEvents, origEvents []Event) {
	if !h.check(len(newEvents) == len(origEvents), method+" events",
		fmt.Sprintf("new emitted %d events, original %d", len(newEvents), len(origEvents)), nil) {
		return
	}
	for i := range newEvents {
		n, o := newEvents[i], origEvents[i]
		if !h.check(n.Name == o.Name, fmt.Sprintf("%s event %d", method, i),
			fmt.Sprintf("new %s, original %s", n.Name, o.Name), nil) {
			continue
		}
		h.check(equalArgs(n.Args, o.Args), fmt.Sprintf("%s event %s", method, n.Name),
			fmt.Sprintf("new %s, original %s", formatArgs(n.Args), formatArgs(o.Args)), nil)
	}
}

// ExpectRejection sends the call to both instances and requires both to
// reject it with kind.
func (h *Harness) ExpectRejection(ctx context.Context, kind Kind, from, method string, args ...any) error {
	newRes, err := h.New.Transact(ctx, from, method, args...)
	if err != nil {
		return fmt.Errorf("new %s: %w", method, err)
	}
	origRes, err := h.Original.Transact(ctx, from, method, args...)
	if err != nil {
		return fmt.Errorf("original %s: %w", method, err)
	}

	newRej := h.classifier.Classify(newRes)
	origRej := h.classifier.Classify(origRes)
	h.check(newRej.Kind == kind, method+" rejection new", fmt.Sprintf("want %s, got %s", kind, newRej), nil)
	h.check(origRej.Kind == kind, method+" rejection original", fmt.Sprintf("want %s, got %s", kind, origRej), nil)
	return nil
}

// ExpectEqualView calls a view on both instances and requires identical outputs.
func (h *Harness) ExpectEqualView(ctx context.Context, method string, args ...any) error {
	newOut, origOut, err := h.views(ctx, method, args...)
	if err != nil {
		return err
	}
	h.check(equalOutputs(newOut, origOut), "view "+method,
		fmt.Sprintf("new %v, original %v", newOut, origOut), nil)
	return nil
}

// ExpectView requires both instances to return want as the single output of a view.
func (h *Harness) ExpectView(ctx context.Context, want any, method string, args ...any) error {
	newOut, origOut, err := h.views(ctx, method, args...)
	if err != nil {
		return err
	}
	h.check(equalOutputs(newOut, []any{want}), "view "+method+" new",
		fmt.Sprintf("want %v, got %v", want, newOut), nil)
	h.check(equalOutputs(origOut, []any{want}), "view "+method+" original",
		fmt.Sprintf("want %v, got %v", want, origOut), nil)
	return nil
}

// ExpectDivergence asserts a documented difference: the view must return
// wantNew on New and wantOriginal on Original. The observation is recorded
// as a divergence, not a mismatch.
func (h *Harness) ExpectDivergence(ctx context.Context, wantNew, wantOriginal any, method string, args ...any) error {
	newOut, origOut, err := h.views(ctx, method, args...)
	if err != nil {
		return err
	}
	okNew := h.check(equalOutputs(newOut, []any{wantNew}), "divergence "+method+" new",
		fmt.Sprintf("want %v, got %v", wantNew, newOut), nil)
	okOrig := h.check(equalOutputs(origOut, []any{wantOriginal}), "divergence "+method+" original",
		fmt.Sprintf("want %v, got %v", wantOriginal, origOut), nil)
	if okNew && okOrig {
		h.report.diverged(Divergence{
			Case:     h.caseName,
			Check:    method,
			New:      fmt.Sprint(newOut...),
			Original: fmt.Sprint(origOut...),
		})
	}
	return nil
}

// ExpectEvent requires res to contain an event named name whose arguments
// include every entry of args.
func (h *Harness) ExpectEvent(res *Result, name string, args map[string]any) bool {
	for _, ev := range res.Events {
		if ev.Name != name {
			continue
		}
		for k, want := range args {
			if !equalValue(ev.Args[k], want) {
				return h.check(false, "event "+name,
					fmt.Sprintf("%s: want %v, got %v", k, want, ev.Args[k]), nil)
			}
		}
		return h.check(true, "event "+name, "", nil)
	}
	return h.check(false, "event "+name, "not emitted", nil)
}

func (h *Harness) views(ctx context.Context, method string, args ...any) ([]any, []any, error) {
	newOut, err := h.New.View(ctx, method, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("new %s: %w", method, err)
	}
	origOut, err := h.Original.View(ctx, method, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("original %s: %w", method, err)
	}
	return newOut, origOut, nil
}

func equalOutputs(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equalValue(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalArgs(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || !equalValue(v, w) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	switch x := a.(type) {
	case *big.Int:
		y, ok := b.(*big.Int)
		if !ok || x == nil || y == nil {
			return ok && x == y
		}
		return x.Cmp(y) == 0
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	default:
		return reflect.DeepEqual(a, b)
	}
}

func formatArgs(args map[string]any) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range slices.Sorted(maps.Keys(args)) {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s: %v", k, args[k])
	}
	buf.WriteByte('}')
	return buf.String()
}
