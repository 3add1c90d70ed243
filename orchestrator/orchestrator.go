// Package orchestrator orders deployment steps by their declared
// dependencies and runs them one at a time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/parthshah1/perpwizard/deploy"
	"github.com/parthshah1/perpwizard/registry"
)

var (
	ErrDuplicateStep = errors.New("duplicate step")
	ErrUnknownStep   = errors.New("unknown step")
	ErrCycle         = errors.New("circular dependency")
)

// Orchestrator holds the registered steps in registration order.
type Orchestrator struct {
	steps map[string]*Step
	order []string
	store registry.Store
	log   log.Logger
	mu    sync.RWMutex
}

// New creates an orchestrator recording run-once steps in store.
func New(store registry.Store, logger log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Root()
	}
	return &Orchestrator{
		steps: make(map[string]*Step),
		store: store,
		log:   logger,
	}
}

// Register adds steps. IDs must be unique and every step needs a Run func.
func (o *Orchestrator) Register(steps ...Step) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := range steps {
		step := steps[i]
		if step.ID == "" {
			return fmt.Errorf("step %d has no id", i)
		}
		if step.Run == nil {
			return fmt.Errorf("step %s has no run function", step.ID)
		}
		if _, exists := o.steps[step.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateStep, step.ID)
		}
		o.steps[step.ID] = &step
		o.order = append(o.order, step.ID)
	}
	return nil
}

// Steps returns all registered steps in registration order.
func (o *Orchestrator) Steps() []Step {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]Step, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, *o.steps[id])
	}
	return out
}

// Order returns the steps to execute for tags, dependencies first. Without
// tags every step is selected; with tags the matching steps and everything
// they transitively depend on are selected. Ties are broken by registration
// order so the result is deterministic.
func (o *Orchestrator) Order(tags ...string) ([]Step, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	selected, err := o.selectSteps(tags)
	if err != nil {
		return nil, err
	}

	var ordered []Step
	done := make(map[string]bool)

	for len(ordered) < len(selected) {
		progress := false

		for _, id := range o.order {
			if !selected[id] || done[id] {
				continue
			}

			ready := true
			for _, dep := range o.steps[id].Dependencies {
				if !done[dep] {
					ready = false
					break
				}
			}

			if ready {
				ordered = append(ordered, *o.steps[id])
				done[id] = true
				progress = true
			}
		}

		if !progress {
			var stuck []string
			for id := range selected {
				if !done[id] {
					stuck = append(stuck, id)
				}
			}
			sort.Strings(stuck)
			return nil, fmt.Errorf("%w among: %s", ErrCycle, strings.Join(stuck, ", "))
		}
	}

	return ordered, nil
}

func (o *Orchestrator) selectSteps(tags []string) (map[string]bool, error) {
	selected := make(map[string]bool)

	var queue []string
	if len(tags) == 0 {
		queue = append(queue, o.order...)
	}
	for _, tag := range tags {
		matched := false
		for _, id := range o.order {
			if o.steps[id].HasTag(tag) {
				queue = append(queue, id)
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: nothing matches tag %q", ErrUnknownStep, tag)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if selected[id] {
			continue
		}
		selected[id] = true

		for _, dep := range o.steps[id].Dependencies {
			if _, ok := o.steps[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownStep, id, dep)
			}
			queue = append(queue, dep)
		}
	}
	return selected, nil
}

// Run executes the ordered steps sequentially and stops at the first failure.
// Results cover every step attempted, including the failed one.
func (o *Orchestrator) Run(ctx context.Context, env *deploy.Env, tags ...string) ([]StepResult, error) {
	steps, err := o.Order(tags...)
	if err != nil {
		return nil, err
	}

	network := env.Deployer.Network()
	results := make([]StepResult, 0, len(steps))

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		if step.Once {
			done, err := o.store.StepDone(ctx, network, step.ID)
			if err != nil {
				return results, fmt.Errorf("step %s: %w", step.ID, err)
			}
			if done {
				o.log.Info("Step already completed", "step", step.ID)
				results = append(results, StepResult{StepID: step.ID, Skipped: true})
				continue
			}
		}

		o.log.Info("Running step", "step", step.ID)
		start := time.Now()
		err := step.Run(ctx, env)
		result := StepResult{StepID: step.ID, Duration: time.Since(start), Error: err}
		results = append(results, result)

		if err != nil {
			o.log.Error("Step failed", "step", step.ID, "elapsed", common.PrettyDuration(result.Duration), "err", err)
			return results, fmt.Errorf("step %s: %w", step.ID, err)
		}

		if step.Once {
			if err := o.store.MarkStep(ctx, network, step.ID); err != nil {
				return results, fmt.Errorf("step %s: %w", step.ID, err)
			}
		}
		o.log.Info("Step completed", "step", step.ID, "elapsed", common.PrettyDuration(result.Duration))
	}

	return results, nil
}
