package orchestrator

import (
	"context"
	"time"

	"github.com/parthshah1/perpwizard/deploy"
)

// Step is one node of the deployment graph. Deploy steps use the registry
// name of the contract they create as ID; configuration steps use the
// contract name plus deploy.VirtualSuffix.
type Step struct {
	ID           string
	Tags         []string
	Dependencies []string
	// Once steps are recorded after success and skipped on later runs.
	Once bool
	Run  func(ctx context.Context, env *deploy.Env) error
}

// HasTag reports whether the step carries tag or is called tag.
func (s *Step) HasTag(tag string) bool {
	if s.ID == tag {
		return true
	}
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// StepResult describes one executed or skipped step.
type StepResult struct {
	StepID   string
	Skipped  bool
	Duration time.Duration
	Error    error
}
