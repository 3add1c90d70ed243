package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"

	"github.com/parthshah1/perpwizard/config"
	"github.com/parthshah1/perpwizard/deploy"
	"github.com/parthshah1/perpwizard/orchestrator"
	"github.com/parthshah1/perpwizard/registry"
)

// Call is a method invocation in a manifest. Args may reference deployed
// contracts as ${Name} or ${Artifact[Label]} and the signer roles as
// ${deployer}, ${keeper} and ${admin}.
type Call struct {
	Method      string   `json:"method"`
	Args        []string `json:"args"`
	Types       []string `json:"types"`
	Description string   `json:"description,omitempty"`
}

// Action is a follow-up setter guarded by a getter. The setter is sent only
// when Check does not return Want.
type Action struct {
	Call
	Check   Call   `json:"check"`
	Returns string `json:"returns"`
	Want    string `json:"want"`
}

type PostDeployment struct {
	Initialize *Call    `json:"initialize,omitempty"`
	Actions    []Action `json:"actions,omitempty"`
}

// ManifestContract is one additional contract deployed after the built-in graph.
type ManifestContract struct {
	Name             string            `json:"name"`
	Tags             []string          `json:"tags,omitempty"`
	ConstructorArgs  []string          `json:"constructor_args"`
	ConstructorTypes []string          `json:"constructor_types"`
	Libraries        map[string]string `json:"libraries,omitempty"`
	Dependencies     []string          `json:"dependencies,omitempty"`
	PostDeployment   *PostDeployment   `json:"post_deployment,omitempty"`
}

type Manifest struct {
	Contracts []ManifestContract `json:"contracts"`
}

// LoadManifest reads and parses a contracts manifest file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	for i, c := range m.Contracts {
		if _, err := registry.ParseName(c.Name); err != nil {
			return nil, fmt.Errorf("contract %d: %w", i, err)
		}
		if len(c.ConstructorArgs) != len(c.ConstructorTypes) {
			return nil, fmt.Errorf("%s: %d constructor args but %d types", c.Name, len(c.ConstructorArgs), len(c.ConstructorTypes))
		}
	}
	return &m, nil
}

// Steps turns the manifest into graph steps. References found in arguments
// are added to the declared dependencies.
func (m *Manifest) Steps() ([]orchestrator.Step, error) {
	out := make([]orchestrator.Step, 0, len(m.Contracts))
	for _, c := range m.Contracts {
		name := registry.MustParseName(c.Name)

		actions, err := c.facts()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name, err)
		}

		out = append(out, orchestrator.Step{
			ID:           name.String(),
			Tags:         append([]string{"manifest"}, c.Tags...),
			Dependencies: c.dependencies(),
			Run: func(ctx context.Context, env *deploy.Env) error {
				return c.run(ctx, env, name, actions)
			},
		})
	}
	return out, nil
}

// dependencies merges the declared dependencies with every ${...} reference.
func (c ManifestContract) dependencies() []string {
	seen := make(map[string]bool)
	var deps []string
	add := func(dep string) {
		if !seen[dep] && !isRole(dep) {
			seen[dep] = true
			deps = append(deps, dep)
		}
	}

	for _, dep := range c.Dependencies {
		add(dep)
	}
	scan := func(args []string) {
		for _, arg := range args {
			if ref, ok := reference(arg); ok {
				add(ref)
			}
		}
	}
	scan(c.ConstructorArgs)
	for _, lib := range c.Libraries {
		scan([]string{lib})
	}
	if c.PostDeployment != nil {
		if c.PostDeployment.Initialize != nil {
			scan(c.PostDeployment.Initialize.Args)
		}
		for _, action := range c.PostDeployment.Actions {
			scan(action.Args)
			scan(action.Check.Args)
		}
	}
	return deps
}

// templateFact defers template resolution of an action until the step runs.
type templateFact struct {
	set    *w3.Func
	get    *w3.Func
	action Action
}

func (c ManifestContract) facts() ([]templateFact, error) {
	if c.PostDeployment == nil {
		return nil, nil
	}
	var out []templateFact
	for _, action := range c.PostDeployment.Actions {
		if action.Check.Method == "" {
			return nil, fmt.Errorf("action %s has no check", action.Method)
		}
		set, err := w3.NewFunc(action.Method, "")
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", action.Method, err)
		}
		get, err := w3.NewFunc(action.Check.Method, action.Returns)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", action.Check.Method, err)
		}
		out = append(out, templateFact{set: set, get: get, action: action})
	}
	return out, nil
}

func (c ManifestContract) run(ctx context.Context, env *deploy.Env, name registry.Name, actions []templateFact) error {
	d := env.Deployer

	args, err := resolveArgs(ctx, env, c.ConstructorArgs, c.ConstructorTypes)
	if err != nil {
		return fmt.Errorf("%s: failed to resolve constructor args: %w", name, err)
	}

	var libs map[string]common.Address
	if len(c.Libraries) > 0 {
		libs = make(map[string]common.Address, len(c.Libraries))
		for lib, value := range c.Libraries {
			resolved, err := resolveArgs(ctx, env, []string{value}, []string{"address"})
			if err != nil {
				return fmt.Errorf("%s: library %s: %w", name, lib, err)
			}
			libs[lib] = resolved[0].(common.Address)
		}
	}

	if _, err := d.Deploy(ctx, name, args, libs); err != nil {
		return err
	}

	var facts []deploy.Fact
	for _, a := range actions {
		setArgs, err := resolveArgs(ctx, env, a.action.Args, a.action.Types)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", name, a.action.Method, err)
		}
		getArgs, err := resolveArgs(ctx, env, a.action.Check.Args, a.action.Check.Types)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", name, a.action.Check.Method, err)
		}
		want, err := config.ConvertArgument(a.action.Want, a.action.Returns)
		if err != nil {
			return fmt.Errorf("%s.%s: want: %w", name, a.action.Check.Method, err)
		}
		facts = append(facts, deploy.Composite(a.set, setArgs, deploy.Check{Get: a.get, Args: getArgs, Want: want}))
	}

	if c.PostDeployment != nil && c.PostDeployment.Initialize != nil {
		initCall := c.PostDeployment.Initialize
		initArgs, err := resolveArgs(ctx, env, initCall.Args, initCall.Types)
		if err != nil {
			return fmt.Errorf("%s.initialize: %w", name, err)
		}
		return d.Initialize(ctx, name, initArgs, facts...)
	}
	return d.Ensure(ctx, name, facts...)
}

func reference(arg string) (string, bool) {
	if strings.HasPrefix(arg, "${") && strings.HasSuffix(arg, "}") {
		return arg[2 : len(arg)-1], true
	}
	return "", false
}

func isRole(ref string) bool {
	switch ref {
	case "deployer", "keeper", "admin":
		return true
	}
	return false
}

// resolveArgs replaces template references with addresses and converts the
// results to ABI values.
func resolveArgs(ctx context.Context, env *deploy.Env, args, types []string) ([]any, error) {
	resolved := make([]string, len(args))
	for i, arg := range args {
		ref, ok := reference(arg)
		if !ok {
			resolved[i] = arg
			continue
		}

		switch ref {
		case "deployer":
			resolved[i] = env.Deployer.From().Hex()
		case "keeper":
			resolved[i] = env.Keeper.Hex()
		case "admin":
			resolved[i] = env.Admin.Hex()
		default:
			name, err := registry.ParseName(ref)
			if err != nil {
				return nil, err
			}
			rec, err := env.Deployer.Record(ctx, name)
			if err != nil {
				return nil, err
			}
			resolved[i] = rec.Address.Hex()
		}
	}
	return config.ConvertArguments(resolved, types)
}
