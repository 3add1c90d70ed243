package compare

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/log"
)

// Case is one scenario run against a freshly deployed pair.
type Case struct {
	Name string
	Run  func(ctx context.Context, h *Harness) error
}

type Suite struct {
	Name  string
	Cases []Case
}

// Options configures a comparison run. Nil fields take defaults; a non-nil
// Tolerance is used as given, so a zero tolerance forbids any gas overhead.
type Options struct {
	Tolerance  *Tolerance
	Classifier *Classifier
	Logger     log.Logger
	Antithesis bool
}

func (o Options) withDefaults() Options {
	if o.Tolerance == nil {
		tol := DefaultTolerance
		o.Tolerance = &tol
	}
	if o.Classifier == nil {
		o.Classifier = NewClassifier()
	}
	if o.Logger == nil {
		o.Logger = log.Root()
	}
	return o
}

// Run deploys a fresh New/Original pair for every case of suite and runs it.
// Check failures end up in the report; the error is only set when a case
// could not run.
func Run(ctx context.Context, d Deployer, pair Pair, suite Suite, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	report := NewReport(suite.Name, opts.Antithesis)

	for _, c := range suite.Cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		logger := opts.Logger.With("suite", suite.Name)
		logger.Info("Running case", "case", c.Name, "new", pair.New, "original", pair.Original)

		newInst, err := d.Deploy(ctx, pair.New, pair.Args...)
		if err != nil {
			return report, fmt.Errorf("case %s: failed to deploy %s: %w", c.Name, pair.New, err)
		}
		original, err := d.Deploy(ctx, pair.Original, pair.Args...)
		if err != nil {
			return report, fmt.Errorf("case %s: failed to deploy %s: %w", c.Name, pair.Original, err)
		}

		report.caseStarted()
		caseOpts := opts
		caseOpts.Logger = logger
		h := newHarness(c.Name, newInst, original, d, caseOpts, report)
		h.CheckCreation()
		if err := c.Run(ctx, h); err != nil {
			return report, fmt.Errorf("case %s: %w", c.Name, err)
		}
	}

	report.EmitFinalAssertions()
	return report, nil
}

// Suites lists the built-in suites by name.
var Suites = map[string]Suite{
	"erc20":      ERC20Suite,
	"reentrancy": ReentrancySuite,
	"context":    ContextSuite,
}

// LookupSuite returns a built-in suite by case-insensitive name.
func LookupSuite(name string) (Suite, error) {
	s, ok := Suites[strings.ToLower(name)]
	if !ok {
		return Suite{}, fmt.Errorf("unknown suite %q", name)
	}
	return s, nil
}

// steps runs fns in order, stopping at the first error.
func steps(fns ...func() error) error {
	for _, fn := range fns {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func units(n int64) *big.Int {
	return big.NewInt(n)
}

func transact(ctx context.Context, h *Harness, from, method string, args ...any) func() error {
	return func() error {
		_, err := h.Transact(ctx, from, method, args...)
		return err
	}
}

func view(ctx context.Context, h *Harness, want any, method string, args ...any) func() error {
	return func() error {
		return h.ExpectView(ctx, want, method, args...)
	}
}

// ERC20Suite compares two ERC20 implementations exposing an unrestricted
// mint(address,uint256).
var ERC20Suite = Suite{
	Name: "erc20",
	Cases: []Case{
		{
			Name: "mint and transfer",
			Run: func(ctx context.Context, h *Harness) error {
				alice, carol := h.Account("alice"), h.Account("carol")
				return steps(
					transact(ctx, h, "alice", "mint", alice, units(100)),
					transact(ctx, h, "alice", "transfer", carol, units(10)),
					view(ctx, h, units(90), "balanceOf", alice),
					view(ctx, h, units(10), "balanceOf", carol),
					view(ctx, h, units(100), "totalSupply"),
				)
			},
		},
		{
			Name: "approve and transferFrom",
			Run: func(ctx context.Context, h *Harness) error {
				alice, bob, carol := h.Account("alice"), h.Account("bob"), h.Account("carol")
				return steps(
					transact(ctx, h, "alice", "mint", alice, units(100)),
					transact(ctx, h, "alice", "approve", bob, units(50)),
					transact(ctx, h, "bob", "transferFrom", alice, carol, units(10)),
					view(ctx, h, units(40), "allowance", alice, bob),
					view(ctx, h, units(90), "balanceOf", alice),
					view(ctx, h, units(10), "balanceOf", carol),
				)
			},
		},
		{
			Name: "infinite allowance",
			Run: func(ctx context.Context, h *Harness) error {
				alice, bob, carol := h.Account("alice"), h.Account("bob"), h.Account("carol")
				decremented := new(big.Int).Sub(math.MaxBig256, units(10))
				return steps(
					transact(ctx, h, "alice", "mint", alice, units(100)),
					transact(ctx, h, "alice", "approve", bob, math.MaxBig256),
					func() error {
						_, err := h.TransactIgnoringEvents(ctx, "bob", "transferFrom", alice, carol, units(10))
						return err
					},
					func() error {
						return h.ExpectDivergence(ctx, math.MaxBig256, decremented, "allowance", alice, bob)
					},
					view(ctx, h, units(10), "balanceOf", carol),
				)
			},
		},
		{
			Name: "transfer exceeding balance",
			Run: func(ctx context.Context, h *Harness) error {
				alice, carol := h.Account("alice"), h.Account("carol")
				return steps(
					transact(ctx, h, "alice", "mint", alice, units(10)),
					func() error {
						return h.ExpectRejection(ctx, InsufficientBalance, "alice", "transfer", carol, units(11))
					},
					view(ctx, h, units(10), "balanceOf", alice),
				)
			},
		},
		{
			Name: "transfer gas",
			Run: func(ctx context.Context, h *Harness) error {
				alice, bob, carol := h.Account("alice"), h.Account("bob"), h.Account("carol")
				return steps(
					transact(ctx, h, "alice", "mint", alice, units(1000)),
					transact(ctx, h, "alice", "transfer", bob, units(10)),
					transact(ctx, h, "alice", "transfer", bob, units(10)),
					transact(ctx, h, "alice", "transfer", carol, units(1000-20)),
				)
			},
		},
	},
}

// ReentrancySuite compares two contracts guarded by a reentrancy lock. Both
// expose a guarded callback(), countThisRecursive(uint256) which re-enters
// through an external call, countLocalRecursive(uint256) which re-enters
// internally, and a counter() view.
var ReentrancySuite = Suite{
	Name: "reentrancy",
	Cases: []Case{
		{
			Name: "guarded call",
			Run: func(ctx context.Context, h *Harness) error {
				return steps(
					transact(ctx, h, "alice", "callback"),
					view(ctx, h, units(1), "counter"),
				)
			},
		},
		{
			Name: "external reentry",
			Run: func(ctx context.Context, h *Harness) error {
				return steps(
					func() error {
						return h.ExpectRejection(ctx, ReentrantCall, "alice", "countThisRecursive", units(10))
					},
					view(ctx, h, units(0), "counter"),
				)
			},
		},
		{
			Name: "local reentry",
			Run: func(ctx context.Context, h *Harness) error {
				return steps(
					func() error {
						return h.ExpectRejection(ctx, ReentrantCall, "alice", "countLocalRecursive", units(10))
					},
					func() error { return h.ExpectEqualView(ctx, "counter") },
				)
			},
		},
	},
}

// ContextSuite compares msg.sender and msg.data forwarding. Both contracts
// emit Sender(address sender) from callSender() and
// Data(bytes data, uint256 integerValue, string stringValue) from
// callData(uint256,string).
var ContextSuite = Suite{
	Name: "context",
	Cases: []Case{
		{
			Name: "msg.sender",
			Run: func(ctx context.Context, h *Harness) error {
				res, err := h.Transact(ctx, "alice", "callSender")
				if err != nil {
					return err
				}
				h.ExpectEvent(res, "Sender", map[string]any{"sender": h.Account("alice")})
				return nil
			},
		},
		{
			Name: "msg.data",
			Run: func(ctx context.Context, h *Harness) error {
				res, err := h.Transact(ctx, "bob", "callData", units(42), "perpwizard")
				if err != nil {
					return err
				}
				h.ExpectEvent(res, "Data", map[string]any{
					"integerValue": units(42),
					"stringValue":  "perpwizard",
				})
				return nil
			},
		},
	},
}
