package compare

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/log"
	"github.com/lmittmann/w3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errInsufficientBalance   = w3.MustNewFunc("ERC20InsufficientBalance(address,uint256,uint256)", "")
	errInsufficientAllowance = w3.MustNewFunc("ERC20InsufficientAllowance(address,uint256,uint256)", "")
	errReentrantCall         = w3.MustNewFunc("ReentrancyGuardReentrantCall()", "")
)

var baseGas = map[string]uint64{
	"mint":                50_000,
	"transfer":            34_000,
	"approve":             46_000,
	"transferFrom":        40_000,
	"callback":            27_000,
	"countThisRecursive":  30_000,
	"countLocalRecursive": 30_000,
	"callSender":          23_000,
	"callData":            24_000,
}

// flavor describes how a fake implementation differs from the reference.
type flavor struct {
	customErrors     bool
	skipMaxAllowance bool
	gasFactor        float64
	deployFactor     float64
	// allowOverdraft makes transfers beyond the balance succeed
	allowOverdraft bool
	// selfCallReentry reports external reentry the way a mock re-entering
	// through address(this).call does
	selfCallReentry bool
	// rejectMaxAllowance makes transferFrom revert for an unlimited allowance
	rejectMaxAllowance bool
}

type fakeBase struct {
	addr      common.Address
	accounts  Deployer
	flavor    flavor
	deployGas uint64
}

func (b *fakeBase) Address() common.Address { return b.addr }
func (b *fakeBase) DeployGas() uint64 { return b.deployGas }

func (b *fakeBase) ok(method string, events ...Event) *Result {
	factor := b.flavor.gasFactor
	if factor == 0 {
		factor = 1
	}
	return &Result{GasUsed: uint64(float64(baseGas[method]) * factor), Events: events}
}

func (b *fakeBase) revert(custom *w3.Func, reason string, args ...any) *Result {
	var data []byte
	var err error
	if b.flavor.customErrors {
		data, err = custom.EncodeArgs(args...)
	} else {
		data, err = funcError.EncodeArgs(reason)
	}
	if err != nil {
		panic(err)
	}
	return &Result{Reverted: true, RevertData: data}
}

func revertReason(reason string) *Result {
	data, err := funcError.EncodeArgs(reason)
	if err != nil {
		panic(err)
	}
	return &Result{Reverted: true, RevertData: data}
}

type fakeToken struct {
	fakeBase
	balances   map[common.Address]*big.Int
	allowances map[[2]common.Address]*big.Int
	supply     *big.Int
}

func (t *fakeToken) balance(a common.Address) *big.Int {
	if b, ok := t.balances[a]; ok {
		return b
	}
	return new(big.Int)
}

func (t *fakeToken) allowance(owner, spender common.Address) *big.Int {
	if v, ok := t.allowances[[2]common.Address{owner, spender}]; ok {
		return v
	}
	return new(big.Int)
}

func (t *fakeToken) move(from, to common.Address, amount *big.Int) *Result {
	bal := t.balance(from)
	if bal.Cmp(amount) < 0 && !t.flavor.allowOverdraft {
		return t.revert(errInsufficientBalance, "ERC20: transfer amount exceeds balance", from, bal, amount)
	}
	t.balances[from] = new(big.Int).Sub(bal, amount)
	t.balances[to] = new(big.Int).Add(t.balance(to), amount)
	return nil
}

func transferEvent(from, to common.Address, value *big.Int) Event {
	return Event{Name: "Transfer", Args: map[string]any{"from": from, "to": to, "value": new(big.Int).Set(value)}}
}

func (t *fakeToken) Transact(_ context.Context, from, method string, args ...any) (*Result, error) {
	sender := t.accounts.Account(from)
	switch method {
	case "mint":
		to, amount := args[0].(common.Address), args[1].(*big.Int)
		t.balances[to] = new(big.Int).Add(t.balance(to), amount)
		t.supply = new(big.Int).Add(t.supply, amount)
		return t.ok(method, transferEvent(common.Address{}, to, amount)), nil

	case "transfer":
		to, amount := args[0].(common.Address), args[1].(*big.Int)
		if res := t.move(sender, to, amount); res != nil {
			return res, nil
		}
		return t.ok(method, transferEvent(sender, to, amount)), nil

	case "approve":
		spender, amount := args[0].(common.Address), args[1].(*big.Int)
		t.allowances[[2]common.Address{sender, spender}] = amount
		return t.ok(method, Event{Name: "Approval", Args: map[string]any{"owner": sender, "spender": spender, "value": amount}}), nil

	case "transferFrom":
		owner, to, amount := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
		allowed := t.allowance(owner, sender)
		if allowed.Cmp(amount) < 0 {
			return t.revert(errInsufficientAllowance, "ERC20: insufficient allowance", sender, allowed, amount), nil
		}
		if t.flavor.rejectMaxAllowance && allowed.Cmp(math.MaxBig256) == 0 {
			return revertReason("Token: unlimited allowance not supported"), nil
		}
		if !(t.flavor.skipMaxAllowance && allowed.Cmp(math.MaxBig256) == 0) {
			t.allowances[[2]common.Address{owner, sender}] = new(big.Int).Sub(allowed, amount)
		}
		if res := t.move(owner, to, amount); res != nil {
			return res, nil
		}
		return t.ok(method, transferEvent(owner, to, amount)), nil
	}
	return nil, fmt.Errorf("no method %s", method)
}

func (t *fakeToken) View(_ context.Context, method string, args ...any) ([]any, error) {
	switch method {
	case "balanceOf":
		return []any{new(big.Int).Set(t.balance(args[0].(common.Address)))}, nil
	case "allowance":
		return []any{new(big.Int).Set(t.allowance(args[0].(common.Address), args[1].(common.Address)))}, nil
	case "totalSupply":
		return []any{new(big.Int).Set(t.supply)}, nil
	}
	return nil, fmt.Errorf("no view %s", method)
}

type fakeGuard struct {
	fakeBase
	counter int64
}

func (g *fakeGuard) Transact(_ context.Context, from, method string, args ...any) (*Result, error) {
	switch method {
	case "callback":
		g.counter++
		return g.ok(method), nil
	case "countThisRecursive":
		if g.flavor.selfCallReentry {
			return revertReason("ReentrancyMock: failed call"), nil
		}
		return g.revert(errReentrantCall, "ReentrancyGuard: reentrant call"), nil
	case "countLocalRecursive":
		return g.revert(errReentrantCall, "ReentrancyGuard: reentrant call"), nil
	case "callSender":
		return g.ok(method, Event{Name: "Sender", Args: map[string]any{"sender": g.accounts.Account(from)}}), nil
	case "callData":
		return g.ok(method, Event{Name: "Data", Args: map[string]any{
			"data":         []byte{0x01},
			"integerValue": args[0],
			"stringValue":  args[1],
		}}), nil
	}
	return nil, fmt.Errorf("no method %s", method)
}

func (g *fakeGuard) View(_ context.Context, method string, _ ...any) ([]any, error) {
	if method == "counter" {
		return []any{big.NewInt(g.counter)}, nil
	}
	return nil, fmt.Errorf("no view %s", method)
}

// fakeDeployer creates fake instances by artifact name.
type fakeDeployer struct {
	flavors map[string]flavor
	guard   map[string]bool
	created int
}

func (d *fakeDeployer) Account(name string) common.Address {
	return common.BytesToAddress([]byte(name))
}

func (d *fakeDeployer) Deploy(_ context.Context, artifact string, _ ...any) (Instance, error) {
	fl, ok := d.flavors[artifact]
	if !ok {
		return nil, fmt.Errorf("no artifact %s", artifact)
	}
	d.created++
	factor := fl.deployFactor
	if factor == 0 {
		factor = 1
	}
	base := fakeBase{
		addr:      common.BigToAddress(big.NewInt(int64(0x1000 + d.created))),
		accounts:  d,
		flavor:    fl,
		deployGas: uint64(1_000_000 * factor),
	}
	if d.guard[artifact] {
		return &fakeGuard{fakeBase: base}, nil
	}
	return &fakeToken{
		fakeBase:   base,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[[2]common.Address]*big.Int),
		supply:     new(big.Int),
	}, nil
}

func testOptions() Options {
	return Options{Logger: log.NewLogger(log.DiscardHandler())}
}

func tokenDeployer(newFlavor flavor) *fakeDeployer {
	return &fakeDeployer{flavors: map[string]flavor{
		"New":      newFlavor,
		"Original": {},
	}}
}

var tokenPair = Pair{New: "New", Original: "Original", Args: []any{"Token", "TKN"}}

func mismatchChecks(r *Report) []string {
	var checks []string
	for _, m := range r.Mismatches {
		checks = append(checks, m.Case+"/"+m.Check)
	}
	return checks
}

func TestERC20SuiteEquivalent(t *testing.T) {
	d := tokenDeployer(flavor{customErrors: true, skipMaxAllowance: true, gasFactor: 0.9, deployFactor: 1.1})

	report, err := Run(context.Background(), d, tokenPair, ERC20Suite, testOptions())
	require.NoError(t, err)
	require.True(t, report.OK(), "mismatches: %v", mismatchChecks(report))
	require.NoError(t, report.Err())

	require.Equal(t, len(ERC20Suite.Cases), report.Cases)
	require.Equal(t, 2*len(ERC20Suite.Cases), d.created, "fresh pair per case")
	require.Len(t, report.Divergences, 1)
	require.Equal(t, "infinite allowance", report.Divergences[0].Case)
	require.NotZero(t, report.Checks)
}

func TestERC20SuiteDetectsDifferences(t *testing.T) {
	tests := []struct {
		name   string
		flavor flavor
		want   []string
	}{
		{
			name:   "missing infinite allowance optimization",
			flavor: flavor{},
			want: []string{
				"infinite allowance/divergence allowance new",
			},
		},
		{
			name:   "unlimited allowance rejected",
			flavor: flavor{rejectMaxAllowance: true},
			want: []string{
				"infinite allowance/transferFrom outcome",
				"infinite allowance/view balanceOf new",
			},
		},
		{
			name:   "call gas over tolerance",
			flavor: flavor{skipMaxAllowance: true, gasFactor: 1.02},
			want: []string{
				"transfer gas/gas transfer",
				"mint and transfer/gas mint",
			},
		},
		{
			name:   "creation gas over tolerance",
			flavor: flavor{skipMaxAllowance: true, deployFactor: 1.2},
			want: []string{
				"mint and transfer/gas deploy",
				"transfer gas/gas deploy",
			},
		},
		{
			name:   "overdraft accepted",
			flavor: flavor{skipMaxAllowance: true, allowOverdraft: true},
			want: []string{
				"transfer exceeding balance/transfer rejection new",
				"transfer exceeding balance/view balanceOf new",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Run(context.Background(), tokenDeployer(tt.flavor), tokenPair, ERC20Suite, testOptions())
			require.NoError(t, err)
			require.False(t, report.OK())
			require.Error(t, report.Err())

			checks := mismatchChecks(report)
			for _, want := range tt.want {
				assert.Contains(t, checks, want)
			}
		})
	}
}

func TestReentrancyAndContextSuites(t *testing.T) {
	tests := []struct {
		name     string
		new      flavor
		original flavor
	}{
		{"guard reasons", flavor{customErrors: true}, flavor{}},
		{"self-call reentry on both", flavor{selfCallReentry: true}, flavor{selfCallReentry: true}},
		{"self-call reentry against custom error", flavor{customErrors: true}, flavor{selfCallReentry: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDeployer{
				flavors: map[string]flavor{"New": tt.new, "Original": tt.original},
				guard:   map[string]bool{"New": true, "Original": true},
			}
			for _, suite := range []Suite{ReentrancySuite, ContextSuite} {
				report, err := Run(context.Background(), d, Pair{New: "New", Original: "Original"}, suite, testOptions())
				require.NoError(t, err)
				require.True(t, report.OK(), "%s mismatches: %v", suite.Name, mismatchChecks(report))
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	d := tokenDeployer(flavor{})

	_, err := Run(context.Background(), d, Pair{New: "Missing", Original: "Original"}, ERC20Suite, testOptions())
	require.ErrorContains(t, err, "failed to deploy Missing")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, d, tokenPair, ERC20Suite, testOptions())
	require.ErrorIs(t, err, context.Canceled)

	failing := Suite{Name: "failing", Cases: []Case{{
		Name: "unknown method",
		Run: func(ctx context.Context, h *Harness) error {
			_, err := h.Transact(ctx, "alice", "burn")
			return err
		},
	}}}
	_, err = Run(context.Background(), d, tokenPair, failing, testOptions())
	require.ErrorContains(t, err, "case unknown method: new burn")
}

func TestClassify(t *testing.T) {
	c := NewClassifier()
	mustEncode := func(fn *w3.Func, args ...any) []byte {
		data, err := fn.EncodeArgs(args...)
		require.NoError(t, err)
		return data
	}
	addr := common.HexToAddress("0x01")

	tests := []struct {
		name   string
		result *Result
		want   Rejection
	}{
		{"accepted", &Result{}, Rejection{Kind: Accepted}},
		{"empty revert", &Result{Reverted: true}, Rejection{Kind: Other}},
		{
			"balance reason",
			&Result{Reverted: true, RevertData: mustEncode(funcError, "ERC20: transfer amount exceeds balance")},
			Rejection{Kind: InsufficientBalance, Reason: "ERC20: transfer amount exceeds balance"},
		},
		{
			"allowance reason",
			&Result{Reverted: true, RevertData: mustEncode(funcError, "ERC20: insufficient allowance")},
			Rejection{Kind: InsufficientAllowance, Reason: "ERC20: insufficient allowance"},
		},
		{
			"reentrancy reason",
			&Result{Reverted: true, RevertData: mustEncode(funcError, "ReentrancyGuard: reentrant call")},
			Rejection{Kind: ReentrantCall, Reason: "ReentrancyGuard: reentrant call"},
		},
		{
			"reentrancy mock failed self-call",
			&Result{Reverted: true, RevertData: mustEncode(funcError, "ReentrancyMock: failed call")},
			Rejection{Kind: ReentrantCall, Reason: "ReentrancyMock: failed call"},
		},
		{
			"unrelated reason",
			&Result{Reverted: true, RevertData: mustEncode(funcError, "Ownable: caller is not the owner")},
			Rejection{Kind: Other, Reason: "Ownable: caller is not the owner"},
		},
		{
			"custom balance error",
			&Result{Reverted: true, RevertData: mustEncode(errInsufficientBalance, addr, big.NewInt(1), big.NewInt(2))},
			Rejection{Kind: InsufficientBalance, Reason: "ERC20InsufficientBalance"},
		},
		{
			"custom reentrancy error",
			&Result{Reverted: true, RevertData: mustEncode(errReentrantCall)},
			Rejection{Kind: ReentrantCall, Reason: "ReentrancyGuardReentrantCall"},
		},
		{
			"panic",
			&Result{Reverted: true, RevertData: mustEncode(funcPanic, big.NewInt(0x11))},
			Rejection{Kind: Panic, Reason: "0x11"},
		},
		{
			"unknown selector",
			&Result{Reverted: true, RevertData: []byte{0xde, 0xad, 0xbe, 0xef}},
			Rejection{Kind: Other, Reason: "0xdeadbeef"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, c.Classify(tt.result))
		})
	}

	c.Register("Unauthorized(address)", Other)
	sel := Selector("Unauthorized(address)")
	data := append(sel[:], common.LeftPadBytes(addr.Bytes(), 32)...)
	require.Equal(t, Rejection{Kind: Other, Reason: "Unauthorized"}, c.Classify(&Result{Reverted: true, RevertData: data}))
}

func TestSelector(t *testing.T) {
	require.Equal(t, [4]byte{0xa9, 0x05, 0x9c, 0xbb}, Selector("transfer(address,uint256)"))
	require.Equal(t, funcError.Selector, Selector("Error(string)"))
}

func TestWithinTolerance(t *testing.T) {
	require.True(t, withinTolerance(100, 100, 0.01))
	require.True(t, withinTolerance(90, 100, 0))
	require.True(t, withinTolerance(101, 100, 0.01))
	require.False(t, withinTolerance(102, 100, 0.01))
	require.True(t, withinTolerance(115, 100, 0.15))
	require.False(t, withinTolerance(116, 100, 0.15))
	require.False(t, withinTolerance(1, 0, 0.15))
}

func TestEqualValue(t *testing.T) {
	require.True(t, equalValue(big.NewInt(5), new(big.Int).SetUint64(5)))
	require.False(t, equalValue(big.NewInt(5), big.NewInt(6)))
	require.False(t, equalValue(big.NewInt(5), int64(5)))
	require.True(t, equalValue([]byte{1, 2}, []byte{1, 2}))
	require.True(t, equalValue(common.HexToAddress("0x01"), common.HexToAddress("0x01")))
	require.True(t, equalArgs(
		map[string]any{"value": big.NewInt(1), "to": common.HexToAddress("0x02")},
		map[string]any{"value": big.NewInt(1), "to": common.HexToAddress("0x02")},
	))
	require.False(t, equalArgs(map[string]any{"value": big.NewInt(1)}, map[string]any{"amount": big.NewInt(1)}))
	require.Equal(t, "{a: 1, b: x}", formatArgs(map[string]any{"b": "x", "a": 1}))
}

func TestExplicitTolerance(t *testing.T) {
	require.Equal(t, DefaultTolerance, *testOptions().withDefaults().Tolerance)

	zero := Tolerance{}
	opts := testOptions()
	opts.Tolerance = &zero
	require.Equal(t, zero, *opts.withDefaults().Tolerance)

	// 0.5% more gas passes the defaults but not a zero tolerance.
	d := tokenDeployer(flavor{skipMaxAllowance: true, gasFactor: 1.005, deployFactor: 1.005})
	report, err := Run(context.Background(), d, tokenPair, ERC20Suite, testOptions())
	require.NoError(t, err)
	require.True(t, report.OK(), "mismatches: %v", mismatchChecks(report))

	report, err = Run(context.Background(), d, tokenPair, ERC20Suite, opts)
	require.NoError(t, err)
	require.False(t, report.OK())
	checks := mismatchChecks(report)
	assert.Contains(t, checks, "mint and transfer/gas deploy")
	assert.Contains(t, checks, "transfer gas/gas transfer")
}

func TestReportSaveToFile(t *testing.T) {
	report, err := Run(context.Background(), tokenDeployer(flavor{skipMaxAllowance: true}), tokenPair, ERC20Suite, testOptions())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, report.SaveToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved struct {
		Suite       string       `json:"suite"`
		Cases       int          `json:"cases"`
		Checks      int          `json:"checks"`
		Divergences []Divergence `json:"divergences"`
		Gas         []GasSample  `json:"gas"`
	}
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Equal(t, "erc20", saved.Suite)
	require.Equal(t, report.Cases, saved.Cases)
	require.Equal(t, report.Checks, saved.Checks)
	require.Len(t, saved.Divergences, 1)
	require.NotEmpty(t, saved.Gas)

	summary := report.Summary()
	require.Equal(t, 0, summary["mismatches"])
	require.Equal(t, 1, summary["divergences"])
}

func TestLookupSuite(t *testing.T) {
	s, err := LookupSuite("ERC20")
	require.NoError(t, err)
	require.Equal(t, "erc20", s.Name)

	_, err = LookupSuite("erc721")
	require.ErrorContains(t, err, "unknown suite")
}
