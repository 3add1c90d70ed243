package deploy

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
)

// Reader runs a read-only call against the contract being configured.
type Reader func(ctx context.Context, input []byte) ([]byte, error)

// Fact is one desired piece of on-chain state. Ensure queries it and sends
// the mutation only when it does not hold yet.
type Fact interface {
	// Action describes the mutation, e.g. "setHandler(0x…,true)".
	Action() string
	// Holds reports whether the contract already satisfies the fact.
	Holds(ctx context.Context, call Reader) (bool, error)
	// Calldata encodes the mutation that makes the fact hold.
	Calldata() ([]byte, error)
}

// query calls fn with args and decodes its single return value into a new
// value of want's type.
func query(ctx context.Context, call Reader, fn *w3.Func, want any, args ...any) (any, error) {
	input, err := fn.EncodeArgs(args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", fn.Signature, err)
	}
	output, err := call(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", fn.Signature, err)
	}

	ptr := reflect.New(reflect.TypeOf(want))
	if err := fn.DecodeReturns(output, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("decode %s: %w", fn.Signature, err)
	}
	return ptr.Elem().Interface(), nil
}

func equalValues(got, want any) bool {
	if g, ok := got.(*big.Int); ok {
		w, ok := want.(*big.Int)
		return ok && g != nil && w != nil && g.Cmp(w) == 0
	}
	return reflect.DeepEqual(got, want)
}

func formatValue(v any) string {
	switch v := v.(type) {
	case common.Address:
		return v.Hex()
	case []common.Address:
		parts := make([]string, len(v))
		for i, addr := range v {
			parts[i] = addr.Hex()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case *big.Int:
		if v == nil {
			return "0"
		}
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func describe(method string, args ...any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = formatValue(arg)
	}
	return method + "(" + strings.Join(parts, ",") + ")"
}

// stateFact compares one getter result with a desired value and sends one
// setter call on mismatch. It covers boolean flags keyed by address, address
// pointers, toggles and plain or keyed quantities.
type stateFact struct {
	get     *w3.Func
	getArgs []any
	want    any
	set     *w3.Func
	setArgs []any
}

func (f *stateFact) Action() string {
	return describe(methodName(f.set), f.setArgs...)
}

func (f *stateFact) Holds(ctx context.Context, call Reader) (bool, error) {
	got, err := query(ctx, call, f.get, f.want, f.getArgs...)
	if err != nil {
		return false, err
	}
	return equalValues(got, f.want), nil
}

func (f *stateFact) Calldata() ([]byte, error) {
	return f.set.EncodeArgs(f.setArgs...)
}

// Check is one getter comparison inside a composite fact.
type Check struct {
	Get  *w3.Func
	Args []any
	Want any
}

// compositeFact holds when every check matches; a single multi-argument
// setter restores all of them at once.
type compositeFact struct {
	checks  []Check
	set     *w3.Func
	setArgs []any
}

func (f *compositeFact) Action() string {
	return describe(methodName(f.set), f.setArgs...)
}

func (f *compositeFact) Holds(ctx context.Context, call Reader) (bool, error) {
	for _, check := range f.checks {
		got, err := query(ctx, call, check.Get, check.Want, check.Args...)
		if err != nil {
			return false, err
		}
		if !equalValues(got, check.Want) {
			return false, nil
		}
	}
	return true, nil
}

func (f *compositeFact) Calldata() ([]byte, error) {
	return f.set.EncodeArgs(f.setArgs...)
}

// seededFact holds once a uint256 getter is non-zero; otherwise a no-argument
// seeding method is called.
type seededFact struct {
	get  *w3.Func
	seed *w3.Func
}

func (f *seededFact) Action() string {
	return describe(methodName(f.seed))
}

func (f *seededFact) Holds(ctx context.Context, call Reader) (bool, error) {
	got, err := query(ctx, call, f.get, (*big.Int)(nil))
	if err != nil {
		return false, err
	}
	value, _ := got.(*big.Int)
	return value != nil && value.Sign() != 0, nil
}

func (f *seededFact) Calldata() ([]byte, error) {
	return f.seed.EncodeArgs()
}

// Composite builds a fact from several getter checks and one setter.
func Composite(set *w3.Func, setArgs []any, checks ...Check) Fact {
	return &compositeFact{checks: checks, set: set, setArgs: setArgs}
}

// State builds a single-getter fact.
func State(get *w3.Func, getArgs []any, want any, set *w3.Func, setArgs ...any) Fact {
	return &stateFact{get: get, getArgs: getArgs, want: want, set: set, setArgs: setArgs}
}

// Seeded builds a fact that holds once get returns non-zero.
func Seeded(get, seed *w3.Func) Fact {
	return &seededFact{get: get, seed: seed}
}

func methodName(fn *w3.Func) string {
	if i := strings.IndexByte(fn.Signature, '('); i >= 0 {
		return fn.Signature[:i]
	}
	return fn.Signature
}
