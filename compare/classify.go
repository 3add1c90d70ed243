package compare

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/lmittmann/w3"
	"golang.org/x/crypto/sha3"
)

// Kind is the semantic reason a call was rejected, independent of how the
// contract encodes it.
type Kind string

const (
	Accepted              Kind = "accepted"
	InsufficientBalance   Kind = "insufficient-balance"
	InsufficientAllowance Kind = "insufficient-allowance"
	ReentrantCall         Kind = "reentrant-call"
	Panic                 Kind = "panic"
	Other                 Kind = "other"
)

// Rejection is a classified revert.
type Rejection struct {
	Kind Kind
	// Reason is the decoded revert string, panic code or custom error name.
	Reason string
}

func (r Rejection) String() string {
	if r.Reason == "" {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s (%s)", r.Kind, r.Reason)
}

var (
	funcError = w3.MustNewFunc("Error(string)", "")
	funcPanic = w3.MustNewFunc("Panic(uint256)", "")
)

// reasonPatterns map revert strings to kinds, checked in order. The
// ReentrancyMock re-enters through address(this).call and replaces the
// guard's reason with its own when the inner call fails.
var reasonPatterns = []struct {
	substr string
	kind   Kind
}{
	{"reentrant call", ReentrantCall},
	{"reentrancymock: failed call", ReentrantCall},
	{"exceeds allowance", InsufficientAllowance},
	{"insufficient allowance", InsufficientAllowance},
	{"exceeds balance", InsufficientBalance},
	{"insufficient balance", InsufficientBalance},
}

type customError struct {
	name string
	kind Kind
}

// Classifier maps revert data to rejections. It understands Error(string)
// reasons, Panic(uint256) codes and registered custom errors.
type Classifier struct {
	custom map[[4]byte]customError
}

// NewClassifier returns a classifier that knows the common token and guard
// custom errors.
func NewClassifier() *Classifier {
	c := &Classifier{custom: make(map[[4]byte]customError)}
	c.Register("ERC20InsufficientBalance(address,uint256,uint256)", InsufficientBalance)
	c.Register("ERC20InsufficientAllowance(address,uint256,uint256)", InsufficientAllowance)
	c.Register("InsufficientBalance()", InsufficientBalance)
	c.Register("InsufficientAllowance()", InsufficientAllowance)
	c.Register("ReentrancyGuardReentrantCall()", ReentrantCall)
	c.Register("Reentrancy()", ReentrantCall)
	c.Register("ReentrantCall()", ReentrantCall)
	return c
}

// Register maps the custom error with the given signature to kind.
func (c *Classifier) Register(signature string, kind Kind) {
	name := signature
	if i := strings.IndexByte(signature, '('); i >= 0 {
		name = signature[:i]
	}
	c.custom[Selector(signature)] = customError{name: name, kind: kind}
}

// Classify interprets a result. Successful results are Accepted.
func (c *Classifier) Classify(res *Result) Rejection {
	if !res.Reverted {
		return Rejection{Kind: Accepted}
	}
	data := res.RevertData
	if len(data) < 4 {
		return Rejection{Kind: Other}
	}

	switch sel := [4]byte(data[:4]); sel {
	case funcError.Selector:
		var reason string
		if err := funcError.DecodeArgs(data, &reason); err != nil {
			return Rejection{Kind: Other, Reason: "malformed Error(string)"}
		}
		return Rejection{Kind: classifyReason(reason), Reason: reason}

	case funcPanic.Selector:
		code := new(big.Int)
		if err := funcPanic.DecodeArgs(data, &code); err != nil {
			return Rejection{Kind: Panic, Reason: "malformed Panic(uint256)"}
		}
		return Rejection{Kind: Panic, Reason: fmt.Sprintf("0x%02x", code)}

	default:
		if ce, ok := c.custom[sel]; ok {
			return Rejection{Kind: ce.kind, Reason: ce.name}
		}
		return Rejection{Kind: Other, Reason: fmt.Sprintf("0x%x", sel)}
	}
}

func classifyReason(reason string) Kind {
	lower := strings.ToLower(reason)
	for _, p := range reasonPatterns {
		if strings.Contains(lower, p.substr) {
			return p.kind
		}
	}
	return Other
}

// Selector returns the 4-byte selector of a function or error signature.
func Selector(signature string) [4]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	var sel [4]byte
	copy(sel[:], h.Sum(nil))
	return sel
}
