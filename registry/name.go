package registry

import (
	"fmt"
	"strings"
)

// Name identifies one logical contract instance. Artifact is the compiled
// contract type; Label distinguishes several instances of the same artifact.
type Name struct {
	Artifact string `json:"artifact"`
	Label    string `json:"label,omitempty"`
}

// N builds a Name for artifact with an optional instance label.
func N(artifact string, label ...string) Name {
	name := Name{Artifact: artifact}
	if len(label) > 0 {
		name.Label = label[0]
	}
	return name
}

// String renders "Artifact" or "Artifact[Label]".
func (n Name) String() string {
	if n.Label == "" {
		return n.Artifact
	}
	return n.Artifact + "[" + n.Label + "]"
}

// IsZero reports whether the name is unset.
func (n Name) IsZero() bool {
	return n.Artifact == "" && n.Label == ""
}

// Validate rejects names that cannot round-trip through String.
func (n Name) Validate() error {
	if n.Artifact == "" {
		return fmt.Errorf("empty artifact in name %q", n.String())
	}
	if strings.ContainsAny(n.Artifact, "[]") || strings.ContainsAny(n.Label, "[]") {
		return fmt.Errorf("brackets are not allowed in name parts: %q", n.String())
	}
	return nil
}

// ParseName parses the "Artifact[Label]" form used on the command line and in
// step dependency lists. Exactly one trailing bracket pair is accepted.
func ParseName(s string) (Name, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '[')
	if open < 0 {
		name := Name{Artifact: s}
		return name, name.Validate()
	}
	if !strings.HasSuffix(s, "]") {
		return Name{}, fmt.Errorf("unterminated label in %q", s)
	}
	name := Name{Artifact: s[:open], Label: s[open+1 : len(s)-1]}
	if name.Label == "" {
		return Name{}, fmt.Errorf("empty label in %q", s)
	}
	return name, name.Validate()
}

// MustParseName is ParseName for static names.
func MustParseName(s string) Name {
	name, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return name
}
