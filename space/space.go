package space

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidSpaceKind is returned when a space of the wrong (or no) kind is
// used by a kind-specific operation.
var ErrInvalidSpaceKind = errors.New("invalid space kind")

// Kind identifies the shape family of a Space.
type Kind int

const (
	// Unknown is the kind of a Space whose descriptor named an unrecognised
	// kind, or of the zero Space.
	Unknown Kind = iota
	Discrete
	MultiDiscrete
	Box
)

// String returns the kind name as it appears on the wire.
func (k Kind) String() string {
	switch k {
	case Discrete:
		return "Discrete"
	case MultiDiscrete:
		return "MultiDiscrete"
	case Box:
		return "Box"
	default:
		return "Unknown"
	}
}

// ParseKind maps a wire kind name to a Kind. Names are case-sensitive.
func ParseKind(name string) Kind {
	switch name {
	case "Discrete":
		return Discrete
	case "MultiDiscrete":
		return MultiDiscrete
	case "Box":
		return Box
	default:
		return Unknown
	}
}

// Payload carries the numeric fields that accompany a kind name in a space
// descriptor. Fields irrelevant to the kind are ignored by Classify.
type Payload struct {
	N     int
	Shape []int
	Low   []float64
	High  []float64
}

// Space describes the set of valid actions or observations. The zero value is
// an unclassified space.
type Space struct {
	kind  Kind
	name  string
	n     int
	shape []int
	low   []float64
	high  []float64
}

// Classify builds a Space of the named kind from p. Unknown kind names yield
// an unclassified Space that remembers the reported name; no error is raised.
func Classify(kind string, p Payload) Space {
	s := Space{kind: ParseKind(kind), name: kind}
	switch s.kind {
	case Discrete:
		s.n = p.N
	case MultiDiscrete:
		s.n = p.N
		s.low = slices.Clone(p.Low)
		s.high = slices.Clone(p.High)
	case Box:
		s.shape = slices.Clone(p.Shape)
		s.low = slices.Clone(p.Low)
		s.high = slices.Clone(p.High)
	}
	return s
}

// Kind returns the classified kind.
func (s Space) Kind() Kind { return s.kind }

// Name returns the kind name exactly as reported by the server. For
// unclassified spaces this is the unrecognised name.
func (s Space) Name() string { return s.name }

// Classified reports whether the space has one of the known kinds.
func (s Space) Classified() bool { return s.kind != Unknown }

// N returns the cardinality of a Discrete space, or the number of discrete
// sub-spaces of a MultiDiscrete space. It is zero for other kinds.
func (s Space) N() int { return s.n }

// Shape returns a copy of the tensor extents of a Box space.
func (s Space) Shape() []int { return slices.Clone(s.shape) }

// Rank returns len(Shape()).
func (s Space) Rank() int { return len(s.shape) }

// Size returns the number of elements described by Shape, or zero when the
// space has no shape.
func (s Space) Size() int {
	if len(s.shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range s.shape {
		n *= d
	}
	return n
}

// Low returns a copy of the flattened lower bounds.
func (s Space) Low() []float64 { return slices.Clone(s.low) }

// High returns a copy of the flattened upper bounds.
func (s Space) High() []float64 { return slices.Clone(s.high) }

// Require returns nil when the space has one of the wanted kinds and an
// error wrapping ErrInvalidSpaceKind otherwise.
func (s Space) Require(want ...Kind) error {
	if s.kind != Unknown && slices.Contains(want, s.kind) {
		return nil
	}
	names := make([]string, len(want))
	for i, k := range want {
		names[i] = k.String()
	}
	got := s.name
	if got == "" {
		got = "unclassified"
	}
	return fmt.Errorf("%w: have %q, want %s", ErrInvalidSpaceKind, got, strings.Join(names, " or "))
}

// String renders the space roughly the way gym prints it, e.g. "Discrete(2)"
// or "Box(210,160,3)".
func (s Space) String() string {
	switch s.kind {
	case Discrete, MultiDiscrete:
		return s.kind.String() + "(" + strconv.Itoa(s.n) + ")"
	case Box:
		dims := make([]string, len(s.shape))
		for i, d := range s.shape {
			dims[i] = strconv.Itoa(d)
		}
		return "Box(" + strings.Join(dims, ",") + ")"
	default:
		if s.name == "" {
			return "Unknown"
		}
		return "Unknown(" + s.name + ")"
	}
}
