package wire

import (
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"
	"gonum.org/v1/gonum/mat"

	"github.com/ggoodman/gym-tcp-go/space"
)

// StepResult is the scalar part of a step reply.
type StepResult struct {
	Reward float64
	Done   bool
	// Info holds the member names of the reply's info object, in wire order,
	// separated by single spaces.
	Info string
}

// Response is a parsed reply body. Fields are extracted lazily by the typed
// accessors; each accessor fails with a *MalformedResponseError when its
// field is absent or has the wrong type.
type Response struct {
	raw  Message
	root gjson.Result
}

// Parse validates msg as a JSON object.
func Parse(msg []byte) (*Response, error) {
	if !gjson.ValidBytes(msg) {
		return nil, malformed("", "invalid JSON")
	}
	root := gjson.ParseBytes(msg)
	if !root.IsObject() {
		return nil, malformed("", "want object, have %s", describe(root))
	}
	return &Response{raw: Message(msg), root: root}, nil
}

// Raw returns the reply body as received.
func (r *Response) Raw() Message { return r.raw }

// Has reports whether path is present in the reply.
func (r *Response) Has(path string) bool { return r.root.Get(path).Exists() }

// Space extracts the space descriptor of an actionspace / observationspace
// reply. A kind other than Discrete, MultiDiscrete or Box yields an
// unclassified space and no error.
func (r *Response) Space() (space.Space, error) {
	if _, err := r.object("info"); err != nil {
		return space.Space{}, err
	}
	name, err := r.str("info.name")
	if err != nil {
		return space.Space{}, err
	}

	var p space.Payload
	switch space.ParseKind(name) {
	case space.Discrete:
		if p.N, err = r.integer("info.n"); err != nil {
			return space.Space{}, err
		}
	case space.MultiDiscrete:
		if r.Has("info.n") {
			if p.N, err = r.integer("info.n"); err != nil {
				return space.Space{}, err
			}
		}
		if p.Low, p.High, err = r.bounds(); err != nil {
			return space.Space{}, err
		}
	case space.Box:
		if p.Shape, err = r.shape("info.shape"); err != nil {
			return space.Space{}, err
		}
		if p.Low, p.High, err = r.bounds(); err != nil {
			return space.Space{}, err
		}
	}
	return space.Classify(name, p), nil
}

// Observation reconstructs the observation field against the shape of s.
// Box observations dispatch on the rank of the shape; a Discrete observation
// is a single integer and decodes to a 1 x 1 tensor of shape [1].
func (r *Response) Observation(s space.Space) (*Tensor, error) {
	if err := s.Require(space.Discrete, space.Box); err != nil {
		return nil, err
	}
	v, err := r.field("observation")
	if err != nil {
		return nil, err
	}
	if s.Kind() == space.Discrete {
		n, err := asInt(v, "observation")
		if err != nil {
			return nil, err
		}
		return &Tensor{Dense: mat.NewDense(1, 1, []float64{float64(n)}), shape: []int{1}}, nil
	}
	shape := s.Shape()
	if len(shape) < 1 || len(shape) > 3 {
		return nil, &UnsupportedRankError{Rank: len(shape)}
	}
	return decodeTensor(v, "observation", shape)
}

// StepResult extracts reward, done and info from a step reply.
func (r *Response) StepResult() (StepResult, error) {
	reward, err := r.number("reward")
	if err != nil {
		return StepResult{}, err
	}
	done, err := r.boolean("done")
	if err != nil {
		return StepResult{}, err
	}
	info, err := r.object("info")
	if err != nil {
		return StepResult{}, err
	}
	var names []string
	info.ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})
	return StepResult{Reward: reward, Done: done, Info: strings.Join(names, " ")}, nil
}

// ActionSample extracts the sampled index from a sample reply. Only Discrete
// action spaces are sampled.
func (r *Response) ActionSample(s space.Space) (int, error) {
	if err := s.Require(space.Discrete); err != nil {
		return 0, err
	}
	return r.integer("sample")
}

// InstanceID extracts the instance identifier of an instantiation ack.
func (r *Response) InstanceID() (string, error) { return r.str("instance") }

// URL extracts the video location of a url reply.
func (r *Response) URL() (string, error) { return r.str("url") }

func (r *Response) field(path string) (gjson.Result, error) {
	v := r.root.Get(path)
	if !v.Exists() {
		return v, malformed(path, "missing")
	}
	return v, nil
}

func (r *Response) object(path string) (gjson.Result, error) {
	v, err := r.field(path)
	if err != nil {
		return v, err
	}
	if !v.IsObject() {
		return v, malformed(path, "want object, have %s", describe(v))
	}
	return v, nil
}

func (r *Response) str(path string) (string, error) {
	v, err := r.field(path)
	if err != nil {
		return "", err
	}
	if v.Type != gjson.String {
		return "", malformed(path, "want string, have %s", describe(v))
	}
	return v.Str, nil
}

func (r *Response) number(path string) (float64, error) {
	v, err := r.field(path)
	if err != nil {
		return 0, err
	}
	if v.Type != gjson.Number {
		return 0, malformed(path, "want number, have %s", describe(v))
	}
	return v.Num, nil
}

func (r *Response) integer(path string) (int, error) {
	v, err := r.field(path)
	if err != nil {
		return 0, err
	}
	return asInt(v, path)
}

func (r *Response) boolean(path string) (bool, error) {
	v, err := r.field(path)
	if err != nil {
		return false, err
	}
	if !v.IsBool() {
		return false, malformed(path, "want bool, have %s", describe(v))
	}
	return v.Bool(), nil
}

func (r *Response) shape(path string) ([]int, error) {
	v, err := r.field(path)
	if err != nil {
		return nil, err
	}
	if !v.IsArray() {
		return nil, malformed(path, "want array, have %s", describe(v))
	}
	var dims []int
	for i, d := range v.Array() {
		dimPath := fmt.Sprintf("%s[%d]", path, i)
		n, err := asInt(d, dimPath)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, malformed(dimPath, "dimension %d is not positive", n)
		}
		dims = append(dims, n)
	}
	return dims, nil
}

// bounds reads the optional flattened info.low / info.high arrays.
func (r *Response) bounds() (low, high []float64, err error) {
	if low, err = r.floats("info.low"); err != nil {
		return nil, nil, err
	}
	if high, err = r.floats("info.high"); err != nil {
		return nil, nil, err
	}
	return low, high, nil
}

func (r *Response) floats(path string) ([]float64, error) {
	v := r.root.Get(path)
	if !v.Exists() {
		return nil, nil
	}
	return leaves(v, path, 1)
}

func asInt(v gjson.Result, path string) (int, error) {
	if v.Type != gjson.Number {
		return 0, malformed(path, "want integer, have %s", describe(v))
	}
	if v.Num != math.Trunc(v.Num) || math.Abs(v.Num) > math.MaxInt32 {
		return 0, malformed(path, "want integer, have %v", v.Num)
	}
	return int(v.Num), nil
}
