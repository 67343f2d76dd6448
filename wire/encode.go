package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/ggoodman/gym-tcp-go/space"
)

func encode(req Request) (Message, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return b, nil
}

// mustEncode is used for requests built only from constant strings.
func mustEncode(req Request) Message {
	b, err := encode(req)
	if err != nil {
		panic(err)
	}
	return b
}

// EnvironmentName instantiates the named environment on the server.
func EnvironmentName(name string) (Message, error) {
	if name == "" {
		return nil, ErrEmptyEnvironmentName
	}
	return encode(Request{Env: &EnvRequest{Name: name}})
}

// EnvironmentReset starts a new episode.
func EnvironmentReset() Message {
	return mustEncode(Request{Env: &EnvRequest{Action: ActionReset}})
}

// EnvironmentSeed seeds the environment RNG. The server expects the seed as a
// decimal string.
func EnvironmentSeed(seed int64) Message {
	return mustEncode(Request{Env: &EnvRequest{Seed: strconv.FormatInt(seed, 10)}})
}

// EnvironmentClose terminates the environment instance.
func EnvironmentClose() Message {
	return mustEncode(Request{Env: &EnvRequest{Action: ActionClose}})
}

// EnvironmentActionSpace queries the action space descriptor.
func EnvironmentActionSpace() Message {
	return mustEncode(Request{Env: &EnvRequest{Action: ActionActionSpace}})
}

// EnvironmentObservationSpace queries the observation space descriptor.
func EnvironmentObservationSpace() Message {
	return mustEncode(Request{Env: &EnvRequest{Action: ActionObservationSpace}})
}

// EnvironmentActionSpaceSample requests a random action drawn by the server.
func EnvironmentActionSpaceSample() Message {
	return mustEncode(Request{Env: &EnvRequest{ActionSpace: ActionSample}})
}

// ServerCompression sets the zlib level the server applies to its replies.
func ServerCompression(level int) (Message, error) {
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCompression, level)
	}
	return encode(Request{Server: &ServerRequest{Compression: strconv.Itoa(level)}})
}

// RecordEpisodeStatisticsStart enables server-side episode statistics.
func RecordEpisodeStatisticsStart() Message {
	return mustEncode(Request{RecordEpisodeStats: &ControlRequest{Action: ActionStart}})
}

// MonitorStart wraps the environment in a recording monitor writing to
// directory.
func MonitorStart(directory string, force, resume bool) Message {
	return mustEncode(Request{Monitor: &MonitorRequest{
		Action:    ActionStart,
		Directory: directory,
		Force:     ptr(flag(force)),
		Resume:    ptr(flag(resume)),
	}})
}

// MonitorClose flushes and closes the recording monitor.
func MonitorClose() Message {
	return mustEncode(Request{Monitor: &MonitorRequest{Action: ActionClose}})
}

// URL asks for the location of the recorded episode video.
func URL() Message {
	return mustEncode(Request{URL: &ControlRequest{Action: ActionURL}})
}

// Step encodes action for the action space s.
//
// For Discrete spaces a single-element action is used as the index directly;
// a longer vector is treated as per-action scores and the index of the first
// maximum is sent. MultiDiscrete actions are truncated to integers and Box
// actions are sent as floats, both preserving element order. Unclassified
// spaces fail with space.ErrInvalidSpaceKind.
func Step(action []float64, s space.Space, render bool) (Message, error) {
	if err := s.Require(space.Discrete, space.MultiDiscrete, space.Box); err != nil {
		return nil, err
	}
	if len(action) == 0 {
		return nil, fmt.Errorf("%w: empty action for %s", ErrInvalidAction, s)
	}
	for i, v := range action {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: element %d is %v", ErrInvalidAction, i, v)
		}
	}

	var payload any
	switch s.Kind() {
	case space.Discrete:
		payload = Argmax(action)
		if len(action) == 1 {
			payload = int(action[0])
		}
	case space.MultiDiscrete:
		ints := make([]int, len(action))
		for i, v := range action {
			ints[i] = int(v)
		}
		payload = ints
	case space.Box:
		payload = append([]float64(nil), action...)
	}
	return encode(Request{Step: &StepRequest{Action: payload, Render: flag(render)}})
}

// StepDiscrete encodes an already reduced Discrete action index.
func StepDiscrete(index int, render bool) (Message, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: negative discrete index %d", ErrInvalidAction, index)
	}
	return encode(Request{Step: &StepRequest{Action: index, Render: flag(render)}})
}

// Argmax returns the lowest index attaining the maximum of v, or -1 when v is
// empty.
func Argmax(v []float64) int {
	if len(v) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

func ptr[T any](v T) *T { return &v }
