package wire

// Message is the raw JSON body of a single request or reply, without framing.
type Message []byte

// Env actions understood by the server.
const (
	ActionReset            = "reset"
	ActionClose            = "close"
	ActionActionSpace      = "actionspace"
	ActionObservationSpace = "observationspace"
	ActionSample           = "sample"
	ActionStart            = "start"
	ActionURL              = "url"
)

// Request is the envelope of every client message. Exactly one member is set.
type Request struct {
	Env                *EnvRequest     `json:"env,omitempty"`
	Server             *ServerRequest  `json:"server,omitempty"`
	Step               *StepRequest    `json:"step,omitempty"`
	Monitor            *MonitorRequest `json:"monitor,omitempty"`
	RecordEpisodeStats *ControlRequest `json:"record_episode_stats,omitempty"`
	URL                *ControlRequest `json:"url,omitempty"`
}

// EnvRequest addresses the environment instance bound to the connection.
// Exactly one field is set.
type EnvRequest struct {
	Name        string `json:"name,omitempty" jsonschema:"description=Environment id to instantiate"`
	Action      string `json:"action,omitempty" jsonschema:"enum=reset,enum=close,enum=actionspace,enum=observationspace"`
	Seed        string `json:"seed,omitempty" jsonschema:"description=Decimal RNG seed"`
	ActionSpace string `json:"actionspace,omitempty" jsonschema:"enum=sample"`
}

// ServerRequest tunes the server side of the connection.
type ServerRequest struct {
	Compression string `json:"compression" jsonschema:"description=Decimal zlib level 0-9"`
}

// StepRequest advances the simulation by one action.
type StepRequest struct {
	// Action is an int for Discrete spaces, []int for MultiDiscrete and
	// []float64 for Box.
	Action any `json:"action"`
	Render int `json:"render" jsonschema:"enum=0,enum=1"`
}

// MonitorRequest starts or stops the server-side recording monitor.
type MonitorRequest struct {
	Action    string `json:"action" jsonschema:"enum=start,enum=close"`
	Directory string `json:"directory,omitempty"`
	Force     *int   `json:"force,omitempty" jsonschema:"enum=0,enum=1"`
	Resume    *int   `json:"resume,omitempty" jsonschema:"enum=0,enum=1"`
}

// ControlRequest carries a bare action marker.
type ControlRequest struct {
	Action string `json:"action"`
}

// SpaceReply is the reply to an actionspace / observationspace query.
type SpaceReply struct {
	Info SpaceDescriptor `json:"info"`
}

// SpaceDescriptor describes one space. Only the fields relevant to Name are
// present.
type SpaceDescriptor struct {
	Name  string    `json:"name" jsonschema:"enum=Discrete,enum=MultiDiscrete,enum=Box"`
	N     int       `json:"n,omitempty"`
	Shape []int     `json:"shape,omitempty"`
	Low   []float64 `json:"low,omitempty"`
	High  []float64 `json:"high,omitempty"`
}

// StepReply is the reply to a step (and, with only Observation set, to a
// reset).
type StepReply struct {
	Observation any            `json:"observation" jsonschema:"description=Nested row-major array matching the observation shape"`
	Reward      float64        `json:"reward"`
	Done        bool           `json:"done"`
	Info        map[string]any `json:"info"`
}

// SampleReply is the reply to an action space sample request.
type SampleReply struct {
	Sample int `json:"sample"`
}

// InstanceReply acknowledges environment instantiation.
type InstanceReply struct {
	Instance string `json:"instance"`
}

// URLReply carries the location of the recorded episode video.
type URLReply struct {
	URL string `json:"url"`
}
