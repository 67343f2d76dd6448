package wire

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ggoodman/gym-tcp-go/space"
)

func mustParse(t *testing.T, msg string) *Response {
	t.Helper()
	r, err := Parse([]byte(msg))
	if err != nil {
		t.Fatalf("Parse(%s): %v", msg, err)
	}
	return r
}

func TestParseRejects(t *testing.T) {
	for _, msg := range []string{``, `{`, `[1,2]`, `"x"`, `{"a":}`} {
		if _, err := Parse([]byte(msg)); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("Parse(%q): expected ErrMalformedResponse, got %v", msg, err)
		}
	}
}

func TestSpace(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		kind  space.Kind
		n     int
		shape []int
		low   []float64
		high  []float64
	}{
		{
			name: "discrete",
			msg:  `{"info":{"name":"Discrete","n":2}}`,
			kind: space.Discrete,
			n:    2,
		},
		{
			name: "multidiscrete",
			msg:  `{"info":{"name":"MultiDiscrete","n":2,"low":[0,0],"high":[4,1]}}`,
			kind: space.MultiDiscrete,
			n:    2,
			low:  []float64{0, 0},
			high: []float64{4, 1},
		},
		{
			name:  "box",
			msg:   `{"info":{"name":"Box","shape":[210,160,3],"low":[0],"high":[255],"extra":true}}`,
			kind:  space.Box,
			shape: []int{210, 160, 3},
			low:   []float64{0},
			high:  []float64{255},
		},
		{
			name:  "box without bounds",
			msg:   `{"info":{"name":"Box","shape":[4]}}`,
			kind:  space.Box,
			shape: []int{4},
		},
		{
			name: "unknown kind",
			msg:  `{"info":{"name":"Tuple","spaces":[]}}`,
			kind: space.Unknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := mustParse(t, tt.msg).Space()
			if err != nil {
				t.Fatalf("Space: %v", err)
			}
			if s.Kind() != tt.kind || s.N() != tt.n {
				t.Fatalf("got %s n=%d, want %s n=%d", s.Kind(), s.N(), tt.kind, tt.n)
			}
			if !reflect.DeepEqual(s.Shape(), tt.shape) {
				t.Fatalf("shape: got %v, want %v", s.Shape(), tt.shape)
			}
			if !reflect.DeepEqual(s.Low(), tt.low) || !reflect.DeepEqual(s.High(), tt.high) {
				t.Fatalf("bounds: got %v/%v, want %v/%v", s.Low(), s.High(), tt.low, tt.high)
			}
		})
	}
}

func TestSpaceMalformed(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		field string
	}{
		{"no info", `{"sample":1}`, "info"},
		{"info not object", `{"info":"Discrete"}`, "info"},
		{"no name", `{"info":{"n":2}}`, "info.name"},
		{"name not string", `{"info":{"name":3}}`, "info.name"},
		{"discrete without n", `{"info":{"name":"Discrete"}}`, "info.n"},
		{"fractional n", `{"info":{"name":"Discrete","n":2.5}}`, "info.n"},
		{"box without shape", `{"info":{"name":"Box"}}`, "info.shape"},
		{"zero dimension", `{"info":{"name":"Box","shape":[2,0]}}`, "info.shape[1]"},
		{"bad low", `{"info":{"name":"Box","shape":[1],"low":["x"]}}`, "info.low[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mustParse(t, tt.msg).Space()
			var mErr *MalformedResponseError
			if !errors.As(err, &mErr) {
				t.Fatalf("expected MalformedResponseError, got %v", err)
			}
			if mErr.Field != tt.field {
				t.Fatalf("field: got %q, want %q", mErr.Field, tt.field)
			}
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected errors.Is ErrMalformedResponse")
			}
		})
	}
}

func TestStepResult(t *testing.T) {
	r := mustParse(t, `{"observation":[0,0,0,0],"reward":1.5,"done":true,"info":{"lives":3,"ale.lives":3,"TimeLimit.truncated":false}}`)
	res, err := r.StepResult()
	if err != nil {
		t.Fatalf("StepResult: %v", err)
	}
	want := StepResult{Reward: 1.5, Done: true, Info: "lives ale.lives TimeLimit.truncated"}
	if res != want {
		t.Fatalf("got %+v, want %+v", res, want)
	}
}

func TestStepResultEmptyInfo(t *testing.T) {
	res, err := mustParse(t, `{"reward":0,"done":false,"info":{}}`).StepResult()
	if err != nil {
		t.Fatalf("StepResult: %v", err)
	}
	if res.Info != "" || res.Done || res.Reward != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestStepResultMalformed(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		field string
	}{
		{"missing reward", `{"done":false,"info":{}}`, "reward"},
		{"reward string", `{"reward":"1","done":false,"info":{}}`, "reward"},
		{"done number", `{"reward":1,"done":0,"info":{}}`, "done"},
		{"missing info", `{"reward":1,"done":false}`, "info"},
		{"info array", `{"reward":1,"done":false,"info":[]}`, "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mustParse(t, tt.msg).StepResult()
			var mErr *MalformedResponseError
			if !errors.As(err, &mErr) || mErr.Field != tt.field {
				t.Fatalf("expected malformed %q, got %v", tt.field, err)
			}
		})
	}
}

func TestActionSample(t *testing.T) {
	discrete := space.Classify("Discrete", space.Payload{N: 4})
	got, err := mustParse(t, `{"sample":3}`).ActionSample(discrete)
	if err != nil {
		t.Fatalf("ActionSample: %v", err)
	}
	if got != 3 {
		t.Fatalf("got %d, want 3", got)
	}

	box := space.Classify("Box", space.Payload{Shape: []int{1}})
	if _, err := mustParse(t, `{"sample":3}`).ActionSample(box); !errors.Is(err, space.ErrInvalidSpaceKind) {
		t.Fatalf("expected ErrInvalidSpaceKind, got %v", err)
	}
	if _, err := mustParse(t, `{"sample":[1]}`).ActionSample(discrete); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestInstanceAndURL(t *testing.T) {
	id, err := mustParse(t, `{"instance":"b2f7"}`).InstanceID()
	if err != nil || id != "b2f7" {
		t.Fatalf("InstanceID: %q, %v", id, err)
	}
	u, err := mustParse(t, `{"url":"/tmp/run/video.mp4"}`).URL()
	if err != nil || u != "/tmp/run/video.mp4" {
		t.Fatalf("URL: %q, %v", u, err)
	}
	if _, err := mustParse(t, `{}`).InstanceID(); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestSchemas(t *testing.T) {
	schemas := Schemas()
	if len(schemas) == 0 || schemas[0].Name != "request" {
		t.Fatalf("expected request schema first, got %+v", schemas)
	}
	req := schemas[0].Schema
	if req.Type != "object" {
		t.Fatalf("expected object type, got %q", req.Type)
	}
	for _, prop := range []string{"env", "server", "step", "monitor", "record_episode_stats", "url"} {
		if _, ok := req.Properties.Get(prop); !ok {
			t.Fatalf("missing request property %q", prop)
		}
	}
}
