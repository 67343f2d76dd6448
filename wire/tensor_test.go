package wire

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ggoodman/gym-tcp-go/space"
)

func box(shape ...int) space.Space {
	return space.Classify("Box", space.Payload{Shape: shape})
}

func observe(t *testing.T, msg string, s space.Space) *Tensor {
	t.Helper()
	tensor, err := mustParse(t, msg).Observation(s)
	if err != nil {
		t.Fatalf("Observation: %v", err)
	}
	return tensor
}

func TestObservationRank1(t *testing.T) {
	tensor := observe(t, `{"observation":[1,2,3,4]}`, box(4))
	if r, c := tensor.Dims(); r != 4 || c != 1 {
		t.Fatalf("dims: got %dx%d, want 4x1", r, c)
	}
	if got := tensor.Vectorise(); !reflect.DeepEqual(got, []float64{1, 2, 3, 4}) {
		t.Fatalf("got %v", got)
	}
}

func TestObservationRank2(t *testing.T) {
	// shape [W=2, H=3], three rows of two.
	tensor := observe(t, `{"observation":[[1,2],[3,4],[5,6]]}`, box(2, 3))
	if r, c := tensor.Dims(); r != 3 || c != 2 {
		t.Fatalf("dims: got %dx%d, want 3x2", r, c)
	}
	if v := tensor.At(0, 0); v != 1 {
		t.Fatalf("(0,0): got %v, want 1", v)
	}
	if v := tensor.At(2, 1); v != 6 {
		t.Fatalf("(2,1): got %v, want 6", v)
	}
	if v := tensor.At(0, 1); v != 2 {
		t.Fatalf("(0,1): got %v, want 2", v)
	}
}

func TestObservationRank3(t *testing.T) {
	tensor := observe(t, `{"observation":[[[1],[2]],[[3],[4]]]}`, box(2, 2, 1))
	if r, c := tensor.Dims(); r != 4 || c != 1 {
		t.Fatalf("dims: got %dx%d, want 4x1", r, c)
	}
	if got := tensor.Vectorise(); !reflect.DeepEqual(got, []float64{1, 3, 2, 4}) {
		t.Fatalf("got %v, want [1 3 2 4]", got)
	}
}

func TestObservationRank3Channels(t *testing.T) {
	// H=1, W=3, C=2: channels stay in input order, one column each.
	tensor := observe(t, `{"observation":[[[1,10],[2,20],[3,30]]]}`, box(1, 3, 2))
	if r, c := tensor.Dims(); r != 3 || c != 2 {
		t.Fatalf("dims: got %dx%d, want 3x2", r, c)
	}
	want := []float64{1, 2, 3, 10, 20, 30}
	if got := tensor.Vectorise(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if tensor.Len() != 6 || tensor.Rank() != 3 {
		t.Fatalf("len %d rank %d", tensor.Len(), tensor.Rank())
	}
}

func TestObservationDiscrete(t *testing.T) {
	tensor := observe(t, `{"observation":7}`, space.Classify("Discrete", space.Payload{N: 16}))
	if tensor.At(0, 0) != 7 || !reflect.DeepEqual(tensor.Shape(), []int{1}) {
		t.Fatalf("unexpected tensor %v shape %v", tensor.At(0, 0), tensor.Shape())
	}
}

func TestObservationElementCount(t *testing.T) {
	for _, tt := range []struct {
		msg   string
		shape []int
	}{
		{`{"observation":[1,2,3,4]}`, []int{4}},
		{`{"observation":[[1,2],[3,4],[5,6]]}`, []int{2, 3}},
		{`{"observation":[[[1,2],[3,4]],[[5,6],[7,8]]]}`, []int{2, 2, 2}},
	} {
		tensor := observe(t, tt.msg, box(tt.shape...))
		if tensor.Len() != box(tt.shape...).Size() {
			t.Fatalf("shape %v: len %d, want %d", tt.shape, tensor.Len(), box(tt.shape...).Size())
		}
	}
}

func TestObservationMalformed(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		shape []int
	}{
		{"missing", `{"reward":1}`, []int{2}},
		{"short rank1", `{"observation":[1,2,3]}`, []int{4}},
		{"long rank1", `{"observation":[1,2,3,4,5]}`, []int{4}},
		{"nested rank1", `{"observation":[[1],[2]]}`, []int{2}},
		{"string element", `{"observation":[1,"2"]}`, []int{2}},
		{"null element", `{"observation":[1,null]}`, []int{2}},
		{"flat rank2", `{"observation":[1,2,3,4,5,6]}`, []int{2, 3}},
		{"short rank2", `{"observation":[[1,2],[3,4]]}`, []int{2, 3}},
		{"missing pixels", `{"observation":[[[1],[2]]]}`, []int{2, 2, 1}},
		{"extra pixels", `{"observation":[[[1],[2],[3]],[[4],[5],[6]]]}`, []int{2, 2, 1}},
		{"short channel", `{"observation":[[[1,2],[3]]]}`, []int{1, 2, 2}},
		{"bool channel", `{"observation":[[[true]]]}`, []int{1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tensor, err := mustParse(t, tt.msg).Observation(box(tt.shape...))
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
			if tensor != nil {
				t.Fatalf("expected no tensor")
			}
		})
	}
}

func TestObservationUnsupportedRank(t *testing.T) {
	for _, shape := range [][]int{{1, 1, 1, 1}, {}} {
		_, err := mustParse(t, `{"observation":[]}`).Observation(box(shape...))
		var rErr *UnsupportedRankError
		if !errors.As(err, &rErr) || rErr.Rank != len(shape) {
			t.Fatalf("shape %v: expected UnsupportedRankError, got %v", shape, err)
		}
		if !errors.Is(err, ErrUnsupportedTensorRank) {
			t.Fatalf("expected errors.Is ErrUnsupportedTensorRank")
		}
	}
}

func TestObservationRequiresClassifiedSpace(t *testing.T) {
	_, err := mustParse(t, `{"observation":[1]}`).Observation(space.Classify("Tuple", space.Payload{}))
	if !errors.Is(err, space.ErrInvalidSpaceKind) {
		t.Fatalf("expected ErrInvalidSpaceKind, got %v", err)
	}
}
