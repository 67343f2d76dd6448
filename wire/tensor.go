package wire

import (
	"fmt"
	"slices"

	"github.com/tidwall/gjson"
	"gonum.org/v1/gonum/mat"
)

// Tensor is an observation reconstructed from its nested wire array. It is
// always held as a 2-D matrix:
//
//	rank 1 [N]       -> N x 1 column
//	rank 2 [W, H]    -> H x W (built as W x H, then transposed)
//	rank 3 [H, W, C] -> (H*W) x C, column c is the transposed H x W plane of
//	                    channel c flattened column-major
type Tensor struct {
	*mat.Dense
	shape []int
}

// Shape returns a copy of the logical shape the tensor was decoded against.
func (t *Tensor) Shape() []int { return slices.Clone(t.shape) }

// Rank returns the logical rank.
func (t *Tensor) Rank() int { return len(t.shape) }

// Len returns the element count, which always equals the product of Shape.
func (t *Tensor) Len() int {
	r, c := t.Dims()
	return r * c
}

// Vectorise returns the elements in column-major order.
func (t *Tensor) Vectorise() []float64 {
	return vectorise(t.Dense)
}

func vectorise(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out = append(out, m.At(i, j))
		}
	}
	return out
}

func decodeTensor(v gjson.Result, field string, shape []int) (*Tensor, error) {
	var (
		m   *mat.Dense
		err error
	)
	for _, d := range shape {
		if d <= 0 {
			return nil, malformed(field, "shape %v has a non-positive dimension", shape)
		}
	}
	switch len(shape) {
	case 1:
		m, err = decodeRank1(v, field, shape[0])
	case 2:
		m, err = decodeRank2(v, field, shape[0], shape[1])
	case 3:
		m, err = decodeRank3(v, field, shape[0], shape[1], shape[2])
	default:
		return nil, &UnsupportedRankError{Rank: len(shape)}
	}
	if err != nil {
		return nil, err
	}
	return &Tensor{Dense: m, shape: slices.Clone(shape)}, nil
}

func decodeRank1(v gjson.Result, field string, n int) (*mat.Dense, error) {
	vals, err := leaves(v, field, 1)
	if err != nil {
		return nil, err
	}
	if len(vals) != n {
		return nil, malformed(field, "have %d elements, want %d", len(vals), n)
	}
	return mat.NewDense(n, 1, vals), nil
}

// decodeRank2 fills a W x H matrix column-major in wire order and returns its
// H x W transpose.
func decodeRank2(v gjson.Result, field string, w, h int) (*mat.Dense, error) {
	vals, err := leaves(v, field, 2)
	if err != nil {
		return nil, err
	}
	if len(vals) != w*h {
		return nil, malformed(field, "have %d elements, want %d", len(vals), w*h)
	}
	wh := mat.NewDense(w, h, nil)
	for e, x := range vals {
		wh.Set(e%w, e/w, x)
	}
	return mat.DenseCopyOf(wh.T()), nil
}

// decodeRank3 walks array[H][W][C]. Each channel value of the elem'th pixel is
// written at column-major position elem mod H*W of that channel's W x H
// scratch plane; each plane is then transposed to H x W and flattened
// column-major into its output column.
func decodeRank3(v gjson.Result, field string, h, w, c int) (*mat.Dense, error) {
	if !v.IsArray() {
		return nil, malformed(field, "want array, have %s", describe(v))
	}
	plane := h * w
	scratch := make([]*mat.Dense, c)
	for i := range scratch {
		scratch[i] = mat.NewDense(w, h, nil)
	}

	elem := 0
	for i, row := range v.Array() {
		rowField := fmt.Sprintf("%s[%d]", field, i)
		if !row.IsArray() {
			return nil, malformed(rowField, "want array, have %s", describe(row))
		}
		for j, px := range row.Array() {
			pxField := fmt.Sprintf("%s[%d]", rowField, j)
			if !px.IsArray() {
				return nil, malformed(pxField, "want array, have %s", describe(px))
			}
			channels := px.Array()
			if len(channels) != c {
				return nil, malformed(pxField, "have %d channels, want %d", len(channels), c)
			}
			e := elem % plane
			for k, x := range channels {
				if x.Type != gjson.Number {
					return nil, malformed(fmt.Sprintf("%s[%d]", pxField, k), "want number, have %s", describe(x))
				}
				scratch[k].Set(e%w, e/w, x.Num)
			}
			elem++
		}
	}
	if elem != plane {
		return nil, malformed(field, "have %d pixels, want %d", elem, plane)
	}

	out := mat.NewDense(plane, c, nil)
	for k, s := range scratch {
		out.SetCol(k, vectorise(s.T()))
	}
	return out, nil
}

// leaves flattens a nested array of exactly depth levels into row-major
// order, requiring every leaf to be a number.
func leaves(v gjson.Result, field string, depth int) ([]float64, error) {
	var out []float64
	var walk func(v gjson.Result, field string, depth int) error
	walk = func(v gjson.Result, field string, depth int) error {
		if depth == 0 {
			if v.Type != gjson.Number {
				return malformed(field, "want number, have %s", describe(v))
			}
			out = append(out, v.Num)
			return nil
		}
		if !v.IsArray() {
			return malformed(field, "want array, have %s", describe(v))
		}
		for i, e := range v.Array() {
			if err := walk(e, fmt.Sprintf("%s[%d]", field, i), depth-1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(v, field, depth); err != nil {
		return nil, err
	}
	return out, nil
}

func describe(v gjson.Result) string {
	switch {
	case !v.Exists():
		return "nothing"
	case v.IsArray():
		return "array"
	case v.IsObject():
		return "object"
	}
	switch v.Type {
	case gjson.Null:
		return "null"
	case gjson.True, gjson.False:
		return "bool"
	case gjson.Number:
		return "number"
	case gjson.String:
		return "string"
	}
	return v.Type.String()
}
