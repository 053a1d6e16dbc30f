package eruntime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gosuda/qbc/internal/types"
)

// ArrayVar is a runtime array's storage: its declared elementary type and
// an explicit (lower, upper) inclusive bound pair per dimension, exactly
// as written in a DIM a(lo TO hi) clause -- unlike erago's arrays, which
// always started at an implicit 0.
type ArrayVar struct {
	Elem types.Kind
	Dims []types.Dim
	Data map[string]Value
}

func newArrayVar(elem types.Kind, dims []types.Dim) *ArrayVar {
	cp := make([]types.Dim, len(dims))
	copy(cp, dims)
	return &ArrayVar{Elem: elem, Dims: cp, Data: map[string]Value{}}
}

func (a *ArrayVar) defaultValue() Value {
	switch a.Elem {
	case types.String:
		return Str("")
	case types.Long:
		return Long(0)
	case types.Single:
		return Single(0)
	case types.Double:
		return Double(0)
	default:
		return Integer(0)
	}
}

func (a *ArrayVar) key(index []int64) (string, error) {
	if len(index) != len(a.Dims) {
		return "", fmt.Errorf("array: expected %d index(es), got %d", len(a.Dims), len(index))
	}
	parts := make([]string, len(index))
	for i, v := range index {
		d := a.Dims[i]
		if v < d.Lower || v > d.Upper {
			return "", fmt.Errorf("array: index %d out of range %d TO %d", v, d.Lower, d.Upper)
		}
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ":"), nil
}

func (a *ArrayVar) Get(index []int64) (Value, error) {
	k, err := a.key(index)
	if err != nil {
		return Value{}, err
	}
	if v, ok := a.Data[k]; ok {
		return v, nil
	}
	return a.defaultValue(), nil
}

func (a *ArrayVar) Set(index []int64, v Value) error {
	k, err := a.key(index)
	if err != nil {
		return err
	}
	a.Data[k] = coerceToElem(a.Elem, v)
	return nil
}

func coerceToElem(elem types.Kind, v Value) Value {
	switch elem {
	case types.String:
		return Str(v.String())
	case types.Long:
		return Long(v.Int64())
	case types.Single:
		return Single(v.Float64())
	case types.Double:
		return Double(v.Float64())
	default:
		return Integer(v.Int64())
	}
}
