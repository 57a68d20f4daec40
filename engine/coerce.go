package engine

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/mfe-bridge/errors"
)

// parseInputTypes parses the WIT type strings a manifest declares for an
// export's inputs.
func parseInputTypes(decl map[string]string) (map[string]wit.Type, error) {
	if len(decl) == 0 {
		return nil, nil
	}
	types := make(map[string]wit.Type, len(decl))
	for name, s := range decl {
		t, err := wit.ParseType(s)
		if err != nil {
			return nil, errors.New(errors.PhaseEvaluate, errors.KindInvalidData).
				Property(name).
				Detail("parse WIT type %q", s).
				Cause(err).
				Build()
		}
		types[name] = t
	}
	return types, nil
}

// Coerce converts v to the Go representation of the WIT type t. Strings are
// parsed for numeric and boolean types. Types without a scalar mapping are
// passed through unchanged.
func Coerce(t wit.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t.(type) {
	case wit.String:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case wit.Char:
		if s, ok := v.(string); ok {
			r := []rune(s)
			if len(r) != 1 {
				return nil, fmt.Errorf("char needs exactly one rune, got %q", s)
			}
			return r[0], nil
		}
		return v, nil
	case wit.Bool:
		return toBool(v)
	case wit.U8:
		return toUint[uint8](v, math.MaxUint8)
	case wit.U16:
		return toUint[uint16](v, math.MaxUint16)
	case wit.U32:
		return toUint[uint32](v, math.MaxUint32)
	case wit.U64:
		return toUint[uint64](v, math.MaxUint64)
	case wit.S8:
		return toInt[int8](v, math.MinInt8, math.MaxInt8)
	case wit.S16:
		return toInt[int16](v, math.MinInt16, math.MaxInt16)
	case wit.S32:
		return toInt[int32](v, math.MinInt32, math.MaxInt32)
	case wit.S64:
		return toInt[int64](v, math.MinInt64, math.MaxInt64)
	case wit.F32:
		f, err := toFloat(v)
		return float32(f), err
	case wit.F64:
		return toFloat(v)
	default:
		return v, nil
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return rv.Int() != 0, nil
	case rv.CanUint():
		return rv.Uint() != 0, nil
	}
	return false, fmt.Errorf("cannot convert %T to bool", v)
}

func toUint[T uint8 | uint16 | uint32 | uint64](v any, limit uint64) (T, error) {
	var u uint64
	switch x := v.(type) {
	case string:
		p, err := strconv.ParseUint(x, 10, 64)
		if err != nil {
			return 0, err
		}
		u = p
	default:
		rv := reflect.ValueOf(v)
		switch {
		case rv.CanUint():
			u = rv.Uint()
		case rv.CanInt():
			if rv.Int() < 0 {
				return 0, fmt.Errorf("negative value %d for unsigned type", rv.Int())
			}
			u = uint64(rv.Int())
		case rv.CanFloat():
			f := rv.Float()
			if f < 0 || f != math.Trunc(f) {
				return 0, fmt.Errorf("value %v is not an unsigned integer", f)
			}
			u = uint64(f)
		default:
			return 0, fmt.Errorf("cannot convert %T to unsigned integer", v)
		}
	}
	if u > limit {
		return 0, fmt.Errorf("value %d overflows (max %d)", u, limit)
	}
	return T(u), nil
}

func toInt[T int8 | int16 | int32 | int64](v any, lo, hi int64) (T, error) {
	var i int64
	switch x := v.(type) {
	case string:
		p, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, err
		}
		i = p
	default:
		rv := reflect.ValueOf(v)
		switch {
		case rv.CanInt():
			i = rv.Int()
		case rv.CanUint():
			if rv.Uint() > math.MaxInt64 {
				return 0, fmt.Errorf("value %d overflows int64", rv.Uint())
			}
			i = int64(rv.Uint())
		case rv.CanFloat():
			f := rv.Float()
			if f != math.Trunc(f) {
				return 0, fmt.Errorf("value %v is not an integer", f)
			}
			i = int64(f)
		default:
			return 0, fmt.Errorf("cannot convert %T to integer", v)
		}
	}
	if i < lo || i > hi {
		return 0, fmt.Errorf("value %d out of range [%d, %d]", i, lo, hi)
	}
	return T(i), nil
}

func toFloat(v any) (float64, error) {
	if s, ok := v.(string); ok {
		return strconv.ParseFloat(s, 64)
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanFloat():
		return rv.Float(), nil
	case rv.CanInt():
		return float64(rv.Int()), nil
	case rv.CanUint():
		return float64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("cannot convert %T to float", v)
}
