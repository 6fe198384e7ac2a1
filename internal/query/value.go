package query

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	default:
		return "null"
	}
}

// Value is a single result cell. Exactly one payload field is meaningful,
// selected by Kind.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Text  string
}

func Null() Value {
	return Value{Kind: KindNull}
}

func Integer(v int64) Value {
	return Value{Kind: KindInteger, Int: v}
}

func Float(v float64) Value {
	return Value{Kind: KindFloat, Float: v}
}

func Text(v string) Value {
	return Value{Kind: KindText, Text: v}
}

func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

func (v Value) IsNumeric() bool {
	return v.Kind == KindInteger || v.Kind == KindFloat
}

// Number returns the numeric payload as float64 for Integer and Float values.
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case KindInteger:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindText:
		return v.Text
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInteger:
		return json.Marshal(v.Int)
	case KindFloat:
		return json.Marshal(v.Float)
	case KindText:
		return json.Marshal(v.Text)
	default:
		return []byte("null"), nil
	}
}

type float64er interface {
	Float64() float64
}

// FromDriver converts a value scanned from database/sql into a Value.
func FromDriver(raw any) Value {
	switch typed := raw.(type) {
	case nil:
		return Null()
	case int64:
		return Integer(typed)
	case int:
		return Integer(int64(typed))
	case int32:
		return Integer(int64(typed))
	case int16:
		return Integer(int64(typed))
	case int8:
		return Integer(int64(typed))
	case uint8:
		return Integer(int64(typed))
	case uint16:
		return Integer(int64(typed))
	case uint32:
		return Integer(int64(typed))
	case uint64:
		if typed > 1<<63-1 {
			return Text(strconv.FormatUint(typed, 10))
		}
		return Integer(int64(typed))
	case float64:
		return Float(typed)
	case float32:
		return Float(float64(typed))
	case bool:
		if typed {
			return Integer(1)
		}
		return Integer(0)
	case string:
		return Text(typed)
	case []byte:
		return Text(string(typed))
	case time.Time:
		return Text(typed.Format(time.RFC3339Nano))
	case *big.Int:
		if typed == nil {
			return Null()
		}
		if typed.IsInt64() {
			return Integer(typed.Int64())
		}
		return Text(typed.String())
	case float64er:
		return Float(typed.Float64())
	case fmt.Stringer:
		return Text(typed.String())
	default:
		return Text(fmt.Sprint(typed))
	}
}
