package query

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"
)

func TestFromDriver(t *testing.T) {
	huge, _ := new(big.Int).SetString("170141183460469231731687303715884105727", 10)
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{name: "nil", in: nil, want: Null()},
		{name: "int64", in: int64(42), want: Integer(42)},
		{name: "int32", in: int32(-7), want: Integer(-7)},
		{name: "float64", in: 12.5, want: Float(12.5)},
		{name: "float32", in: float32(0.5), want: Float(0.5)},
		{name: "bool", in: true, want: Integer(1)},
		{name: "string", in: "FAILED", want: Text("FAILED")},
		{name: "bytes", in: []byte("Android"), want: Text("Android")},
		{name: "time", in: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), want: Text("2026-01-02T03:04:05Z")},
		{name: "big_small", in: big.NewInt(9), want: Integer(9)},
		{name: "big_huge", in: huge, want: Text("170141183460469231731687303715884105727")},
		{name: "float64er", in: decimalLike(3.25), want: Float(3.25)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromDriver(tt.in); got != tt.want {
				t.Fatalf("FromDriver(%#v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValueMarshalJSON(t *testing.T) {
	row := []Value{Null(), Integer(3), Float(1.5), Text("P2M")}
	raw, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if string(raw) != `[null,3,1.5,"P2M"]` {
		t.Fatalf("json = %s", raw)
	}
}

func TestValueNumber(t *testing.T) {
	if n, ok := Integer(5).Number(); !ok || n != 5 {
		t.Fatalf("Integer.Number() = %v, %v", n, ok)
	}
	if _, ok := Text("5").Number(); ok {
		t.Fatal("text must not be numeric")
	}
	if Null().IsNumeric() {
		t.Fatal("null must not be numeric")
	}
}

type decimalLike float64

func (d decimalLike) Float64() float64 { return float64(d) }
