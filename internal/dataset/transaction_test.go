package dataset

import (
	"reflect"
	"testing"

	"github.com/insightx/insightx/internal/schema"
)

func TestTimeBlock(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "Late Night"},
		{5, "Late Night"},
		{6, "Morning"},
		{11, "Morning"},
		{12, "Afternoon"},
		{17, "Afternoon"},
		{18, "Peak Evening"},
		{23, "Peak Evening"},
		{24, "Late Night"},
	}
	for _, tt := range tests {
		if got := TimeBlock(tt.hour); got != tt.want {
			t.Fatalf("TimeBlock(%d) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}

func TestDeriveFillsDefaultsAndFlags(t *testing.T) {
	p2p := Derive(Transaction{TransactionType: TypeP2P, TransactionAmount: 5000, HourOfDay: 7})
	if p2p.MerchantCategory != MerchantNotApplicable || p2p.ReceiverAgeGroup != "" {
		t.Fatalf("p2p = %+v", p2p)
	}
	if p2p.IsHighValue != 1 || p2p.TimeBlock != "Morning" {
		t.Fatalf("p2p derived = %d/%q", p2p.IsHighValue, p2p.TimeBlock)
	}

	p2m := Derive(Transaction{TransactionType: TypeP2M, MerchantCategory: "Fuel", TransactionAmount: 4999, HourOfDay: 2})
	if p2m.ReceiverAgeGroup != ReceiverIsMerchant || p2m.MerchantCategory != "Fuel" {
		t.Fatalf("p2m = %+v", p2m)
	}
	if p2m.IsHighValue != 0 || p2m.TimeBlock != "Late Night" {
		t.Fatalf("p2m derived = %d/%q", p2m.IsHighValue, p2m.TimeBlock)
	}
}

func TestColumnsMatchSchemaDescriptor(t *testing.T) {
	descriptor, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() error = %v", err)
	}
	if !reflect.DeepEqual(ColumnNames(), descriptor.ColumnNames()) {
		t.Fatalf("columns = %v, schema = %v", ColumnNames(), descriptor.ColumnNames())
	}
	for _, column := range descriptor.Columns() {
		for _, def := range columns {
			if def.name == column.Name && def.sqlType != column.Type {
				t.Fatalf("column %s type = %s, schema says %s", def.name, def.sqlType, column.Type)
			}
		}
	}
	if got := len(Transaction{}.values()); got != len(columns) {
		t.Fatalf("values() returns %d fields, want %d", got, len(columns))
	}
}
