// Package dataset builds the transactions table the query engines read: it
// ingests the raw CSV export or generates synthetic rows, derives the
// analytic columns and writes SQLite tables or parquet snapshots.
package dataset

import "fmt"

const (
	TableName = "transactions"

	TypeP2P = "P2P"
	TypeP2M = "P2M"

	MerchantNotApplicable = "N/A (P2P)"
	ReceiverIsMerchant    = "N/A (Merchant)"

	// HighValueThreshold is the amount in INR from which a transaction counts
	// as high value.
	HighValueThreshold = 5000
)

// Transaction is one ledger row. Field order is the column order of every
// table and snapshot written by this package.
type Transaction struct {
	TransactionID     string `parquet:"transaction_id"`
	Timestamp         string `parquet:"timestamp"`
	TransactionType   string `parquet:"transaction_type"`
	MerchantCategory  string `parquet:"merchant_category"`
	TransactionAmount int64  `parquet:"transaction_amount"`
	TransactionStatus string `parquet:"transaction_status"`
	SenderAgeGroup    string `parquet:"sender_age_group"`
	ReceiverAgeGroup  string `parquet:"receiver_age_group"`
	SenderState       string `parquet:"sender_state"`
	SenderBank        string `parquet:"sender_bank"`
	ReceiverBank      string `parquet:"receiver_bank"`
	DeviceType        string `parquet:"device_type"`
	NetworkType       string `parquet:"network_type"`
	FraudFlag         int64  `parquet:"fraud_flag"`
	HourOfDay         int64  `parquet:"hour_of_day"`
	DayOfWeek         string `parquet:"day_of_week"`
	IsWeekend         int64  `parquet:"is_weekend"`
	TimeBlock         string `parquet:"time_block"`
	IsHighValue       int64  `parquet:"is_high_value"`
}

type columnDef struct {
	name    string
	sqlType string
}

var columns = []columnDef{
	{"transaction_id", "TEXT"},
	{"timestamp", "TEXT"},
	{"transaction_type", "TEXT"},
	{"merchant_category", "TEXT"},
	{"transaction_amount", "INTEGER"},
	{"transaction_status", "TEXT"},
	{"sender_age_group", "TEXT"},
	{"receiver_age_group", "TEXT"},
	{"sender_state", "TEXT"},
	{"sender_bank", "TEXT"},
	{"receiver_bank", "TEXT"},
	{"device_type", "TEXT"},
	{"network_type", "TEXT"},
	{"fraud_flag", "INTEGER"},
	{"hour_of_day", "INTEGER"},
	{"day_of_week", "TEXT"},
	{"is_weekend", "INTEGER"},
	{"time_block", "TEXT"},
	{"is_high_value", "INTEGER"},
}

// ColumnNames lists the stored columns in order.
func ColumnNames() []string {
	names := make([]string, len(columns))
	for i, column := range columns {
		names[i] = column.name
	}
	return names
}

func (t Transaction) values() []any {
	return []any{
		t.TransactionID,
		t.Timestamp,
		t.TransactionType,
		t.MerchantCategory,
		t.TransactionAmount,
		t.TransactionStatus,
		t.SenderAgeGroup,
		t.ReceiverAgeGroup,
		t.SenderState,
		t.SenderBank,
		t.ReceiverBank,
		t.DeviceType,
		t.NetworkType,
		t.FraudFlag,
		t.HourOfDay,
		t.DayOfWeek,
		t.IsWeekend,
		t.TimeBlock,
		t.IsHighValue,
	}
}

// Derive fills the business-rule defaults and the derived columns.
func Derive(t Transaction) Transaction {
	if t.TransactionType == TypeP2P && t.MerchantCategory == "" {
		t.MerchantCategory = MerchantNotApplicable
	}
	if t.TransactionType == TypeP2M && t.ReceiverAgeGroup == "" {
		t.ReceiverAgeGroup = ReceiverIsMerchant
	}
	t.TimeBlock = TimeBlock(int(t.HourOfDay))
	t.IsHighValue = boolFlag(IsHighValue(t.TransactionAmount))
	return t
}

func TimeBlock(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return "Morning"
	case hour >= 12 && hour < 18:
		return "Afternoon"
	case hour >= 18 && hour <= 23:
		return "Peak Evening"
	default:
		return "Late Night"
	}
}

func IsHighValue(amount int64) bool {
	return amount >= HighValueThreshold
}

func boolFlag(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func validateTableName(table string) error {
	if table == "" {
		return fmt.Errorf("table name is required")
	}
	for _, r := range table {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("invalid table name %q", table)
		}
	}
	return nil
}
