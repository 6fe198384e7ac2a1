package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var requiredColumns = []string{
	"transaction_type",
	"merchant_category",
	"receiver_age_group",
	"fraud_flag",
	"hour_of_day",
	"transaction_amount",
	"transaction_status",
	"device_type",
	"network_type",
	"is_weekend",
}

var headerAliases = map[string]string{
	"amount_(inr)": "transaction_amount",
}

// MissingColumnsError reports required columns absent from a CSV header.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}

// ReadCSV parses the raw transactions export. Headers are normalized, empty
// cells get the business-rule defaults and derived columns are computed.
func ReadCSV(r io.Reader) ([]Transaction, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv header is required")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[NormalizeHeader(name)] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	var txns []Transaction
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		txn, err := parseRecord(record, index)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		txns = append(txns, Derive(txn))
	}
	return txns, nil
}

// NormalizeHeader trims and lower-cases a CSV header and replaces spaces with
// underscores, mapping known aliases to their stored names.
func NormalizeHeader(name string) string {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	if alias, ok := headerAliases[normalized]; ok {
		return alias
	}
	return normalized
}

func parseRecord(record []string, index map[string]int) (Transaction, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	amount, err := parseWhole(field("transaction_amount"))
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction_amount: %w", err)
	}
	hour, err := parseWhole(field("hour_of_day"))
	if err != nil {
		return Transaction{}, fmt.Errorf("hour_of_day: %w", err)
	}
	if hour < 0 || hour > 23 {
		return Transaction{}, fmt.Errorf("hour_of_day: %d out of range", hour)
	}
	fraud, err := parseFlag(field("fraud_flag"), true)
	if err != nil {
		return Transaction{}, fmt.Errorf("fraud_flag: %w", err)
	}
	weekend, err := parseFlag(field("is_weekend"), false)
	if err != nil {
		return Transaction{}, fmt.Errorf("is_weekend: %w", err)
	}

	return Transaction{
		TransactionID:     field("transaction_id"),
		Timestamp:         field("timestamp"),
		TransactionType:   field("transaction_type"),
		MerchantCategory:  field("merchant_category"),
		TransactionAmount: amount,
		TransactionStatus: field("transaction_status"),
		SenderAgeGroup:    field("sender_age_group"),
		ReceiverAgeGroup:  field("receiver_age_group"),
		SenderState:       field("sender_state"),
		SenderBank:        field("sender_bank"),
		ReceiverBank:      field("receiver_bank"),
		DeviceType:        field("device_type"),
		NetworkType:       field("network_type"),
		FraudFlag:         fraud,
		HourOfDay:         hour,
		DayOfWeek:         field("day_of_week"),
		IsWeekend:         weekend,
	}, nil
}

// parseWhole accepts integers and floats with no fractional part ("1200.0"
// is what spreadsheet exports produce for integer columns).
func parseWhole(raw string) (int64, error) {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("non-integer value %q", raw)
	}
	return int64(f), nil
}

func parseFlag(raw string, emptyIsZero bool) (int64, error) {
	if raw == "" {
		if emptyIsZero {
			return 0, nil
		}
		return 0, fmt.Errorf("value is required")
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return boolFlag(b), nil
	}
	v, err := parseWhole(raw)
	if err != nil {
		return 0, err
	}
	if v != 0 && v != 1 {
		return 0, fmt.Errorf("flag must be 0 or 1, got %d", v)
	}
	return v, nil
}
