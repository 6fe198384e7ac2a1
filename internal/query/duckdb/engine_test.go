package duckdb

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/insightx/insightx/internal/dataset"
	"github.com/insightx/insightx/internal/query"
	"github.com/insightx/insightx/internal/storage"
)

func TestExecuteReadsDatasetSnapshotThroughObjectStore(t *testing.T) {
	parquetBytes, err := dataset.EncodeParquet([]dataset.Transaction{
		sampleTransaction("T1", 6000, "FAILED", "Android"),
		sampleTransaction("T2", 100, "SUCCESS", "Android"),
		sampleTransaction("T3", 2500, "SUCCESS", "iOS"),
	})
	if err != nil {
		t.Fatalf("EncodeParquet() error = %v", err)
	}

	store := &memoryStore{objects: map[string][]byte{"datasets/transactions.parquet": parquetBytes}}
	engine := NewEngine(store, "transactions", []string{"datasets/transactions.parquet"})

	result, err := engine.Execute(context.Background(), query.Request{
		SQL: "SELECT device_type, COUNT(*) AS c, SUM(is_high_value) AS high FROM transactions GROUP BY device_type ORDER BY device_type;",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != query.Text("Android") {
		t.Fatalf("device = %#v", result.Rows[0][0])
	}
	if result.Rows[0][1] != query.Integer(2) {
		t.Fatalf("count = %#v", result.Rows[0][1])
	}
	if n, ok := result.Rows[0][2].Number(); !ok || n != 1 {
		t.Fatalf("high = %#v", result.Rows[0][2])
	}
}

func TestExecuteSupportsRowLimit(t *testing.T) {
	parquetBytes, err := dataset.EncodeParquet([]dataset.Transaction{
		sampleTransaction("T1", 10, "SUCCESS", "iOS"),
		sampleTransaction("T2", 20, "SUCCESS", "iOS"),
		sampleTransaction("T3", 30, "SUCCESS", "iOS"),
	})
	if err != nil {
		t.Fatalf("EncodeParquet() error = %v", err)
	}

	store := &memoryStore{objects: map[string][]byte{"k": parquetBytes}}
	engine := NewEngine(store, "transactions", []string{"k"})

	result, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT * FROM transactions", RowLimit: 2})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if len(result.Columns) != 19 {
		t.Fatalf("columns = %d", len(result.Columns))
	}
}

func TestExecuteReportsMissingColumnAsExecutionError(t *testing.T) {
	parquetBytes, err := dataset.EncodeParquet([]dataset.Transaction{sampleTransaction("T1", 10, "SUCCESS", "iOS")})
	if err != nil {
		t.Fatalf("EncodeParquet() error = %v", err)
	}
	store := &memoryStore{objects: map[string][]byte{"k": parquetBytes}}
	engine := NewEngine(store, "transactions", []string{"k"})

	_, err = engine.Execute(context.Background(), query.Request{SQL: "SELECT merchant_name FROM transactions"})
	var execErr *query.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Execute() error = %v, want ExecutionError", err)
	}
}

func TestExecuteReportsMissingObject(t *testing.T) {
	engine := NewEngine(&memoryStore{objects: map[string][]byte{}}, "transactions", []string{"missing"})
	_, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT 1"})
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Execute() error = %v", err)
	}
}

func sampleTransaction(id string, amount int64, status, device string) dataset.Transaction {
	txn := dataset.Transaction{
		TransactionID:     id,
		Timestamp:         "2024-10-05 19:30:00",
		TransactionType:   "P2M",
		MerchantCategory:  "Grocery",
		TransactionAmount: amount,
		TransactionStatus: status,
		SenderAgeGroup:    "26-35",
		ReceiverAgeGroup:  "N/A (Merchant)",
		SenderState:       "Karnataka",
		SenderBank:        "SBI",
		ReceiverBank:      "HDFC",
		DeviceType:        device,
		NetworkType:       "5G",
		HourOfDay:         19,
		DayOfWeek:         "Saturday",
		IsWeekend:         1,
	}
	return dataset.Derive(txn)
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(context.Context, string, io.Reader, int64, storage.PutOptions) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Stat(context.Context, string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, nil
}

func (m *memoryStore) Delete(context.Context, string) error {
	return nil
}
