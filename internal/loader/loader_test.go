package loader

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/insightx/insightx/internal/dataset"
	"github.com/insightx/insightx/internal/query"
	"github.com/insightx/insightx/internal/storage"
)

const sampleCSV = `Transaction ID,Timestamp,Transaction Type,Merchant_Category,Amount (INR),Transaction_Status,Sender_Age_Group,Receiver_Age_Group,Sender_State,Sender_Bank,Receiver_Bank,Device_Type,Network_Type,Fraud_Flag,Hour_Of_Day,Day_Of_Week,Is_Weekend
TXN1,2024-10-08 15:17:28,P2P,,868,SUCCESS,26-35,36-45,Delhi,Axis,SBI,Android,4G,,15,Tuesday,0
TXN2,2024-10-05 19:30:00,P2M,Grocery,6400.0,FAILED,18-25,,Karnataka,HDFC,ICICI,iOS,5G,1,19,Saturday,1
`

type memoryStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = data
	m.contentTypes[key] = opts.ContentType
	return storage.ObjectInfo{Key: key, Size: size}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func TestRunLoadsCSVAndRunsChecks(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "upi.csv")
	if err := os.WriteFile(csvPath, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	cfg := DefaultConfig()
	cfg.CSVPath = csvPath
	cfg.SQLitePath = filepath.Join(dir, "transactions.db")
	svc, err := NewService(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Rows != 2 || summary.SQLitePath != cfg.SQLitePath || summary.ObjectKey != "" {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.Checks) != 3 {
		t.Fatalf("checks = %d, want 3", len(summary.Checks))
	}

	failureRate := summary.Checks[0]
	if failureRate.Name != "overall_failure_rate" {
		t.Fatalf("first check = %q", failureRate.Name)
	}
	if got := failureRate.Table.Rows[0][0]; got != query.Float(50) {
		t.Fatalf("failure rate = %#v", got)
	}

	flagged := summary.Checks[1].Table
	if len(flagged.Rows) != 1 || flagged.Rows[0][0] != query.Text("Grocery") || flagged.Rows[0][1] != query.Integer(1) {
		t.Fatalf("flagged = %#v", flagged.Rows)
	}

	// No Android 5G weekend rows, so the ratio divides by zero.
	if got := summary.Checks[2].Table.Rows[0][0]; got != query.Null() {
		t.Fatalf("android 5g weekend rate = %#v", got)
	}
}

func TestRunGeneratesAndUploadsSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rows = 40
	cfg.SQLitePath = filepath.Join(t.TempDir(), "transactions.db")
	cfg.Upload = true
	store := newMemoryStore()

	svc, err := NewService(cfg, nil, store)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	svc.now = func() time.Time { return time.Date(2024, 10, 9, 12, 0, 0, 0, time.UTC) }

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Rows != 40 {
		t.Fatalf("Rows = %d", summary.Rows)
	}
	if !strings.HasPrefix(summary.ObjectKey, "datasets/transactions/snapshot=20241009T120000Z/") || !strings.HasSuffix(summary.ObjectKey, ".parquet") {
		t.Fatalf("ObjectKey = %q", summary.ObjectKey)
	}
	if len(store.objects[summary.ObjectKey]) == 0 {
		t.Fatalf("snapshot %q not uploaded", summary.ObjectKey)
	}
	if store.contentTypes[summary.ObjectKey] != storage.ParquetContentType {
		t.Fatalf("content type = %q", store.contentTypes[summary.ObjectKey])
	}
	if len(summary.Checks) != 3 {
		t.Fatalf("checks = %d", len(summary.Checks))
	}
}

func TestRunRemovesSnapshotWhenChecksFail(t *testing.T) {
	tests := []struct {
		name       string
		upload     bool
		wantErr    string
		wantStored int
	}{
		{name: "uploaded snapshot is removed", upload: true, wantErr: "check broken", wantStored: 0},
		{name: "sqlite only leaves store untouched", upload: false, wantErr: "check broken", wantStored: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Rows = 10
			cfg.SQLitePath = filepath.Join(t.TempDir(), "transactions.db")
			cfg.Upload = tt.upload
			store := newMemoryStore()

			svc, err := NewService(cfg, nil, store)
			if err != nil {
				t.Fatalf("NewService() error = %v", err)
			}
			svc.checks = []dataset.Check{{Name: "broken", SQL: "SELECT missing_column FROM transactions"}}

			summary, err := svc.Run(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Run() error = %v, want %q", err, tt.wantErr)
			}
			if summary.ObjectKey != "" {
				t.Fatalf("ObjectKey = %q, want cleared", summary.ObjectKey)
			}
			if len(store.objects) != tt.wantStored {
				t.Fatalf("stored objects = %d, want %d", len(store.objects), tt.wantStored)
			}
		})
	}
}

func TestRunSkipsChecksWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rows = 5
	cfg.RunChecks = false
	cfg.SQLitePath = filepath.Join(t.TempDir(), "transactions.db")

	svc, err := NewService(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Checks != nil {
		t.Fatalf("Checks = %+v", summary.Checks)
	}
}

func TestRunReportsMissingCSV(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CSVPath = filepath.Join(t.TempDir(), "missing.csv")
	svc, err := NewService(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if _, err := svc.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "open csv") {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestNewServiceValidatesDestinations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Upload = true
	if _, err := NewService(cfg, nil, nil); err == nil {
		t.Fatal("expected error for upload without store")
	}
	cfg = DefaultConfig()
	cfg.SQLitePath = ""
	if _, err := NewService(cfg, nil, nil); err == nil {
		t.Fatal("expected error without destination")
	}
}
