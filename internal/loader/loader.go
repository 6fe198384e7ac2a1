// Package loader builds the transactions dataset the API serves: it reads the
// CSV export or generates rows, writes a SQLite file and uploads a parquet
// snapshot, then runs the known-answer checks against what it wrote.
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/insightx/insightx/internal/dataset"
	"github.com/insightx/insightx/internal/format"
	"github.com/insightx/insightx/internal/query"
	duckdbengine "github.com/insightx/insightx/internal/query/duckdb"
	"github.com/insightx/insightx/internal/query/sqlstore"
	"github.com/insightx/insightx/internal/storage"
)

type CheckResult struct {
	Name  string
	Table format.Table
}

type Summary struct {
	Rows       int
	SQLitePath string
	ObjectKey  string
	Checks     []CheckResult
}

type Service struct {
	cfg   Config
	log   *slog.Logger
	store  storage.ObjectStore
	checks []dataset.Check
	now    func() time.Time
}

// NewService returns a loader. store may be nil unless cfg.Upload is set.
func NewService(cfg Config, logger *slog.Logger, store storage.ObjectStore) (*Service, error) {
	if cfg.Upload && store == nil {
		return nil, fmt.Errorf("object store is required for upload")
	}
	if cfg.SQLitePath == "" && !cfg.Upload {
		return nil, fmt.Errorf("no dataset destination configured")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{cfg: cfg, log: logger, store: store, checks: dataset.Checks, now: time.Now}, nil
}

func (s *Service) Run(ctx context.Context) (Summary, error) {
	txns, err := s.transactions()
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Rows: len(txns)}
	if len(txns) == 0 {
		return summary, fmt.Errorf("no transactions to load")
	}

	if s.cfg.SQLitePath != "" {
		if err := s.writeSQLite(ctx, txns); err != nil {
			return summary, err
		}
		summary.SQLitePath = s.cfg.SQLitePath
		s.log.Info("wrote sqlite dataset",
			slog.String("path", s.cfg.SQLitePath),
			slog.Int("rows", len(txns)),
		)
	}

	if s.cfg.Upload {
		key, err := s.upload(ctx, txns)
		if err != nil {
			return summary, err
		}
		summary.ObjectKey = key
		s.log.Info("uploaded parquet snapshot",
			slog.String("object_key", key),
			slog.Int("rows", len(txns)),
		)
	}

	if s.cfg.RunChecks {
		engine, cleanup, err := s.checkEngine(ctx, summary)
		if err != nil {
			return summary, s.discardSnapshot(ctx, &summary, err)
		}
		defer cleanup()
		results, err := runChecks(ctx, engine, s.checks)
		if err != nil {
			return summary, s.discardSnapshot(ctx, &summary, err)
		}
		summary.Checks = results
		for _, result := range results {
			s.log.Info("dataset check", slog.String("check", result.Name), slog.Any("result", result.Table.Rows))
		}
	}
	return summary, nil
}

func (s *Service) transactions() ([]dataset.Transaction, error) {
	if s.cfg.CSVPath == "" {
		return dataset.NewGenerator(s.cfg.Seed, s.cfg.Start).Generate(s.cfg.Rows), nil
	}
	file, err := os.Open(s.cfg.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = file.Close() }()
	txns, err := dataset.ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.cfg.CSVPath, err)
	}
	return txns, nil
}

func (s *Service) writeSQLite(ctx context.Context, txns []dataset.Transaction) error {
	db, err := sql.Open("sqlite3", s.cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", s.cfg.SQLitePath, err)
	}
	defer func() { _ = db.Close() }()
	return dataset.WriteSQLite(ctx, db, dataset.TableName, txns)
}

func (s *Service) upload(ctx context.Context, txns []dataset.Transaction) (string, error) {
	data, err := dataset.EncodeParquet(txns)
	if err != nil {
		return "", err
	}
	key, err := storage.BuildSnapshotPath(dataset.TableName, s.now(), 0)
	if err != nil {
		return "", err
	}
	if _, err := storage.PutParquet(ctx, s.store, key, data); err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	return key, nil
}

// discardSnapshot removes an uploaded snapshot that failed its checks so the
// API never discovers it. cause is returned unchanged.
func (s *Service) discardSnapshot(ctx context.Context, summary *Summary, cause error) error {
	if summary.ObjectKey == "" {
		return cause
	}
	if err := s.store.Delete(ctx, summary.ObjectKey); err != nil {
		s.log.Error("remove rejected snapshot",
			slog.String("object_key", summary.ObjectKey),
			slog.String("error", err.Error()),
		)
		return cause
	}
	s.log.Warn("removed snapshot that failed checks", slog.String("object_key", summary.ObjectKey))
	summary.ObjectKey = ""
	return cause
}

// checkEngine reads back what was just written: the SQLite file when there is
// one, the uploaded snapshot otherwise.
func (s *Service) checkEngine(ctx context.Context, summary Summary) (query.Engine, func(), error) {
	if summary.SQLitePath != "" {
		db, err := sqlstore.Open(ctx, sqlstore.DBConfig{Driver: sqlstore.DriverSQLite, DSN: summary.SQLitePath})
		if err != nil {
			return nil, nil, err
		}
		return sqlstore.NewEngineForDriver(db, sqlstore.DriverSQLite), func() { _ = db.Close() }, nil
	}
	return duckdbengine.NewEngine(s.store, dataset.TableName, []string{summary.ObjectKey}), func() {}, nil
}

func runChecks(ctx context.Context, engine query.Engine, checks []dataset.Check) ([]CheckResult, error) {
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		result, err := engine.Execute(ctx, query.Request{SQL: check.SQL})
		if err != nil {
			return results, fmt.Errorf("check %s: %w", check.Name, err)
		}
		results = append(results, CheckResult{Name: check.Name, Table: format.Result(check.SQL, result)})
	}
	return results, nil
}
