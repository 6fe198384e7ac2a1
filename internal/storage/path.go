package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildSnapshotPath returns the object key of one parquet part of a dataset
// snapshot, e.g. datasets/transactions/snapshot=20260219T090500Z/part-00000.parquet.
func BuildSnapshotPath(tableName string, createdAt time.Time, part int) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	if part < 0 {
		return "", fmt.Errorf("part must be >= 0")
	}
	return path.Join(
		"datasets",
		tableName,
		"snapshot="+createdAt.UTC().Format("20060102T150405Z"),
		fmt.Sprintf("part-%05d.parquet", part),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
