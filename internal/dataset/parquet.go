package dataset

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// EncodeParquet writes the rows as a single parquet file.
func EncodeParquet(txns []Transaction) ([]byte, error) {
	if len(txns) == 0 {
		return nil, fmt.Errorf("transactions are required")
	}
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Transaction](buf)
	if _, err := writer.Write(txns); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
