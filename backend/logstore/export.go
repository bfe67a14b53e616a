package logstore

import (
	"context"
	"encoding/json"
	"io"

	"github.com/PhilHem/logstore/backend/models"

	"github.com/klauspost/compress/zstd"
	"gorm.io/gorm"
)

const exportBatchSize = 500

// Export writes every entry matching f (paging fields are ignored) to w as
// newline-delimited JSON in ID order, zstd-compressed when compress is set.
// It returns the number of entries written.
func (s *Store) Export(ctx context.Context, w io.Writer, f Filter, compress bool) (int, error) {
	var enc *zstd.Encoder
	if compress {
		var err error
		enc, err = zstd.NewWriter(w)
		if err != nil {
			return 0, err
		}
		w = enc
	}

	jsonEnc := json.NewEncoder(w)
	written := 0
	var batch []models.LogEntry
	result := f.apply(s.db.WithContext(ctx).Model(&models.LogEntry{})).
		FindInBatches(&batch, exportBatchSize, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				if err := jsonEnc.Encode(&batch[i]); err != nil {
					return err
				}
				written++
			}
			return nil
		})

	if enc != nil {
		if err := enc.Close(); err != nil && result.Error == nil {
			return written, err
		}
	}
	return written, result.Error
}
