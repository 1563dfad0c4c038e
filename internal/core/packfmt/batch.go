package packfmt

import (
	"geopack/internal/platform/logger"
)

// DecodeBatch decodes every whole record in b. A record that fails to decode
// is logged and skipped rather than aborting the batch; trailing bytes that
// do not make a whole record are ignored
func DecodeBatch(b []byte) (recs []Record, skipped int) {
	n := len(b) / RecordSize
	if n == 0 {
		return nil, 0
	}
	recs = make([]Record, 0, n)
	for i := 0; i < n; i++ {
		r, err := Decode(b[i*RecordSize : (i+1)*RecordSize])
		if err != nil {
			skipped++
			logger.Named("packfmt").Warn().
				Int("record", i).
				Err(err).
				Msg("skipping corrupt record in batch")
			continue
		}
		recs = append(recs, r)
	}
	return recs, skipped
}
