// Package ledger exports the coin transaction log as zstd-compressed JSONL.
package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/store"

	"github.com/klauspost/compress/zstd"
)

// Export streams every transaction to w, one JSON object per line, and
// returns the number of rows written.
func Export(ctx context.Context, txs store.TransactionRepo, w io.Writer) (int, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriterSize(enc, 128*1024)
	je := json.NewEncoder(bw)

	n := 0
	err = txs.Each(ctx, func(t *domain.Transaction) error {
		if err := je.Encode(t); err != nil {
			return fmt.Errorf("encode transaction %d: %w", t.ID, err)
		}
		n++
		return nil
	})
	if err != nil {
		_ = enc.Close()
		return n, err
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return n, err
	}
	return n, enc.Close()
}

// Read decodes an export produced by Export.
func Read(r io.Reader, fn func(*domain.Transaction) error) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		var t domain.Transaction
		if err := json.Unmarshal(sc.Bytes(), &t); err != nil {
			return err
		}
		if err := fn(&t); err != nil {
			return err
		}
	}
	return sc.Err()
}
