package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ethervenue/venue/internal/domain"
)

// BlobWriter is the narrow upload interface the archiver needs; *Writer
// satisfies it against real object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver copies settled markets, settled trades, and reputation events
// older than the retention window to cold storage as JSONL. It never deletes
// from the primary store; pruning is a separate operator action taken after
// the archive is verified.
type Archiver struct {
	writer    BlobWriter
	markets   domain.MarketStore
	trades    domain.TradeStore
	events    domain.ReputationEventStore
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewArchiver creates an Archiver with the given retention window.
func NewArchiver(writer BlobWriter, markets domain.MarketStore, trades domain.TradeStore, events domain.ReputationEventStore, retention time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		markets:   markets,
		trades:    trades,
		events:    events,
		retention: retention,
		logger:    logger.With(slog.String("component", "archiver")),
		now:       time.Now,
	}
}

// Run archives every category once. It is called by the scheduler on the
// archive ticker.
func (a *Archiver) Run(ctx context.Context) error {
	before := a.now().UTC().Add(-a.retention)

	markets, err := a.markets.ListSettledBefore(ctx, before)
	if err != nil {
		return fmt.Errorf("s3blob: archive markets query: %w", err)
	}
	if n, err := uploadBatch(ctx, a.writer, "markets", before, markets); err != nil {
		return err
	} else if n > 0 {
		a.logger.InfoContext(ctx, "archived settled markets", slog.Int("count", n))
	}

	trades, err := a.trades.ListSettledBefore(ctx, before)
	if err != nil {
		return fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if n, err := uploadBatch(ctx, a.writer, "trades", before, trades); err != nil {
		return err
	} else if n > 0 {
		a.logger.InfoContext(ctx, "archived settled trades", slog.Int("count", n))
	}

	events, err := a.events.ListBefore(ctx, before)
	if err != nil {
		return fmt.Errorf("s3blob: archive reputation events query: %w", err)
	}
	if n, err := uploadBatch(ctx, a.writer, "reputation", before, events); err != nil {
		return err
	} else if n > 0 {
		a.logger.InfoContext(ctx, "archived reputation events", slog.Int("count", n))
	}

	return nil
}

// uploadBatch serializes records to JSONL and writes one object per category
// per month. An empty batch writes nothing.
func uploadBatch[T any](ctx context.Context, writer BlobWriter, category string, before time.Time, records []T) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", category, err)
	}

	path := archivePath(category, before)
	if err := writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", category, err)
	}
	return len(records), nil
}

// archivePath builds the object key, one file per category per month.
func archivePath(category string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", category, before.Format("2006-01"))
}

// marshalJSONL serializes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
