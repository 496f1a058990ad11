// Package export renders the inventory history as CSV and uploads it to
// object storage.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cafe-inventory/server/types"
)

const csvContentType = "text/csv; charset=utf-8"

// KeyPrefix is where history snapshots are stored.
const KeyPrefix = "history/"

var historyHeader = []string{"id", "timestamp", "product_id", "product", "action", "change", "user_id", "notes"}

// HistoryLister returns the full inventory history, newest first.
type HistoryLister interface {
	ListHistory(ctx context.Context) ([]types.HistoryEntry, error)
}

// Uploader stores an object.
type Uploader interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// Exporter uploads history snapshots.
type Exporter struct {
	history HistoryLister
	storage Uploader
	now     func() time.Time
}

func NewExporter(history HistoryLister, storage Uploader) *Exporter {
	return &Exporter{history: history, storage: storage, now: time.Now}
}

// ExportHistory writes the current history under key, or under a
// timestamped key when key is empty. It returns the key and row count.
func (e *Exporter) ExportHistory(ctx context.Context, key string) (string, int, error) {
	entries, err := e.history.ListHistory(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("list history: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteHistoryCSV(&buf, entries); err != nil {
		return "", 0, err
	}

	if key == "" {
		key = DefaultKey(e.now())
	}
	if err := e.storage.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), csvContentType); err != nil {
		return "", 0, fmt.Errorf("upload %s: %w", key, err)
	}
	return key, len(entries), nil
}

// DefaultKey names a snapshot after the time it was taken.
func DefaultKey(now time.Time) string {
	return KeyPrefix + "inventory-log-" + now.UTC().Format("20060102T150405Z") + ".csv"
}

// WriteHistoryCSV writes a header row followed by one row per entry.
func WriteHistoryCSV(w io.Writer, entries []types.HistoryEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(historyHeader); err != nil {
		return err
	}
	for _, entry := range entries {
		record := []string{
			strconv.Itoa(entry.ID),
			entry.Timestamp.UTC().Format(time.RFC3339),
			strconv.Itoa(entry.ProductID),
			entry.ProductName,
			string(entry.Action),
			strconv.Itoa(entry.Change),
			strconv.Itoa(entry.UserID),
			entry.Notes,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
