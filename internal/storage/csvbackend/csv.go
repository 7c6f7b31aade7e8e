package csvbackend

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/tendril/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"run_id",
	"depth",
	"url",
	"links_json",
	"images_json",
	"metadata_json",
	"fetched_at",
}

// New opens (or creates) an append-only CSV file at filePath.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open csv store: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv store: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, e *storage.Extraction) error {
	links, err := json.Marshal(e.Links)
	if err != nil {
		return fmt.Errorf("encode links: %w", err)
	}
	images, err := json.Marshal(e.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	record := []string{
		e.ID,
		e.RunID,
		strconv.Itoa(e.Depth),
		e.URL,
		string(links),
		string(images),
		string(meta),
		e.FetchedAt.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Extraction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind csv store: %w", err)
	}
	// O_APPEND writes ignore the offset, but restore it anyway for readers
	defer func() { _, _ = b.file.Seek(0, io.SeekEnd) }()

	r := csv.NewReader(b.file)
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.Extraction{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var matched []*storage.Extraction
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		e, err := decodeRecord(record)
		if err != nil {
			return nil, err
		}
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}

	return filter.Window(matched), nil
}

func decodeRecord(record []string) (*storage.Extraction, error) {
	depth, err := strconv.Atoi(record[2])
	if err != nil {
		return nil, fmt.Errorf("bad depth %q: %w", record[2], err)
	}
	fetchedAt, _ := time.Parse(time.RFC3339Nano, record[7])

	e := &storage.Extraction{
		ID:        record[0],
		RunID:     record[1],
		Depth:     depth,
		URL:       record[3],
		FetchedAt: fetchedAt,
	}
	if err := json.Unmarshal([]byte(record[4]), &e.Links); err != nil {
		return nil, fmt.Errorf("decode links of %s: %w", e.URL, err)
	}
	if err := json.Unmarshal([]byte(record[5]), &e.Images); err != nil {
		return nil, fmt.Errorf("decode images of %s: %w", e.URL, err)
	}
	if err := json.Unmarshal([]byte(record[6]), &e.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata of %s: %w", e.URL, err)
	}
	return e, nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
