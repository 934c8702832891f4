package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/user/retail-scraper/internal/domain"
)

// RowSink receives finished output rows. Implementations are safe for
// concurrent use by the dispatcher's workers.
type RowSink interface {
	WriteRows(ctx context.Context, rows []domain.Record) error
	Close() error
}

// CSVSink appends rows to a UTF-8 CSV file under a lock. The header is
// written when the sink creates the file.
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

func NewCSVSink(path string) (*CSVSink, error) {
	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}

	s := &CSVSink{file: file, writer: csv.NewWriter(file)}
	if fresh {
		if err := s.writer.Write(domain.Header()); err != nil {
			file.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		s.writer.Flush()
		if err := s.writer.Error(); err != nil {
			file.Close()
			return nil, fmt.Errorf("flush csv header: %w", err)
		}
	}
	return s, nil
}

func (s *CSVSink) WriteRows(_ context.Context, rows []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		if err := s.writer.Write(row.Fields()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	s.writer.Flush()
	return s.writer.Error()
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
