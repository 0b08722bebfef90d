package climate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Source yields the raw records of the climate/risk table. Implementations are
// the file loader below and the Postgres repository in internal/db.
type Source interface {
	LoadRecords(ctx context.Context) ([]Record, error)
}

// Load reads every record from src and indexes it.
func Load(ctx context.Context, src Source) (*Dataset, error) {
	records, err := src.LoadRecords(ctx)
	if err != nil {
		return nil, err
	}
	return NewDataset(records), nil
}

// ErrMissingColumn is returned when a required column is absent from the
// header row.
var ErrMissingColumn = errors.New("missing required column")

var requiredColumns = []string{ColMunicipality, ColCrop, ColRisk, ColCostPerHa}

// FileSource loads the table from a delimited text file. Files ending in
// ".zst" are decompressed on the fly. The delimiter (',' or ';') is detected
// from the header row.
type FileSource struct {
	Path   string
	Logger *slog.Logger
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{Path: path, Logger: logger}
}

// LoadRecords implements Source.
func (f *FileSource) LoadRecords(ctx context.Context) ([]Record, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", f.Path, err)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(f.Path, ".zst") {
		dec, err := zstd.NewReader(file, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd reader for %s: %w", f.Path, err)
		}
		defer dec.Close()
		r = dec
	}

	records, skipped, err := ReadCSV(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", f.Path, err)
	}
	if skipped > 0 {
		f.Logger.Warn("skipped malformed dataset rows", "path", f.Path, "skipped", skipped)
	}
	f.Logger.Info("dataset loaded", "path", f.Path, "records", len(records))
	return records, nil
}

// ReadCSV parses a delimited table. Malformed rows are skipped and counted. A
// header without the required columns, or a failure of the underlying reader,
// is an error.
func ReadCSV(ctx context.Context, r io.Reader) ([]Record, int, error) {
	br := bufio.NewReader(r)
	comma, err := detectDelimiter(br)
	if err != nil {
		return nil, 0, err
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rawHeader, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	header := NormalizeHeader(stripBOM(rawHeader))

	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	for _, col := range requiredColumns {
		if !present[col] {
			return nil, 0, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var (
		records []Record
		skipped int
	)
	row := make(map[string]string, len(header))
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("read row %d: %w", line, err)
		}

		clear(row)
		for i, v := range fields {
			if i < len(header) {
				// First non-empty column wins when two share an alias.
				if row[header[i]] == "" {
					row[header[i]] = v
				}
			}
		}
		rec, err := RecordFromRow(row)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func detectDelimiter(br *bufio.Reader) (rune, error) {
	peek, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, fmt.Errorf("peek header: %w", err)
	}
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}
	if bytes.Count(peek, []byte{';'}) > bytes.Count(peek, []byte{','}) {
		return ';', nil
	}
	return ',', nil
}

func stripBOM(header []string) []string {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header
}
