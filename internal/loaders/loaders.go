package loaders

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/xuri/excelize/v2"

	"file-validator-service/internal/dataset"
	"file-validator-service/internal/logging"
	"file-validator-service/internal/records"
)

// Supported file types
const (
	CSV  = "csv"
	PSV  = "psv"
	JSON = "json"
	XLSX = "xlsx"
)

const (
	msgExistsPassed = "Verify File Exists: Passed for %s"
	msgExistsFailed = "Verify File Exists: Failed for %s"
	msgExtnPassed   = "Verify File Extension: Passed for extension %s for file %s"
	msgExtnFailed   = "Verify File Extension: Failed for extension %s for file %s"
	msgReadPassed   = "Verify File Read: Passed for %s"
	msgReadFailed   = "Verify File Read: Failed for %s with error: %v"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNoHeader        = errors.New("file has no header row")
)

var delimiters = map[string]rune{
	CSV: ',',
	PSV: '|',
}

// extensions maps a file type to the substring its path must contain
var extensions = map[string]string{
	CSV:  "csv",
	PSV:  "psv",
	JSON: "json",
	XLSX: "xlsx",
}

// Options controls how a data file is checked and read
type Options struct {
	// CheckExtension requires the path to carry the extension of the file type
	CheckExtension bool
	// Sheet selects the Excel sheet; the first sheet when empty
	Sheet string
}

// DefaultOptions returns the reader defaults
func DefaultOptions() Options {
	return Options{CheckExtension: true}
}

// SupportedTypes returns the file types ValidateAndRead understands
func SupportedTypes() []string {
	return []string{CSV, PSV, JSON, XLSX}
}

// ValidateAndRead checks that path exists and matches fileType, then reads it
// whole. Every step appends a record to the returned stream. The dataset is
// nil whenever ok is false.
func ValidateAndRead(path, fileType string, opts Options) (bool, *records.Stream, *dataset.Dataset) {
	log := logging.Component("reader")
	stream := records.NewStream()
	fileType = strings.ToLower(strings.TrimSpace(fileType))

	if !fileExists(path) {
		msg := fmt.Sprintf(msgExistsFailed, path)
		log.Info().Str("file", path).Msg(msg)
		stream.Add(path, msg, false)
		return false, stream, nil
	}
	stream.Add(path, fmt.Sprintf(msgExistsPassed, path), true)

	if opts.CheckExtension {
		ext, known := extensions[fileType]
		if !known || !strings.Contains(path, ext) {
			msg := fmt.Sprintf(msgExtnFailed, fileType, path)
			log.Info().Str("file", path).Str("type", fileType).Msg(msg)
			stream.Add(path, msg, false)
			return false, stream, nil
		}
		stream.Add(path, fmt.Sprintf(msgExtnPassed, fileType, path), true)
	}

	ds, err := readFile(path, fileType, opts)
	if err != nil {
		msg := fmt.Sprintf(msgReadFailed, path, err)
		log.Error().Err(err).Str("file", path).Msg("failed to read file")
		stream.Add(path, msg, false)
		return false, stream, nil
	}

	log.Info().Str("file", path).Int("rows", ds.Len()).Int("columns", len(ds.Columns())).Msg("file read")
	stream.Add(path, fmt.Sprintf(msgReadPassed, path), true)
	return true, stream, ds
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func readFile(path, fileType string, opts Options) (*dataset.Dataset, error) {
	switch fileType {
	case CSV, PSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		return ReadDelimited(f, delimiters[fileType])
	case JSON:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return ReadJSON(data)
	case XLSX:
		return ReadExcel(path, opts.Sheet)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, fileType)
}

// ReadDelimited reads a delimited file whose first row is the header.
// Every cell is kept as a string.
func ReadDelimited(r io.Reader, delimiter rune) (*dataset.Dataset, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows [][]any
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows)+1, err)
		}
		row := make([]any, len(rec))
		for i, cell := range rec {
			row[i] = cell
		}
		rows = append(rows, row)
	}
	return dataset.New(header, rows), nil
}

// ReadJSON reads an array of objects. Columns are the union of object keys
// in first-seen order; missing keys become nil cells.
func ReadJSON(data []byte) (*dataset.Dataset, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoHeader
	}
	var objects []*orderedmap.OrderedMap[string, any]
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("failed to unmarshal records: %w", err)
	}

	var columns []string
	index := make(map[string]int)
	for _, obj := range objects {
		if obj == nil {
			continue
		}
		for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
			if _, ok := index[pair.Key]; !ok {
				index[pair.Key] = len(columns)
				columns = append(columns, pair.Key)
			}
		}
	}

	rows := make([][]any, 0, len(objects))
	for _, obj := range objects {
		row := make([]any, len(columns))
		if obj != nil {
			for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
				row[index[pair.Key]] = pair.Value
			}
		}
		rows = append(rows, row)
	}
	return dataset.New(columns, rows), nil
}

// ReadExcel reads one sheet of a workbook; the first row is the header
func ReadExcel(path, sheet string) (*dataset.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoHeader
		}
		sheet = sheets[0]
	}

	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(grid) == 0 {
		return nil, ErrNoHeader
	}

	rows := make([][]any, 0, len(grid)-1)
	for _, rec := range grid[1:] {
		row := make([]any, len(rec))
		for i, cell := range rec {
			row[i] = cell
		}
		rows = append(rows, row)
	}
	return dataset.New(grid[0], rows), nil
}
