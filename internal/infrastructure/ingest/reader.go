// Package ingest turns uploaded files into raw tables. It knows file formats
// and nothing about grading: every cell comes out as a string and all
// validation happens in student.Validate.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/aula-hub/gradebook/internal/domain/shared"
	"github.com/aula-hub/gradebook/internal/domain/student"
)

// Format is a supported input file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

// DefaultMaxBytes caps the size of an uploaded file.
const DefaultMaxBytes = 10 << 20

// DetectFormat picks the format from a file name.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%q: %w", filename, shared.ErrUnsupportedFormat)
}

// Read parses r according to the extension of filename.
func Read(r io.Reader, filename string) (student.RawTable, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return student.RawTable{}, err
	}
	switch format {
	case FormatXLSX:
		return ReadXLSX(r)
	case FormatTSV:
		return ReadCSV(r, '\t')
	default:
		return ReadCSV(r, 0)
	}
}

// ReadCSV parses delimited text. A zero delimiter is sniffed from the header
// line among comma, semicolon and tab.
func ReadCSV(r io.Reader, delimiter rune) (student.RawTable, error) {
	br := bufio.NewReader(r)
	if delimiter == 0 {
		head, err := br.Peek(4096)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return student.RawTable{}, fmt.Errorf("read csv: %w", err)
		}
		delimiter = sniffDelimiter(head)
	}

	cr := csv.NewReader(br)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return student.RawTable{}, fmt.Errorf("read csv: %w: %v", shared.ErrInvalidFormat, err)
	}
	return toTable(rows)
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(r io.Reader) (student.RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return student.RawTable{}, fmt.Errorf("open xlsx: %w: %v", shared.ErrInvalidFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return student.RawTable{}, shared.ErrEmptyDataset
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return student.RawTable{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return toTable(rows)
}

func toTable(rows [][]string) (student.RawTable, error) {
	// leading blank lines before the header are common in exported sheets
	for len(rows) > 0 && blank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return student.RawTable{}, shared.ErrEmptyDataset
	}
	return student.RawTable{Header: rows[0], Rows: rows[1:]}, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter counts candidate delimiters outside quotes on the first line.
func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	counts := map[rune]int{}
	inQuotes := false
	for _, c := range string(head) {
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case inQuotes:
		case c == ',' || c == ';' || c == '\t':
			counts[c]++
		}
	}

	best, bestCount := ',', 0
	for _, c := range []rune{',', ';', '\t'} {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}
