package Importer

import (
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/360EntSecGroup-Skylar/excelize"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, expected .csv or .xlsx")
	ErrEmptyFile         = errors.New("file has no rows")
)

// ReadRows returns every row of a CSV file or of the first sheet of an XLSX
// workbook, picking the format from the file name.
func ReadRows(filename string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return readCSV(r)
	case ".xlsx":
		return readXLSX(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	// Strip a UTF-8 BOM written by spreadsheet exports.
	rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	sheets := file.GetSheetMap()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	indexes := make([]int, 0, len(sheets))
	for index := range sheets {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	rows := file.GetRows(sheets[indexes[0]])
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}
