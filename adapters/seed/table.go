package seed

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"compbench/domain/composition"
	"compbench/internal"
	"compbench/internal/errors"
	"compbench/ports"

	"github.com/xuri/excelize/v2"
)

// TableSource reads an observed count table from an .xlsx or .csv file. The first
// row holds sample names; each following row is one cell type, its label in the
// first column and one count per sample after it.
type TableSource struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	logger   *internal.Logger
}

// NewTableSource creates a source for filePath; sheet is ignored for CSV files
func NewTableSource(filePath, sheet string, logger *internal.Logger) *TableSource {
	fileType := "xlsx"
	if strings.EqualFold(filepath.Ext(filePath), ".csv") {
		fileType = "csv"
	}
	if sheet == "" {
		sheet = "Sheet1"
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &TableSource{filePath: filePath, fileType: fileType, sheet: sheet, logger: logger}
}

// Observed reads the count matrix
func (s *TableSource) Observed(ctx context.Context) (*composition.CountMatrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.filePath); err != nil {
		return nil, errors.IOError(s.filePath, err)
	}

	var rows [][]string
	var err error
	switch s.fileType {
	case "csv":
		rows, err = s.readCSV()
	default:
		rows, err = s.readExcel()
	}
	if err != nil {
		return nil, errors.IOError(s.filePath, err)
	}

	m, err := parseCountRows(rows)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", s.filePath)
	}
	k, j := m.Dims()
	s.logger.Debug("count table loaded", "file", s.filePath, "cell_types", k, "samples", j)
	return m, nil
}

// Proportions returns the mean column-normalised composition of the table
func (s *TableSource) Proportions(ctx context.Context) (composition.Proportions, error) {
	m, err := s.Observed(ctx)
	if err != nil {
		return nil, err
	}
	return MeanProportions(m)
}

func (s *TableSource) readExcel() ([][]string, error) {
	f, err := excelize.OpenFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.sheet, err)
	}
	return rows, nil
}

func (s *TableSource) readCSV() ([][]string, error) {
	file, err := os.Open(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// parseCountRows converts a header row plus labelled count rows into a matrix
func parseCountRows(rows [][]string) (*composition.CountMatrix, error) {
	if len(rows) < 2 {
		return nil, errors.InvalidInput("table must have a header row and at least one cell type")
	}
	samples := len(rows[0]) - 1
	if samples < 1 {
		return nil, errors.InvalidInput("header row names no samples")
	}

	labels := make([]string, 0, len(rows)-1)
	data := make([][]float64, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		values := make([]float64, samples)
		for j := 0; j < samples; j++ {
			cell := ""
			if j+1 < len(row) {
				cell = strings.TrimSpace(row[j+1])
			}
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || v < 0 {
				return nil, errors.InvalidInput(fmt.Sprintf("row %d column %d: %q is not a count", i+2, j+2, cell))
			}
			values[j] = v
		}
		labels = append(labels, strings.TrimSpace(row[0]))
		data = append(data, values)
	}
	if len(data) == 0 {
		return nil, errors.InvalidInput("table has no cell type rows")
	}

	m, err := composition.CountMatrixFromRows(data)
	if err != nil {
		return nil, err
	}
	for i, label := range labels {
		if label != "" {
			m.Labels[i] = label
		}
	}
	return m, nil
}

// MeanProportions averages the column-normalised proportions over samples with a
// positive total and renormalises the result.
func MeanProportions(m *composition.CountMatrix) (composition.Proportions, error) {
	k, j := m.Dims()
	sums := m.ColSums()
	props := make(composition.Proportions, k)
	used := 0
	for c := 0; c < j; c++ {
		if sums[c] <= 0 {
			continue
		}
		used++
		for r := 0; r < k; r++ {
			props[r] += m.At(r, c) / sums[c]
		}
	}
	if used == 0 {
		return nil, errors.InvalidInput("every sample has a zero total")
	}
	props = props.Normalize()
	if err := props.Validate(); err != nil {
		return nil, err
	}
	return props, nil
}

var _ ports.ProportionSource = (*TableSource)(nil)
