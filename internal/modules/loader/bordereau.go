package loader

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/aristath/cession/internal/domain"
	"github.com/aristath/cession/internal/modules/application"
)

// Reserved bordereau columns, matched case-insensitively. Every other column
// is a policy dimension keyed by its header as written.
const (
	ColumnPolicyID  = "policy_id"
	ColumnExposure  = "exposure"
	ColumnInception = "inception_date"
	ColumnExpiry    = "expiry_date"
	ColumnCurrency  = "currency"
)

// LoadBordereau reads the first sheet of an .xlsx bordereau
func LoadBordereau(path string) (domain.Bordereau, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return parseBordereau(f)
}

// ReadBordereau reads the first sheet of an .xlsx bordereau from r
func ReadBordereau(r io.Reader) (domain.Bordereau, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open bordereau: %w", err)
	}
	defer f.Close()
	return parseBordereau(f)
}

type columnIndex struct {
	policyID, exposure, inception, expiry, currency int
	dimensions                                      map[string]int
}

func buildColumnIndex(headers []string) (columnIndex, error) {
	idx := columnIndex{policyID: -1, exposure: -1, inception: -1, expiry: -1, currency: -1, dimensions: map[string]int{}}
	for i, h := range headers {
		name := strings.TrimSpace(h)
		switch {
		case name == "":
			continue
		case strings.EqualFold(name, ColumnPolicyID):
			idx.policyID = i
		case strings.EqualFold(name, ColumnExposure):
			idx.exposure = i
		case strings.EqualFold(name, ColumnInception):
			idx.inception = i
		case strings.EqualFold(name, ColumnExpiry):
			idx.expiry = i
		case strings.EqualFold(name, ColumnCurrency):
			idx.currency = i
		default:
			idx.dimensions[name] = i
		}
	}
	for column, i := range map[string]int{ColumnPolicyID: idx.policyID, ColumnExposure: idx.exposure, ColumnInception: idx.inception} {
		if i < 0 {
			return idx, fmt.Errorf("missing required column %q", column)
		}
	}
	return idx, nil
}

func parseBordereau(f *excelize.File) (domain.Bordereau, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("sheet %s has no header row", sheet)
	}

	index, err := buildColumnIndex(rows[0])
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheet, err)
	}

	bordereau := make(domain.Bordereau, 0, len(rows)-1)
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		if isBlank(row) {
			continue
		}

		policy, err := parseRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("sheet %s, row %d: %w", sheet, rowIdx+1, err)
		}
		bordereau = append(bordereau, policy)
	}
	return bordereau, nil
}

func parseRow(row []string, index columnIndex) (domain.Policy, error) {
	policy := domain.Policy{
		ID:         cell(row, index.policyID),
		Currency:   cell(row, index.currency),
		Dimensions: make(map[string]string, len(index.dimensions)),
	}
	if policy.ID == "" {
		return policy, fmt.Errorf("empty %s", ColumnPolicyID)
	}

	exposure, err := parseAmount(cell(row, index.exposure))
	if err != nil {
		return policy, fmt.Errorf("%s: %w", ColumnExposure, err)
	}
	policy.Exposure = exposure

	if policy.Inception, err = parseCellDate(cell(row, index.inception)); err != nil {
		return policy, fmt.Errorf("%s: %w", ColumnInception, err)
	}
	if policy.Expiry, err = parseCellDate(cell(row, index.expiry)); err != nil {
		return policy, fmt.Errorf("%s: %w", ColumnExpiry, err)
	}

	for name, i := range index.dimensions {
		if v := cell(row, i); v != "" {
			policy.Dimensions[name] = v
		}
	}
	return policy, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseAmount(s string) (float64, error) {
	cleaned := strings.NewReplacer(",", "", " ", "", "_", "").Replace(s)
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// parseCellDate accepts ISO text cells, day-first text cells and Excel date
// serials (raw values of date-formatted cells)
func parseCellDate(s string) (domain.Date, error) {
	if s == "" {
		return domain.Date{}, nil
	}
	if d, err := domain.ParseDate(s); err == nil {
		return d, nil
	}
	if t, err := time.Parse("02/01/2006", s); err == nil {
		return domain.DateOf(t), nil
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.Date{}, fmt.Errorf("invalid date %q", s)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return domain.Date{}, fmt.Errorf("invalid date serial %q: %w", s, err)
	}
	return domain.DateOf(t), nil
}

// augmentedColumns are appended after the policy columns on export
var augmentedColumns = []string{"ceded_to_layer_100pct", "ceded_to_reinsurer", "retained_by_cedant"}

// WriteAugmentedBordereau writes rows with their computed cession to an
// .xlsx workbook. dimensions fixes the dimension column order.
func WriteAugmentedBordereau(w io.Writer, rows []application.AugmentedRow, dimensions []string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	header := []interface{}{ColumnPolicyID, ColumnExposure, ColumnInception, ColumnExpiry, ColumnCurrency}
	for _, d := range dimensions {
		header = append(header, d)
	}
	for _, c := range augmentedColumns {
		header = append(header, c)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rows {
		values := []interface{}{r.ID, r.Exposure, r.Inception.String(), r.Expiry.String(), r.Currency}
		for _, d := range dimensions {
			values = append(values, r.Dimensions[d])
		}
		values = append(values, r.CededToLayer100Pct, r.CededToReinsurer, r.RetainedByCedant)

		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, start, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
