package xlsx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/synthexa/catalogmatch/internal/core/domain"
	"github.com/synthexa/catalogmatch/internal/core/ports"
)

const sheetName = "Produtos"

var headers = []string{"codigo", "descricao", "id", "grupo"}

// Snapshot caches the catalog on disk as a spreadsheet, the exchange
// format the purchasing team already works with. Reads are served from
// the file while it is fresh; a stale or missing file triggers a pull
// from the upstream reader and a best-effort rewrite.
type Snapshot struct {
	path     string
	maxAge   time.Duration
	upstream ports.CatalogReader
	logger   *slog.Logger
}

func NewSnapshot(path string, maxAge time.Duration, upstream ports.CatalogReader, logger *slog.Logger) *Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Snapshot{path: path, maxAge: maxAge, upstream: upstream, logger: logger}
}

// ListProducts implements ports.CatalogReader.
func (s *Snapshot) ListProducts(ctx context.Context) ([]domain.CatalogProduct, error) {
	if s.fresh() {
		products, err := Load(s.path)
		if err == nil {
			s.logger.Info("catalog snapshot loaded", "path", s.path, "products", len(products))
			return products, nil
		}
		s.logger.Warn("catalog snapshot unreadable, pulling from upstream", "path", s.path, "error", err)
	}

	if s.upstream == nil {
		return nil, fmt.Errorf("catalog snapshot %s missing and no upstream configured", s.path)
	}
	products, err := s.upstream.ListProducts(ctx)
	if err != nil {
		// A stale snapshot beats no catalog at all.
		if stale, loadErr := Load(s.path); loadErr == nil && len(stale) > 0 {
			s.logger.Warn("upstream unavailable, serving stale snapshot", "path", s.path, "error", err)
			return stale, nil
		}
		return nil, err
	}

	if err := Save(s.path, products); err != nil {
		s.logger.Warn("catalog snapshot write failed", "path", s.path, "error", err)
	}
	return products, nil
}

func (s *Snapshot) fresh() bool {
	info, err := os.Stat(s.path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) <= s.maxAge
}

// Save writes the product list as a single-sheet workbook with a
// header row.
func Save(path string, products []domain.CatalogProduct) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("write header %s: %w", header, err)
		}
	}
	for row, p := range products {
		values := []any{p.Code, p.Description, p.InternalID, p.GroupID}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row+2, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot produced by Save. Rows with an empty code or
// description are skipped.
func Load(path string) ([]domain.CatalogProduct, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("snapshot %s is empty", path)
	}

	var products []domain.CatalogProduct
	for _, row := range rows[1:] {
		p, ok := parseRow(row)
		if !ok {
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func parseRow(row []string) (domain.CatalogProduct, bool) {
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	p := domain.CatalogProduct{
		Code:        get(0),
		Description: get(1),
	}
	if p.Code == "" || p.Description == "" {
		return domain.CatalogProduct{}, false
	}
	if id, err := strconv.Atoi(get(2)); err == nil {
		p.InternalID = id
	}
	if group, err := strconv.Atoi(get(3)); err == nil {
		p.GroupID = group
	}
	return p, true
}
