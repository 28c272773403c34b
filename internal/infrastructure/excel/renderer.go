package excel

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"medwatch/internal/domain"
	"medwatch/internal/ports"
)

const sheetName = "News"

var headers = []string{"Title", "Date", "Source", "Region", "Keywords", "URL", "Summary"}

// Renderer writes the daily report workbook into the workspace directory.
type Renderer struct {
	workspace string
}

var _ ports.ReportRenderer = (*Renderer)(nil)

// NewRenderer points the renderer at the report output directory.
func NewRenderer(workspace string) *Renderer {
	return &Renderer{workspace: workspace}
}

// Render writes one row per article and returns the workbook path,
// named news_summary_<YYYYMMDD>.xlsx.
func (r *Renderer) Render(articles []domain.Article, day time.Time) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("new sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("drop default sheet: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return "", fmt.Errorf("write header %s: %w", header, err)
		}
	}

	for i, article := range articles {
		row := []any{
			article.Title,
			article.PublishDate,
			article.Source,
			article.Region,
			strings.Join(article.Keywords, ", "),
			article.URL,
			article.Summary,
		}
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return "", fmt.Errorf("row cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return "", fmt.Errorf("write row %d: %w", i+1, err)
			}
		}
	}

	path := filepath.Join(r.workspace, fmt.Sprintf("news_summary_%s.xlsx", day.Format("20060102")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}
