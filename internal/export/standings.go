// Package export renders the rider board as an .xlsx standings workbook.
package export

import (
	"fmt"
	"io"

	"github.com/couchcryptid/brevet-tracker/internal/dashboard"
	"github.com/couchcryptid/brevet-tracker/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Sheet is the name of the standings worksheet.
const Sheet = "Standings"

var headers = []string{
	"#", "Rider", "Name", "Status", "Last control", "Km", "Elapsed", "Avg km/h", "Rank", "Last seen",
}

type styles struct {
	header   int
	row      int
	dnf      int
	finished int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1c399e"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Font:      &excelize.Font{Size: 12, Color: "ffffff", Bold: true},
	}); err != nil {
		return s, err
	}
	if s.row, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, err
	}
	if s.dnf, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"f71e1e"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, err
	}
	if s.finished, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"3cb03a"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Font:      &excelize.Font{Bold: true},
	}); err != nil {
		return s, err
	}
	return s, nil
}

// Standings builds a workbook with one row per rider in board order.
func Standings(board dashboard.Board) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", Sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	st, err := newStyles(f)
	if err != nil {
		return nil, fmt.Errorf("create styles: %w", err)
	}

	for i, h := range headers {
		if err := setCell(f, i+1, 1, h, st.header); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(Sheet, "C", "C", 28); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(Sheet, "E", "E", 20); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	for i, r := range board.Riders {
		row := i + 2
		style := st.row
		switch r.Status {
		case domain.StatusDNF:
			style = st.dnf
		case domain.StatusFinished:
			style = st.finished
		}
		rank := "–"
		if r.Rank != nil {
			rank = fmt.Sprintf("%d/%d", r.Rank.Position, r.Rank.Total)
		}
		values := []any{
			i + 1,
			r.RiderNo,
			r.Name,
			string(r.Status),
			r.LastControl,
			r.DistanceKm,
			r.Elapsed,
			roundTenth(r.AverageSpeed),
			rank,
			r.LastSeen,
		}
		for col, v := range values {
			if err := setCell(f, col+1, row, v, style); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// WriteStandings writes the standings workbook to w.
func WriteStandings(w io.Writer, board dashboard.Board) error {
	f, err := Standings(board)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(Sheet, cell, value); err != nil {
		return fmt.Errorf("set %s: %w", cell, err)
	}
	return f.SetCellStyle(Sheet, cell, cell, style)
}

func roundTenth(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
