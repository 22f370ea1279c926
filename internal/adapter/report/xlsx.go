package report

import (
	"fmt"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
	"github.com/xuri/excelize/v2"
)

const (
	sheetSizes       = "Sizes"
	sheetSharding    = "Sharding"
	sheetWorkload    = "Workload"
	sheetAssumptions = "Assumptions"
)

// sheet is a header row plus data rows.
type sheet struct {
	name   string
	header []any
	rows   [][]any
}

// WriteXLSX saves the size, sharding, workload and assumption sections of r to
// a workbook at path, one sheet per non-empty section.
func WriteXLSX(path string, r Report) error {
	sheets := workbookSheets(r)
	if len(sheets) == 0 {
		return fmt.Errorf("writing workbook: report has no tabular sections")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, s := range sheets {
		if i == 0 {
			// Reuse the default sheet so the workbook has no empty tab.
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				return fmt.Errorf("naming sheet %s: %w", s.name, err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s sheet) error {
	for i, row := range append([][]any{s.header}, s.rows...) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return fmt.Errorf("writing sheet %s row %d: %w", s.name, i+1, err)
		}
	}
	return nil
}

func workbookSheets(r Report) []sheet {
	var out []sheet

	if len(r.Sizes) > 0 {
		s := sheet{
			name:   sheetSizes,
			header: []any{"Layout", "Collection", "Doc bytes", "Documents", "Total bytes", "GiB"},
		}
		for _, l := range r.Sizes {
			for _, c := range l.Collections {
				s.rows = append(s.rows, []any{l.Layout, c.Name, c.DocBytes, c.Docs, c.TotalBytes, domain.GiB(float64(c.TotalBytes))})
			}
			s.rows = append(s.rows, []any{l.Layout, "TOTAL", nil, nil, l.TotalBytes, domain.GiB(float64(l.TotalBytes))})
		}
		out = append(out, s)
	}

	if len(r.Sharding) > 0 {
		s := sheet{
			name:   sheetSharding,
			header: []any{"Strategy", "Collection", "Key", "Docs per server", "Key values per server", "Spread"},
		}
		for _, sr := range r.Sharding {
			s.rows = append(s.rows, []any{sr.Strategy, sr.Collection, sr.Key, sr.DocsPerServer, sr.DistinctValuesPerServer, string(sr.KeyClass)})
		}
		out = append(out, s)
	}

	if r.Workload != nil && len(r.Workload.Results) > 0 {
		s := sheet{
			name: sheetWorkload,
			header: []any{"Query", "Layout", "Sharded", "Shard aware", "Indexed", "Operator", "Output docs",
				"Output bytes", "Scanned bytes", "Shards", "Time (s)", "Carbon (kg)", "Price", "Note"},
		}
		for _, res := range r.Workload.Results {
			row := []any{res.QueryID, res.Layout, res.Posture.Sharded, res.Posture.ShardAware, res.Posture.Indexed}
			if c := res.Cost; c != nil {
				row = append(row, c.Name, c.OutputDocs, c.OutputSizeBytes, c.ScannedBytes, c.ShardsTouched,
					c.TimeS, c.CarbonKg, c.PriceUSD, "")
			} else {
				row = append(row, nil, nil, nil, nil, nil, nil, nil, nil, res.NotApplicable)
			}
			s.rows = append(s.rows, row)
		}
		out = append(out, s)
	}

	if a := r.Assumptions; a != nil {
		s := sheet{
			name:   sheetAssumptions,
			header: []any{"Table", "Key", "Rule", "Value"},
		}
		for _, sel := range a.Selectivities {
			s.rows = append(s.rows, []any{"selectivity", sel.Key, sel.Description, sel.Value})
		}
		for _, m := range a.Multiplicities {
			key := fmt.Sprintf("%s -> %s on %s", m.Outer, m.Inner, m.Key)
			s.rows = append(s.rows, []any{"multiplicity", key, m.Description, m.Matches})
		}
		for _, g := range a.Groups {
			key := fmt.Sprintf("%s by %s where %s", g.Collection, g.GroupKeys, g.FilterKey)
			s.rows = append(s.rows, []any{"groups", key, g.Description, g.Groups})
		}
		out = append(out, s)
	}

	return out
}
