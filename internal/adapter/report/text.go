package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/port"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/service"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
)

const notApplicableCell = "-"

// textWriter keeps the first write error so sections can be emitted without
// checking every call.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) section(title string) {
	if t.err != nil {
		return
	}
	_, t.err = color.New(color.FgCyan, color.Bold).Fprintf(t.w, "\n%s\n", title)
}

func (t *textWriter) table(table *uitable.Table) {
	t.printf("%s\n", table)
}

func newTable(headers ...any) *uitable.Table {
	headerfmt := color.New(color.FgGreen, color.Underline).SprintFunc()
	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = headerfmt(h)
	}
	table.AddRow(cells...)
	return table
}

// WriteText writes r as colored, aligned tables.
func WriteText(w io.Writer, r Report) error {
	t := &textWriter{w: w}
	if len(r.Sizes) > 0 {
		writeSizes(t, r.Sizes)
	}
	if len(r.Sharding) > 0 {
		writeSharding(t, r.Sharding)
	}
	if len(r.Queries) > 0 {
		writeQueries(t, r.Queries)
	}
	if r.Workload != nil {
		t.section(fmt.Sprintf("Workload (run %s)", r.Workload.RunID))
		writeResults(t, r.Workload.Results)
	}
	if r.Estimate != nil {
		t.section("Estimate")
		writeResults(t, []service.QueryResult{*r.Estimate})
	}
	if r.Assumptions != nil {
		writeAssumptions(t, r.Assumptions)
	}
	if len(r.History) > 0 {
		writeHistory(t, r.History)
	}
	return t.err
}

func writeSizes(t *textWriter, sizes []domain.LayoutSize) {
	for _, l := range sizes {
		t.section(fmt.Sprintf("%s  %s", l.Layout, l.Description))
		table := newTable("COLLECTION", "DOC SIZE", "DOCUMENTS", "COLLECTION SIZE", "GiB")
		for _, c := range l.Collections {
			table.AddRow(c.Name,
				humanize.Comma(c.DocBytes)+" B",
				humanize.Comma(c.Docs),
				humanize.IBytes(uint64(c.TotalBytes)),
				strconv.FormatFloat(domain.GiB(float64(c.TotalBytes)), 'f', 3, 64),
			)
		}
		table.AddRow("TOTAL", "", "",
			humanize.IBytes(uint64(l.TotalBytes)),
			strconv.FormatFloat(domain.GiB(float64(l.TotalBytes)), 'f', 3, 64),
		)
		t.table(table)
	}
}

func writeSharding(t *textWriter, reports []domain.ShardReport) {
	t.section("Sharding strategies")
	table := newTable("STRATEGY", "COLLECTION", "KEY", "DOCS / SERVER", "KEY VALUES / SERVER", "SPREAD")
	for _, r := range reports {
		table.AddRow(r.Strategy, r.Collection, r.Key,
			humanize.CommafWithDigits(r.DocsPerServer, 2),
			humanize.CommafWithDigits(r.DistinctValuesPerServer, 2),
			string(r.KeyClass),
		)
	}
	t.table(table)
}

func writeQueries(t *textWriter, queries []domain.QuerySpec) {
	t.section("Workload queries")
	table := newTable("ID", "TITLE", "SQL", "INDEXED", "SHARD KEY")
	for _, q := range queries {
		table.AddRow(q.ID, q.Title, q.SQL, q.Indexed, q.ShardAware)
	}
	t.table(table)
}

func writeResults(t *textWriter, results []service.QueryResult) {
	table := newTable("QUERY", "LAYOUT", "POSTURE", "OPERATOR", "OUT DOCS", "OUT SIZE",
		"SCANNED", "SHARDS", "TIME (s)", "CO2 (kg)", "PRICE")
	for _, r := range results {
		if r.Cost == nil {
			table.AddRow(r.QueryID, r.Layout, postureLabel(r.Posture), r.NotApplicable,
				notApplicableCell, notApplicableCell, notApplicableCell, notApplicableCell,
				notApplicableCell, notApplicableCell, notApplicableCell)
			continue
		}
		c := r.Cost
		table.AddRow(r.QueryID, r.Layout, postureLabel(r.Posture), c.Name,
			humanize.CommafWithDigits(c.OutputDocs, 2),
			formatBytes(c.OutputSizeBytes),
			formatBytes(c.ScannedBytes),
			humanize.Comma(c.ShardsTouched),
			strconv.FormatFloat(c.TimeS, 'g', 6, 64),
			strconv.FormatFloat(c.CarbonKg, 'g', 4, 64),
			"$"+strconv.FormatFloat(c.PriceUSD, 'g', 4, 64),
		)
	}
	t.table(table)
}

func writeAssumptions(t *textWriter, a *service.Assumptions) {
	t.section("Dataset and cluster")
	table := newTable("PARAMETER", "VALUE")
	s := a.Statistics
	table.AddRow("clients", humanize.Comma(s.Clients))
	table.AddRow("products", humanize.Comma(s.Products))
	table.AddRow("order lines", humanize.Comma(s.OrderLines))
	table.AddRow("warehouses", humanize.Comma(s.Warehouses))
	table.AddRow("brands", humanize.Comma(s.Brands))
	table.AddRow("apple products", humanize.Comma(s.AppleProducts))
	table.AddRow("products per client", humanize.Comma(s.AvgProductsPerClient))
	table.AddRow("servers", humanize.Comma(a.Infra.Servers))
	table.AddRow("read bandwidth", humanize.IBytes(uint64(a.Rates.ReadBandwidthBps))+"/s")
	table.AddRow("shard latency (s)", a.Rates.ShardLatencyS)
	table.AddRow("carbon per GiB (kg)", a.Rates.CarbonKgPerGiB)
	table.AddRow("price per GiB", a.Rates.PriceUSDPerGiB)
	t.table(table)

	t.section(fmt.Sprintf("Selectivity (default %g)", a.DefaultSelectivity))
	table = newTable("KEY", "RULE", "VALUE")
	for _, r := range a.Selectivities {
		table.AddRow(r.Key, r.Description, strconv.FormatFloat(r.Value, 'g', 6, 64))
	}
	t.table(table)

	t.section(fmt.Sprintf("Join fan-out (default %d)", a.DefaultMultiplicity))
	table = newTable("OUTER", "INNER", "KEY", "RULE", "MATCHES")
	for _, m := range a.Multiplicities {
		table.AddRow(m.Outer, m.Inner, m.Key, m.Description, humanize.Comma(m.Matches))
	}
	t.table(table)

	t.section("Distinct groups")
	table = newTable("COLLECTION", "GROUP BY", "FILTER", "RULE", "GROUPS")
	for _, g := range a.Groups {
		table.AddRow(g.Collection, g.GroupKeys, g.FilterKey, g.Description, humanize.CommafWithDigits(g.Groups, 2))
	}
	t.table(table)
}

func writeHistory(t *textWriter, records []port.HistoryRecord) {
	t.section("Run history")
	table := newTable("RECORDED", "RUN", "TOOL", "QUERY", "LAYOUT", "SHARDED", "OPERATOR", "SCANNED", "TIME (s)", "NOTE")
	for _, r := range records {
		operator, scanned, timeS := r.Operator, formatBytes(r.ScannedBytes), strconv.FormatFloat(r.TimeS, 'g', 6, 64)
		note := r.Error
		if r.NotApplicable != "" {
			operator, scanned, timeS = notApplicableCell, notApplicableCell, notApplicableCell
			note = r.NotApplicable
		}
		table.AddRow(humanize.Time(r.RecordedAt), r.RunID, r.Tool, r.QueryID, r.Layout, r.Sharded,
			operator, scanned, timeS, note)
	}
	t.table(table)
}

// formatBytes renders fractional byte estimates in IEC units.
func formatBytes(b float64) string {
	if b <= 0 || math.IsNaN(b) {
		return "0 B"
	}
	return humanize.IBytes(uint64(math.Round(b)))
}
