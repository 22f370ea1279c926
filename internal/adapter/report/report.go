package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/domain"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/port"
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/core/service"
)

// Format selects how a Report is written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat accepts "text" or "json", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w %q: must be \"text\" or \"json\"", ErrUnknownFormat, s)
	}
}

// Report gathers the sections a command produced. Empty sections are skipped
// by every writer.
type Report struct {
	Sizes       []domain.LayoutSize     `json:"sizes,omitempty"`
	Sharding    []domain.ShardReport    `json:"sharding,omitempty"`
	Queries     []domain.QuerySpec      `json:"queries,omitempty"`
	Workload    *service.WorkloadReport `json:"workload,omitempty"`
	Estimate    *service.QueryResult    `json:"estimate,omitempty"`
	Assumptions *service.Assumptions    `json:"assumptions,omitempty"`
	History     []port.HistoryRecord    `json:"history,omitempty"`
}

// Write renders r to w in the given format.
func Write(w io.Writer, format Format, r Report) error {
	switch format {
	case FormatText:
		return WriteText(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

// WriteJSON writes r as one indented JSON document.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// postureLabel is the short form used in tables: "single", "sharded" or
// "sharded, aware", with "+idx" when an index is assumed.
func postureLabel(p domain.Posture) string {
	label := "single"
	if p.Sharded {
		label = "sharded"
		if p.ShardAware {
			label += ", aware"
		}
	}
	if p.Indexed {
		label += " +idx"
	}
	return label
}
