package domain

import (
	"fmt"
	"math"

	"github.com/samber/lo"
)

// Byte widths of primitive values, plus the per key/value (or array wrapper)
// storage overhead.
const (
	IntBytes        = 8
	NumberBytes     = 8
	StringBytes     = 80
	DateBytes       = 20
	LongStringBytes = 200
	KVOverheadBytes = 12
)

var primitiveBytes = map[PrimitiveType]int64{
	TypeInt:        IntBytes,
	TypeNumber:     NumberBytes,
	TypeString:     StringBytes,
	TypeLongString: LongStringBytes,
	TypeDate:       DateBytes,
}

// SizeOf returns the average size in bytes of a document matching the schema.
// Arrays contribute their expected size (AvgLen items), not a worst case.
func SizeOf(n Node) (int64, error) {
	switch v := n.(type) {
	case Primitive:
		width, ok := primitiveBytes[v.Type]
		if !ok {
			return 0, fmt.Errorf("%w: primitive type %q", ErrUnknownNode, v.Type)
		}
		return KVOverheadBytes + width, nil
	case Object:
		var total int64
		for _, f := range v.Fields {
			sz, err := SizeOf(f.Node)
			if err != nil {
				return 0, fmt.Errorf("field %q: %w", f.Name, err)
			}
			total += sz
		}
		return total, nil
	case Array:
		if v.AvgLen < 0 {
			return 0, fmt.Errorf("%w: negative array length %d", ErrUnknownNode, v.AvgLen)
		}
		item, err := SizeOf(v.Items)
		if err != nil {
			return 0, fmt.Errorf("array items: %w", err)
		}
		return KVOverheadBytes + v.AvgLen*item, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnknownNode, n)
	}
}

// ProjectionSize approximates the size of a projected document by summing the
// requested top-level fields. Fields missing from the schema are ignored. When
// nothing matches, the full document size is returned.
func ProjectionSize(n Node, fields []string) (int64, error) {
	obj, ok := n.(Object)
	if !ok {
		return SizeOf(n)
	}
	var total int64
	for _, name := range fields {
		sub, ok := obj.Field(name)
		if !ok {
			continue
		}
		sz, err := SizeOf(sub)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", name, err)
		}
		total += sz
	}
	if total > 0 {
		return total, nil
	}
	return SizeOf(obj)
}

// CollectionSize is the sizing result for one collection of a layout.
type CollectionSize struct {
	Name       string `json:"name"`
	DocBytes   int64  `json:"doc_bytes"`
	Docs       int64  `json:"docs"`
	TotalBytes int64  `json:"total_bytes"`
}

// LayoutSize is the sizing result for a whole layout.
type LayoutSize struct {
	Layout      string           `json:"layout"`
	Description string           `json:"description,omitempty"`
	Collections []CollectionSize `json:"collections"`
	TotalBytes  int64            `json:"total_bytes"`
}

// SizeLayout computes document, collection and database sizes for a layout.
func SizeLayout(layout *Layout, stats Statistics) (LayoutSize, error) {
	out := LayoutSize{Layout: layout.Name, Description: layout.Description}
	for _, c := range layout.Collections() {
		doc, err := SizeOf(c.Schema)
		if err != nil {
			return LayoutSize{}, fmt.Errorf("sizing %s.%s: %w", layout.Name, c.Name, err)
		}
		docs := CollectionCardinality(c.Name, stats)
		out.Collections = append(out.Collections, CollectionSize{
			Name:       c.Name,
			DocBytes:   doc,
			Docs:       docs,
			TotalBytes: doc * docs,
		})
	}
	out.TotalBytes = lo.SumBy(out.Collections, func(c CollectionSize) int64 { return c.TotalBytes })
	return out, nil
}

// GiB converts bytes to gibibytes rounded to three decimals.
func GiB(b float64) float64 {
	return math.Round(b/bytesPerGiB*1000) / 1000
}

const bytesPerGiB = 1024 * 1024 * 1024
