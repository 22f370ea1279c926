package domain

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Collection names.
const (
	CollProduct   = "Product"
	CollStock     = "Stock"
	CollWarehouse = "Warehouse"
	CollOrderLine = "OrderLine"
	CollClient    = "Client"
)

// Collection is one top-level collection of a layout.
type Collection struct {
	Name   string
	Schema Node
}

// Layout is one candidate database design: an ordered set of collections.
// It is read-only once built.
type Layout struct {
	Name        string
	Description string
	Notes       string
	collections []Collection
}

// NewLayout builds a layout and checks every schema tree can be sized, so a
// fixture defect surfaces at construction rather than mid-estimate.
func NewLayout(name, description, notes string, collections ...Collection) (*Layout, error) {
	seen := make(map[string]bool, len(collections))
	for _, c := range collections {
		if seen[c.Name] {
			return nil, fmt.Errorf("layout %s: duplicate collection %q", name, c.Name)
		}
		seen[c.Name] = true
		if _, err := SizeOf(c.Schema); err != nil {
			return nil, fmt.Errorf("layout %s: collection %s: %w", name, c.Name, err)
		}
	}
	return &Layout{
		Name:        name,
		Description: description,
		Notes:       notes,
		collections: append([]Collection(nil), collections...),
	}, nil
}

// Collections returns the collections in declaration order.
func (l *Layout) Collections() []Collection {
	return append([]Collection(nil), l.collections...)
}

// CollectionNames returns collection names in declaration order.
func (l *Layout) CollectionNames() []string {
	return lo.Map(l.collections, func(c Collection, _ int) string { return c.Name })
}

// Schema returns the schema of a collection.
func (l *Layout) Schema(name string) (Node, bool) {
	for _, c := range l.collections {
		if c.Name == name {
			return c.Schema, true
		}
	}
	return nil, false
}

// Has reports whether the layout keeps name as a top-level collection.
func (l *Layout) Has(name string) bool {
	_, ok := l.Schema(name)
	return ok
}

func (l *Layout) mustSchema(name string) (Node, error) {
	s, ok := l.Schema(name)
	if !ok {
		return nil, &MissingCollectionError{Layout: l.Name, Collection: name}
	}
	return s, nil
}

// --- entity schemas (normalized) ---

func PriceSchema() Object {
	return Obj(
		F("value", Number()),
		F("currency", String()),
		F("vat", Number()),
	)
}

func CategorySchema() Object {
	return Obj(F("title", String()))
}

func SupplierSchema() Object {
	return Obj(
		F("IDS", Int()),
		F("name", String()),
		F("SIRET", String()),
		F("headOffice", String()),
		F("revenue", Number()),
	)
}

func ProductCoreSchema() Object {
	return Obj(
		F("IDP", Int()),
		F("name", String()),
		F("price", PriceSchema()),
		F("brand", String()),
		F("description", LongString()),
		F("image_url", String()),
	)
}

func StockSchema() Object {
	return Obj(
		F("IDP", Int()),
		F("IDW", Int()),
		F("quantity", Int()),
		F("location", String()),
	)
}

func WarehouseSchema() Object {
	return Obj(
		F("IDW", Int()),
		F("address", String()),
		F("capacity", Int()),
	)
}

func OrderLineSchema() Object {
	return Obj(
		F("IDP", Int()),
		F("IDC", Int()),
		F("date", Date()),
		F("quantity", Int()),
		F("deliveryDate", Date()),
		F("comment", String()),
		F("grade", Int()),
	)
}

func ClientSchema() Object {
	return Obj(
		F("IDC", Int()),
		F("ln", String()),
		F("fn", String()),
		F("address", String()),
		F("nationality", String()),
		F("birthDate", Date()),
		F("email", String()),
	)
}

// ProductSchema is a product with its categories and supplier embedded, the
// base product document of every layout.
func ProductSchema(a Averages) Object {
	return ProductCoreSchema().With(
		F("categories", ArrayOf(CategorySchema(), a.CategoriesPerProduct)),
		F("supplier", SupplierSchema()),
	)
}

// --- layouts ---

// DB1: Prod{[Cat],Supp}, St, Wa, OL, Cl
func DB1(a Averages) (*Layout, error) {
	return NewLayout("DB1", "Prod{[Cat],Supp}, St, Wa, OL, Cl",
		"Joins still needed for Stock/OrderLine searches; Product hot, but Stock separate.",
		Collection{CollProduct, ProductSchema(a)},
		Collection{CollStock, StockSchema()},
		Collection{CollWarehouse, WarehouseSchema()},
		Collection{CollOrderLine, OrderLineSchema()},
		Collection{CollClient, ClientSchema()},
	)
}

// DB2: Prod{[Cat],Supp,[St]}, Wa, OL, Cl
func DB2(a Averages) (*Layout, error) {
	prod := ProductSchema(a).With(F("stocks", ArrayOf(StockSchema(), a.StocksPerProduct)))
	return NewLayout("DB2", "Prod{[Cat],Supp,[St]}, Wa, OL, Cl",
		fmt.Sprintf("Big Product docs (embedded %d Stock entries/product). Faster per-product stock reads; heavier writes.", a.StocksPerProduct),
		Collection{CollProduct, prod},
		Collection{CollWarehouse, WarehouseSchema()},
		Collection{CollOrderLine, OrderLineSchema()},
		Collection{CollClient, ClientSchema()},
	)
}

// DB3: St{Prod{[Cat],Supp}}, Wa, OL, Cl
func DB3(a Averages) (*Layout, error) {
	st := StockSchema().With(F("product", ProductSchema(a)))
	return NewLayout("DB3", "St{Prod{[Cat],Supp}}, Wa, OL, Cl",
		"Stock docs heavy (embedded Product). Great for stock-centric access; duplicates product across every stock doc.",
		Collection{CollStock, st},
		Collection{CollWarehouse, WarehouseSchema()},
		Collection{CollOrderLine, OrderLineSchema()},
		Collection{CollClient, ClientSchema()},
	)
}

// DB4: St, Wa, OL{Prod{[Cat],Supp}}, Cl
func DB4(a Averages) (*Layout, error) {
	ol := OrderLineSchema().With(F("product", ProductSchema(a)))
	return NewLayout("DB4", "St, Wa, OL{Prod{[Cat],Supp}}, Cl",
		"OrderLine embeds Product snapshot; speeds brand/date + OL joins, but duplicates Product across every order line.",
		Collection{CollStock, StockSchema()},
		Collection{CollWarehouse, WarehouseSchema()},
		Collection{CollOrderLine, ol},
		Collection{CollClient, ClientSchema()},
	)
}

// DB5: Prod{[Cat],Supp,[OL]}, St, Wa, Cl
func DB5(a Averages) (*Layout, error) {
	prod := ProductSchema(a).With(F("orderLines", ArrayOf(OrderLineSchema(), a.OrderLinesPerProduct)))
	return NewLayout("DB5", "Prod{[Cat],Supp,[OL]}, St, Wa, Cl",
		fmt.Sprintf("Product embeds ~%d OrderLines each (!); huge Product docs, painful updates; great for product-centric OL scans.", a.OrderLinesPerProduct),
		Collection{CollProduct, prod},
		Collection{CollStock, StockSchema()},
		Collection{CollWarehouse, WarehouseSchema()},
		Collection{CollClient, ClientSchema()},
	)
}

// AllLayouts builds DB1..DB5 in order.
func AllLayouts(a Averages) ([]*Layout, error) {
	builders := []func(Averages) (*Layout, error){DB1, DB2, DB3, DB4, DB5}
	layouts := make([]*Layout, 0, len(builders))
	for _, build := range builders {
		l, err := build(a)
		if err != nil {
			return nil, err
		}
		layouts = append(layouts, l)
	}
	return layouts, nil
}

// FindLayout looks a layout up by case-insensitive name.
func FindLayout(layouts []*Layout, name string) (*Layout, error) {
	l, ok := lo.Find(layouts, func(l *Layout) bool { return strings.EqualFold(l.Name, name) })
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
	}
	return l, nil
}
