package domain

// PrimitiveType names a leaf value kind in a document schema.
type PrimitiveType string

const (
	TypeInt        PrimitiveType = "int"
	TypeNumber     PrimitiveType = "number"
	TypeString     PrimitiveType = "string"
	TypeLongString PrimitiveType = "longstring"
	TypeDate       PrimitiveType = "date"
)

// Node is a document schema tree node. The set of implementations is closed:
// Primitive, Object and Array.
type Node interface {
	isNode()
}

// Primitive is a scalar leaf.
type Primitive struct {
	Type PrimitiveType
}

// Field is a named child of an Object.
type Field struct {
	Name string
	Node Node
}

// Object is an ordered set of named fields.
type Object struct {
	Fields []Field
}

// Array holds AvgLen items of the same schema on average. AvgLen models the
// expected element count, not an actual collection.
type Array struct {
	Items  Node
	AvgLen int64
}

func (Primitive) isNode() {}
func (Object) isNode()    {}
func (Array) isNode()     {}

func Int() Primitive        { return Primitive{Type: TypeInt} }
func Number() Primitive     { return Primitive{Type: TypeNumber} }
func String() Primitive     { return Primitive{Type: TypeString} }
func LongString() Primitive { return Primitive{Type: TypeLongString} }
func Date() Primitive       { return Primitive{Type: TypeDate} }

// F builds a Field.
func F(name string, node Node) Field {
	return Field{Name: name, Node: node}
}

// Obj builds an Object from fields in declaration order.
func Obj(fields ...Field) Object {
	return Object{Fields: append([]Field(nil), fields...)}
}

// ArrayOf builds an Array of avgLen items on average.
func ArrayOf(items Node, avgLen int64) Array {
	return Array{Items: items, AvgLen: avgLen}
}

// With returns a copy of o with extra fields appended. The receiver is left untouched.
func (o Object) With(fields ...Field) Object {
	out := make([]Field, 0, len(o.Fields)+len(fields))
	out = append(out, o.Fields...)
	out = append(out, fields...)
	return Object{Fields: out}
}

// Field returns the child node named name.
func (o Object) Field(name string) (Node, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Node, true
		}
	}
	return nil, false
}

// FieldNames lists top-level field names in declaration order.
func (o Object) FieldNames() []string {
	names := make([]string, len(o.Fields))
	for i, f := range o.Fields {
		names[i] = f.Name
	}
	return names
}
