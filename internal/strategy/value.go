package strategy

// ValueKind discriminates the shapes raw OS and tool output can take.
type ValueKind int

const (
	KindScalar ValueKind = iota
	KindString
	KindMap
	KindList
)

// Value is a small tagged union over the heterogeneous data strategies
// return: a scalar, a string, a nested map, or a list of maps (table rows).
// Collectors switch on Kind instead of doing runtime type assertions.
type Value struct {
	Kind   ValueKind
	Scalar float64
	Str    string
	Map    map[string]Value
	List   []map[string]Value
}

func Num(v float64) Value             { return Value{Kind: KindScalar, Scalar: v} }
func Str(s string) Value              { return Value{Kind: KindString, Str: s} }
func Table(m map[string]Value) Value  { return Value{Kind: KindMap, Map: m} }
func Rows(r []map[string]Value) Value { return Value{Kind: KindList, List: r} }

// Float returns the scalar value, false when the value is not a scalar.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindScalar {
		return 0, false
	}
	return v.Scalar, true
}

// Text returns the string value, false when the value is not a string.
func (v Value) Text() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}
