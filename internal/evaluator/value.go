package evaluator

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Kind identifies the JavaScript type a Value was converted from.
type Kind string

const (
	KindUndefined Kind = "undefined"
	KindNull      Kind = "null"
	KindBoolean   Kind = "boolean"
	KindNumber    Kind = "number"
	KindBigInt    Kind = "bigint"
	KindString    Kind = "string"
	KindSymbol    Kind = "symbol"
	KindArray     Kind = "array"
	KindObject    Kind = "object"
	KindError     Kind = "error"
	KindDate      Kind = "date"
	KindRegExp    Kind = "regexp"
	KindMap       Kind = "map"
	KindSet       Kind = "set"
	KindFunction  Kind = "function"
	KindCycle     Kind = "cycle"
)

// Value is a runtime-independent snapshot of a JavaScript value.
//
// Values produced by different runtimes (or received over the isolation wire)
// can be compared with Equal. The encoding is structural:
//   - primitives keep their canonical text in Text (numbers use Go's shortest
//     'g' formatting, so NaN equals NaN and -0 differs from 0)
//   - objects and errors keep their own enumerable fields sorted by key
//   - arrays keep elements in Items; maps keep [key, value] pairs in Items
//   - a reference back to an ancestor becomes KindCycle with the distance in Depth
//   - symbols compare by identity: ID numbers them within the scope that
//     produced them
type Value struct {
	Kind   Kind    `json:"kind"`
	Name   string  `json:"name,omitempty"`
	Text   string  `json:"text,omitempty"`
	Items  []Value `json:"items,omitempty"`
	Fields []Field `json:"fields,omitempty"`
	Depth  int     `json:"depth,omitempty"`
	ID     uint64  `json:"id,omitempty"`
}

// Field is one named property of an object or error Value.
type Field struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

var equalOpts = []cmp.Option{cmpopts.EquateEmpty()}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Value) bool {
	return cmp.Equal(a, b, equalOpts...)
}

// Diff returns a human readable diff between want and got, or "" if equal.
func Diff(want, got Value) string {
	return cmp.Diff(want, got, equalOpts...)
}

// Undefined returns the undefined Value.
func Undefined() Value {
	return Value{Kind: KindUndefined}
}

// Number returns a number Value.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// String returns a string Value.
func String(s string) Value {
	return Value{Kind: KindString, Text: s}
}

// Boolean returns a boolean Value.
func Boolean(b bool) Value {
	return Value{Kind: KindBoolean, Text: strconv.FormatBool(b)}
}

// Error returns an error Value with the given constructor name and message.
func Error(name, message string) Value {
	return Value{Kind: KindError, Name: name, Text: message}
}

// String renders the value the way a JavaScript console would, roughly.
func (v Value) String() string {
	var b strings.Builder
	v.write(&b)
	return b.String()
}

func (v Value) write(b *strings.Builder) {
	switch v.Kind {
	case KindUndefined, KindNull:
		b.WriteString(string(v.Kind))
	case KindBoolean, KindNumber, KindSymbol, KindRegExp:
		b.WriteString(v.Text)
	case KindBigInt:
		b.WriteString(v.Text)
		b.WriteByte('n')
	case KindString:
		b.WriteString(strconv.Quote(v.Text))
	case KindDate:
		b.WriteString(v.Text)
	case KindFunction:
		if v.Name == "" {
			b.WriteString("[Function (anonymous)]")
		} else {
			b.WriteString("[Function: " + v.Name + "]")
		}
	case KindCycle:
		b.WriteString("[Circular *" + strconv.Itoa(v.Depth) + "]")
	case KindError:
		b.WriteString(v.Name)
		if v.Text != "" {
			b.WriteString(": " + v.Text)
		}
		if len(v.Fields) > 0 {
			b.WriteByte(' ')
			writeFields(b, v.Fields)
		}
	case KindArray:
		b.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			item.write(b)
		}
		b.WriteByte(']')
	case KindMap, KindSet:
		b.WriteString(v.Name + "(" + strconv.Itoa(len(v.Items)) + ") {")
		for i, item := range v.Items {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte(' ')
			if v.Kind == KindMap && len(item.Items) == 2 {
				item.Items[0].write(b)
				b.WriteString(" => ")
				item.Items[1].write(b)
			} else {
				item.write(b)
			}
		}
		b.WriteString(" }")
	default:
		if v.Name != "" && v.Name != "Object" {
			b.WriteString(v.Name + " ")
		}
		if v.Text != "" && len(v.Fields) == 0 {
			b.WriteString("[" + v.Text + "]")
			return
		}
		writeFields(b, v.Fields)
	}
}

func writeFields(b *strings.Builder, fields []Field) {
	if len(fields) == 0 {
		b.WriteString("{}")
		return
	}
	b.WriteString("{ ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Key + ": ")
		f.Value.write(b)
	}
	b.WriteString(" }")
}

// sortFields orders fields by key so that property insertion order does not
// affect equality.
func sortFields(fields []Field) {
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Key < fields[j].Key
	})
}

// sortEntries orders map and set entries by their rendering. Collections are
// compared as unordered.
func sortEntries(items []Value) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].String() < items[j].String()
	})
}
