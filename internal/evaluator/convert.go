package evaluator

import (
	"math/big"
	"strconv"
	"time"

	"github.com/dop251/goja"
)

// converter snapshots goja values into Values. It must run on the loop that
// owns vm.
type converter struct {
	vm      *goja.Runtime
	entries goja.Callable
	symbols map[*goja.Symbol]uint64
	stack   []*goja.Object
}

// snapshot converts v, turning any exception raised by getters or proxies
// during the walk into an error Value instead of a panic.
func (s *Scope) snapshot(vm *goja.Runtime, v goja.Value) (out Value) {
	c := &converter{vm: vm, entries: s.entries, symbols: s.symbols}
	if ex := vm.Try(func() { out = c.convert(v) }); ex != nil {
		return Error("Error", ex.Error())
	}
	return out
}

func (c *converter) convert(v goja.Value) Value {
	if v == nil || goja.IsUndefined(v) {
		return Undefined()
	}
	if goja.IsNull(v) {
		return Value{Kind: KindNull}
	}
	if sym, ok := v.(*goja.Symbol); ok {
		return Value{Kind: KindSymbol, Text: sym.String(), ID: c.symbolID(sym)}
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		return primitive(v)
	}

	for i := len(c.stack) - 1; i >= 0; i-- {
		if c.stack[i] == obj {
			return Value{Kind: KindCycle, Depth: len(c.stack) - i}
		}
	}
	c.stack = append(c.stack, obj)
	defer func() { c.stack = c.stack[:len(c.stack)-1] }()

	switch obj.ClassName() {
	case "Function":
		return Value{Kind: KindFunction, Name: obj.Get("name").String(), Text: obj.String()}
	case "Array":
		n := int(obj.Get("length").ToInteger())
		items := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			items = append(items, c.convert(obj.Get(strconv.Itoa(i))))
		}
		return Value{Kind: KindArray, Items: items}
	case "Error":
		return Value{
			Kind:   KindError,
			Name:   obj.Get("name").String(),
			Text:   obj.Get("message").String(),
			Fields: c.fields(obj),
		}
	case "Date":
		text := "Invalid Date"
		if t, ok := obj.Export().(time.Time); ok {
			text = t.UTC().Format(time.RFC3339Nano)
		}
		return Value{Kind: KindDate, Text: text}
	case "RegExp":
		return Value{Kind: KindRegExp, Text: obj.String()}
	case "Map", "Set":
		kind := KindSet
		if obj.ClassName() == "Map" {
			kind = KindMap
		}
		var items []Value
		if c.entries != nil {
			if arr, err := c.entries(goja.Undefined(), obj); err == nil {
				items = c.convert(arr).Items
			}
		}
		sortEntries(items)
		return Value{Kind: kind, Name: constructorName(obj, obj.ClassName()), Items: items}
	case "Number", "String", "Boolean":
		return Value{Kind: KindObject, Name: obj.ClassName(), Text: obj.String(), Fields: c.fields(obj)}
	}

	return Value{Kind: KindObject, Name: constructorName(obj, ""), Fields: c.fields(obj)}
}

func (c *converter) fields(obj *goja.Object) []Field {
	keys := obj.Keys()
	if len(keys) == 0 {
		return nil
	}
	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, Field{Key: k, Value: c.convert(obj.Get(k))})
	}
	sortFields(fields)
	return fields
}

func constructorName(obj *goja.Object, fallback string) string {
	ctor, ok := obj.Get("constructor").(*goja.Object)
	if !ok {
		return fallback
	}
	if name := ctor.Get("name"); name != nil && !goja.IsUndefined(name) {
		return name.String()
	}
	return fallback
}

func primitive(v goja.Value) Value {
	switch x := v.Export().(type) {
	case bool:
		return Boolean(x)
	case int64:
		return Number(float64(x))
	case float64:
		return Number(x)
	case string:
		return String(x)
	case *big.Int:
		return Value{Kind: KindBigInt, Text: x.String()}
	default:
		return Value{Kind: KindObject, Text: v.String()}
	}
}

// symbolID numbers symbols in the order the scope first sees them. The same
// symbol always gets the same number, so two Symbol("a") values differ.
func (c *converter) symbolID(sym *goja.Symbol) uint64 {
	id, ok := c.symbols[sym]
	if !ok {
		id = uint64(len(c.symbols) + 1)
		c.symbols[sym] = id
	}
	return id
}
