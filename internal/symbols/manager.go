// Package symbols provides the symbol table used to name function entry points when an
// export or symbol table is available for a module.
package symbols

import (
	"fmt"
	"sort"

	"github.com/retroenv/retrogolib/set"
)

// Symbol names a function entry point.
type Symbol struct {
	Offset   uint64
	Name     string
	Exported bool // symbol is part of the export table of the module
}

// Table maps function entry offsets to symbols.
type Table struct {
	items map[uint64]Symbol
	names set.Set[string]
}

// New creates a new empty symbol table.
func New() *Table {
	return &Table{
		items: make(map[uint64]Symbol),
		names: set.New[string](),
	}
}

// Add adds a symbol. Offsets and names have to be unique within a table.
func (t *Table) Add(sym Symbol) error {
	if existing, ok := t.items[sym.Offset]; ok {
		return fmt.Errorf("offset 0x%x already named '%s'", sym.Offset, existing.Name)
	}
	if t.names.Contains(sym.Name) {
		return fmt.Errorf("symbol name '%s' is not unique", sym.Name)
	}

	t.items[sym.Offset] = sym
	t.names.Add(sym.Name)
	return nil
}

// Get returns the symbol at the given offset.
func (t *Table) Get(offset uint64) (Symbol, bool) {
	sym, ok := t.items[offset]
	return sym, ok
}

// Has returns whether a symbol exists at the given offset.
func (t *Table) Has(offset uint64) bool {
	_, ok := t.items[offset]
	return ok
}

// Len returns the number of symbols in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.items)
}

// Sorted returns all symbols sorted by offset.
func (t *Table) Sorted() []Symbol {
	if t == nil {
		return nil
	}

	items := make([]Symbol, 0, len(t.items))
	for _, sym := range t.items {
		items = append(items, sym)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Offset < items[j].Offset
	})
	return items
}
