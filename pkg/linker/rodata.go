package linker

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// RodataTable maps the original (input) address of each cataloged rodata
// symbol to its name.
type RodataTable struct {
	names map[uint64]string
}

func NewRodataTable() *RodataTable {
	return &RodataTable{names: make(map[uint64]string)}
}

// Insert fails rather than overwrite when two symbols share an address.
func (t *RodataTable) Insert(addr uint64, name string) error {
	if existing, ok := t.names[addr]; ok {
		return &DuplicateRodataAddressError{Address: addr, Existing: existing, Name: name}
	}
	t.names[addr] = name
	return nil
}

func (t *RodataTable) Lookup(addr uint64) (string, bool) {
	name, ok := t.names[addr]
	return name, ok
}

func (t *RodataTable) Len() int {
	return len(t.names)
}

type RodataEntry struct {
	Name   string
	Data   []byte
	Offset uint64
}

func (e RodataEntry) Size() uint64 {
	return uint64(len(e.Data))
}

type Rodata struct {
	Entries []RodataEntry
	Table   *RodataTable
	Size    uint64
}

// CatalogRodata collects every sized symbol defined in the rodata section.
// Output offsets follow symbol table order, not address order, so that
// the emitted layout matches what the object's producer expects.
func CatalogRodata(obj Object, rodata *Section) (*Rodata, error) {
	catalog := &Rodata{Table: NewRodataTable()}
	if rodata == nil {
		return catalog, nil
	}

	syms := lo.Filter(obj.Symbols(), func(sym Symbol, _ int) bool {
		idx, ok := sym.SectionIndex()
		return ok && idx == rodata.Index && sym.Size > 0
	})

	for _, sym := range syms {
		end := sym.Value + sym.Size
		if end < sym.Value || end > uint64(len(rodata.Data)) {
			return nil, &ObjectParseError{Err: errors.Errorf(
				"rodata symbol %q [%#x, %#x) exceeds section %s of size %d",
				sym.Name, sym.Value, end, rodata.Name, len(rodata.Data))}
		}

		if err := catalog.Table.Insert(sym.Value, sym.Name); err != nil {
			return nil, err
		}

		data := make([]byte, sym.Size)
		copy(data, rodata.Data[sym.Value:end])
		catalog.Entries = append(catalog.Entries, RodataEntry{
			Name:   sym.Name,
			Data:   data,
			Offset: catalog.Size,
		})
		catalog.Size += sym.Size
	}

	return catalog, nil
}
