package linker

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"sbpfld/pkg/sbpf"
)

// ResolveRelocations rewrites every .text relocation that targets a rodata
// symbol into a label operand and returns how many were rewritten.
//
// BPF REL entries carry no addend. The referenced address is the value the
// compiler already placed in the instruction's last operand, so that
// value, not the relocation's symbol, selects the rodata entry.
func ResolveRelocations(logger log.Logger, obj Object, sections *Sections, text *Text, table *RodataTable) (int, error) {
	relocs := obj.Relocations(sections.Text)
	if len(relocs) == 0 {
		return 0, nil
	}
	if sections.Rodata == nil {
		return 0, &RelocationWithoutRodataError{Count: len(relocs)}
	}

	resolved := 0
	for _, rel := range relocs {
		symIdx, ok := rel.Symbol()
		if !ok {
			// Not symbol-relative, so it cannot name a rodata symbol.
			level.Debug(logger).Log("msg", "skipping relocation without symbol", "offset", rel.Offset, "type", rel.Type)
			continue
		}

		sym, ok := obj.SymbolByIndex(symIdx)
		if !ok {
			return resolved, &RelocationTargetUnresolvedError{
				Offset: rel.Offset,
				Reason: "symbol index out of range",
			}
		}
		if idx, ok := sym.SectionIndex(); !ok || idx != sections.Rodata.Index {
			level.Debug(logger).Log("msg", "skipping relocation outside rodata", "offset", rel.Offset, "symbol", sym.Name)
			continue
		}

		pos, ok := text.At(rel.Offset)
		if !ok {
			return resolved, &RelocationTargetUnresolvedError{
				Offset: rel.Offset,
				Reason: "no instruction starts at this offset",
			}
		}
		ins := &text.Records[pos].Instruction

		var addend int64
		if last, ok := ins.LastOperand(); ok {
			addend, _ = last.Int()
		}

		addr := uint64(addend)
		name, ok := table.Lookup(addr)
		if !ok {
			return resolved, &RelocationTargetUnresolvedError{
				Offset:  rel.Offset,
				Address: addr,
				Reason:  "relocation target not found in rodata table",
			}
		}

		if !ins.SetLastOperand(sbpf.Identifier(name)) {
			return resolved, &RelocationTargetUnresolvedError{
				Offset:  rel.Offset,
				Address: addr,
				Reason:  ins.Opcode.String() + " has no operand to patch",
			}
		}
		resolved++
		level.Debug(logger).Log("msg", "resolved relocation", "offset", rel.Offset, "symbol", sym.Name, "label", name)
	}

	return resolved, nil
}
