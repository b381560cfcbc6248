package linker

import (
	"strings"

	"github.com/samber/lo"
)

const (
	RodataSectionPrefix = ".rodata"
	TextSectionName     = ".text"
	EntrypointSymbol    = "entrypoint"
)

// Sections holds the two input sections the re-linker works on. Either
// may be nil.
type Sections struct {
	Rodata *Section
	Text   *Section
}

// LocateSections finds the code section by exact name and the rodata
// section by prefix, since compilers emit suffixed variants such as
// .rodata.str1.1. Only one rodata section can be laid out.
func LocateSections(obj Object) (*Sections, error) {
	rodata := lo.Filter(obj.Sections(), func(s *Section, _ int) bool {
		return strings.HasPrefix(s.Name, RodataSectionPrefix)
	})
	if len(rodata) > 1 {
		return nil, &MultipleRodataSectionsError{
			Names: lo.Map(rodata, func(s *Section, _ int) string { return s.Name }),
		}
	}

	found := &Sections{}
	if len(rodata) == 1 {
		found.Rodata = rodata[0]
	}
	found.Text, _ = lo.Find(obj.Sections(), func(s *Section) bool {
		return s.Name == TextSectionName
	})
	return found, nil
}

// EntryOffset is the .text offset of the entrypoint function, or 0 when
// the object does not define one there.
func EntryOffset(obj Object, text *Section) uint64 {
	if text == nil {
		return 0
	}
	for _, sym := range obj.Symbols() {
		if sym.Name != EntrypointSymbol {
			continue
		}
		if idx, ok := sym.SectionIndex(); ok && idx == text.Index {
			return sym.Value
		}
	}
	return 0
}
