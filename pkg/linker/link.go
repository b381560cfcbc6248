package linker

import (
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Linker runs the re-linking pipeline: locate sections, catalog rodata,
// decode text, resolve relocations, then hand the program to Assembler.
type Linker struct {
	Logger    log.Logger
	Assembler Assembler
}

func NewLinker(logger log.Logger) *Linker {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Linker{Logger: logger, Assembler: NewElfAssembler()}
}

// A zero Linker logs nowhere and assembles with ElfAssembler.
func (l *Linker) logger() log.Logger {
	if l.Logger == nil {
		return log.NewNopLogger()
	}
	return l.Logger
}

func (l *Linker) assembler() Assembler {
	if l.Assembler == nil {
		return NewElfAssembler()
	}
	return l.Assembler
}

// Resolve turns object file contents into a program with every rodata
// reference expressed as a label.
func (l *Linker) Resolve(contents []byte) (*ResolvedProgram, error) {
	obj, err := ReadFile(&File{Name: "<input>", Contents: contents})
	if err != nil {
		return nil, err
	}
	level.Debug(l.logger()).Log("msg", "parsed object", "machine", MachineTypeStringer{GetMachineTypeFromContents(contents)}, "sections", len(obj.Sections()))
	return l.ResolveObject(obj)
}

func (l *Linker) ResolveObject(obj Object) (*ResolvedProgram, error) {
	logger := l.logger()
	sections, err := LocateSections(obj)
	if err != nil {
		return nil, err
	}

	rodata, err := CatalogRodata(obj, sections.Rodata)
	if err != nil {
		return nil, err
	}

	text := NewText(nil, 0)
	if sections.Text != nil {
		text, err = DecodeText(sections.Text.Data)
		if err != nil {
			return nil, err
		}
	} else {
		level.Warn(logger).Log("msg", "object has no code section", "name", TextSectionName)
	}

	resolved, err := ResolveRelocations(logger, obj, sections, text, rodata.Table)
	if err != nil {
		return nil, err
	}

	p := &ResolvedProgram{
		Instructions: text.Records,
		Rodata:       rodata.Entries,
		TextSize:     text.Size,
		RodataSize:   rodata.Size,
		EntryOffset:  EntryOffset(obj, sections.Text),
	}

	level.Info(logger).Log(
		"msg", "resolved program",
		"instructions", len(p.Instructions),
		"text_size", p.TextSize,
		"rodata_entries", len(p.Rodata),
		"rodata_size", p.RodataSize,
		"relocations", resolved,
	)
	return p, nil
}

// Link re-links an object held in memory and returns the program image.
func (l *Linker) Link(contents []byte) ([]byte, error) {
	p, err := l.Resolve(contents)
	if err != nil {
		return nil, err
	}

	out, err := l.assembler().Assemble(p)
	if err != nil {
		return nil, newAssemblyError(err)
	}
	return out, nil
}

// LinkFile reads and re-links the object at path.
func (l *Linker) LinkFile(path string) ([]byte, error) {
	file, err := NewFile(path)
	if err != nil {
		return nil, err
	}

	level.Debug(l.logger()).Log("msg", "linking", "input", path)
	out, err := l.Link(file.Contents)
	if err != nil {
		return nil, errors.Wrapf(err, "linking %s", path)
	}
	return out, nil
}

// DefaultOutputPath places the program next to input with a .so suffix.
func DefaultOutputPath(input string) string {
	stem := filepath.Base(input)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	return filepath.Join(filepath.Dir(input), stem+".so")
}
