package linker

import (
	"github.com/hashicorp/go-multierror"
)

// Context is the state of one assembly: the program being emitted, the
// output chunks in file order and the output buffer.
type Context struct {
	Program *ResolvedProgram

	Ehdr     *OutputEhdr
	Phdr     *OutputPhdr
	Shdr     *OutputShdr
	Text     *TextSection
	Rodata   *RodataSection
	Shstrtab *ShstrtabSection

	Chunks []Chunker
	Buf    []byte

	// Labels maps rodata entry names to their virtual addresses.
	Labels map[string]uint64
	Errs   *multierror.Error
}

func NewContext(p *ResolvedProgram) *Context {
	return &Context{
		Program: p,
		Labels:  make(map[string]uint64),
	}
}

func (ctx *Context) AddError(offset uint64, err error) {
	ctx.Errs = multierror.Append(ctx.Errs, &CompileError{Offset: offset, Err: err})
}
