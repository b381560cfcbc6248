package linker

import "debug/elf"

// ShstrtabSection names the output sections. Offset 0 is the empty name.
type ShstrtabSection struct {
	Chunk

	names   []string
	offsets map[string]uint32
	size    uint64
}

func NewShstrtabSection() *ShstrtabSection {
	s := &ShstrtabSection{Chunk: NewChunk(), offsets: make(map[string]uint32), size: 1}
	s.Name = ".shstrtab"
	s.Shdr.Type = uint32(elf.SHT_STRTAB)
	return s
}

// AddName interns name and returns its offset in the table.
func (s *ShstrtabSection) AddName(name string) uint32 {
	if name == "" {
		return 0
	}
	if off, ok := s.offsets[name]; ok {
		return off
	}
	off := uint32(s.size)
	s.offsets[name] = off
	s.names = append(s.names, name)
	s.size += uint64(len(name)) + 1
	return off
}

func (s *ShstrtabSection) UpdateShdr(ctx *Context) {
	s.Shdr.Size = s.size
}

func (s *ShstrtabSection) CopyBuf(ctx *Context) {
	base := ctx.Buf[s.Shdr.Offset:]
	base[0] = 0
	for _, name := range s.names {
		writeString(base[s.offsets[name]:], name)
	}
}
