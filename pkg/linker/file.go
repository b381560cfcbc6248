package linker

import (
	"debug/elf"
	"os"

	"github.com/pkg/errors"

	"sbpfld/pkg/utils"
)

type File struct {
	Name     string
	Contents []byte
}

func NewFile(filename string) (*File, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filename)
	}
	return &File{Name: filename, Contents: contents}, nil
}

type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeEmpty
	FileTypeObject
	FileTypeExecutable
	FileTypeArchive
)

func GetFileType(contents []byte) FileType {
	if len(contents) == 0 {
		return FileTypeEmpty
	}

	if CheckMagic(contents) {
		if len(contents) < int(ELFHeaderSize) {
			return FileTypeUnknown
		}
		ty, err := utils.Read[uint16](contents[16:])
		if err != nil {
			return FileTypeUnknown
		}
		switch elf.Type(ty) {
		case elf.ET_REL:
			return FileTypeObject
		case elf.ET_DYN, elf.ET_EXEC:
			return FileTypeExecutable
		}
		return FileTypeUnknown
	}

	if len(contents) >= 8 && string(contents[:8]) == "!<arch>\n" {
		return FileTypeArchive
	}

	return FileTypeUnknown
}

func (ft FileType) String() string {
	switch ft {
	case FileTypeEmpty:
		return "empty file"
	case FileTypeObject:
		return "relocatable object"
	case FileTypeExecutable:
		return "linked executable"
	case FileTypeArchive:
		return "archive"
	}
	return "unknown file type"
}
