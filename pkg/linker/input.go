package linker

import "github.com/pkg/errors"

// ReadFile accepts a single BPF relocatable object. Archives and already
// linked images are rejected: the re-linker rewrites exactly one object.
func ReadFile(file *File) (*ObjectFile, error) {
	ft := GetFileType(file.Contents)

	switch ft {
	case FileTypeObject:
		return CreateObjectFile(file)
	default:
		return nil, &ObjectParseError{Err: errors.Errorf("%s: unsupported input, got %s", file.Name, ft)}
	}
}

func CreateObjectFile(file *File) (*ObjectFile, error) {
	mt := GetMachineTypeFromContents(file.Contents)
	if mt == MachineTypeNone {
		return nil, &ObjectParseError{Err: errors.Errorf("%s: incompatible machine type, want 64-bit little-endian bpf or sbpf", file.Name)}
	}

	return NewObjectFile(file)
}
