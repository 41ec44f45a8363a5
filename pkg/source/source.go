// Package source gives the decoder random access to a whole input file.
//
// On unix platforms the file is memory-mapped read-only; elsewhere it is read
// into memory. Either way Bytes must not be modified by the caller.
package source

import "fmt"

// File is an opened input.
type File struct {
	path  string
	data  []byte
	size  int64
	unmap func([]byte) error
}

// FromBytes wraps an in-memory buffer, such as input read from stdin.
func FromBytes(name string, data []byte) *File {
	return &File{path: name, data: data, size: int64(len(data))}
}

// Path returns the path or name the file was opened with.
func (f *File) Path() string {
	return f.path
}

// Bytes returns the file contents.
func (f *File) Bytes() []byte {
	return f.data
}

// Size returns the file size.
func (f *File) Size() int64 {
	return f.size
}

// Close releases the mapping. Bytes must not be used afterwards.
func (f *File) Close() error {
	if f.unmap == nil || f.data == nil {
		return nil
	}
	data := f.data
	f.data = nil
	if err := f.unmap(data); err != nil {
		return fmt.Errorf("munmap %s: %w", f.path, err)
	}
	return nil
}
