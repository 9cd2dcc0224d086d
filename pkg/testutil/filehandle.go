package testutil

import (
	"bytes"
	"io"

	"github.com/marmos91/chunkflow/pkg/adapter"
)

// FileHandle is a byte-slice-backed adapter.FileHandle for tests.
type FileHandle struct {
	name         string
	data         []byte
	mimeType     string
	lastModified int64
}

// NewFileHandle wraps data as an adapter.FileHandle.
func NewFileHandle(name string, data []byte, mimeType string, lastModified int64) *FileHandle {
	return &FileHandle{name: name, data: data, mimeType: mimeType, lastModified: lastModified}
}

func (f *FileHandle) Name() string         { return f.name }
func (f *FileHandle) Size() uint64         { return uint64(len(f.data)) }
func (f *FileHandle) MimeType() string     { return f.mimeType }
func (f *FileHandle) LastModified() int64  { return f.lastModified }

// Slice returns a reader over [start,end). Safe for concurrent calls: each
// call gets its own bytes.Reader over a shared, never-mutated backing array.
func (f *FileHandle) Slice(start, end uint64) (io.Reader, error) {
	if end > uint64(len(f.data)) || start > end {
		return nil, io.ErrUnexpectedEOF
	}
	return bytes.NewReader(f.data[start:end]), nil
}

var _ adapter.FileHandle = (*FileHandle)(nil)
