package adapter

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// LocalFile is an os-file-backed FileHandle for CLI and host-process use:
// Slice opens an independent *os.File per call and returns a bounded
// section reader, so concurrent dispatch-loop reads never share a file
// offset.
type LocalFile struct {
	path         string
	name         string
	size         uint64
	mimeType     string
	lastModified int64
}

// OpenLocalFile stats path and returns a FileHandle over it. The file is
// not kept open between Slice calls.
func OpenLocalFile(path string) (*LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("adapter: open local file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("adapter: open local file: %s is a directory", path)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return &LocalFile{
		path:         path,
		name:         filepath.Base(path),
		size:         uint64(info.Size()),
		mimeType:     mimeType,
		lastModified: info.ModTime().Unix(),
	}, nil
}

func (f *LocalFile) Name() string        { return f.name }
func (f *LocalFile) Size() uint64        { return f.size }
func (f *LocalFile) MimeType() string    { return f.mimeType }
func (f *LocalFile) LastModified() int64 { return f.lastModified }

// Slice opens its own handle to path so concurrent chunk reads never race
// on a shared file offset, and closes it once the returned reader is
// exhausted.
func (f *LocalFile) Slice(start, end uint64) (io.Reader, error) {
	if end > f.size || start > end {
		return nil, io.ErrUnexpectedEOF
	}

	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("adapter: slice %s: %w", f.path, err)
	}
	return &closingSectionReader{
		sr:   io.NewSectionReader(file, int64(start), int64(end-start)),
		file: file,
	}, nil
}

// closingSectionReader closes the backing *os.File once Read reports EOF,
// so callers that read to completion (the common case) never need to know
// Slice opened a file at all.
type closingSectionReader struct {
	sr   *io.SectionReader
	file *os.File
}

func (c *closingSectionReader) Read(p []byte) (int, error) {
	n, err := c.sr.Read(p)
	if err != nil {
		_ = c.file.Close()
	}
	return n, err
}

var _ FileHandle = (*LocalFile)(nil)
