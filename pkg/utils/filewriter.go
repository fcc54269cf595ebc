package utils

import (
	"bufio"
	"os"
)

type Writer interface {
	Write(p []byte) (n int, err error)
	Flush() error
}

// FileManager abstracts where exported messages and snapshots land, so the
// same export code can target the local filesystem or an S3 bucket.
type FileManager interface {
	Close() error
	Create(name string) (Writer, error)
	MkdirAll(path string, perm os.FileMode) error
	ReadFile(filename string) ([]byte, error)
	WriteFile(filename string, data []byte, perm os.FileMode) error
}

type OSFileManager struct {
	outfile *os.File
	writer  *bufio.Writer
}

func NewOSFileManager() *OSFileManager {
	return &OSFileManager{}
}

func (osfc *OSFileManager) Create(name string) (Writer, error) {
	var err error
	osfc.outfile, err = os.Create(name)
	if err != nil {
		return nil, err
	}
	osfc.writer = bufio.NewWriter(osfc.outfile)
	return osfc.writer, nil
}

func (osfc *OSFileManager) Close() error {
	if osfc.outfile == nil {
		return nil
	}
	if err := osfc.writer.Flush(); err != nil {
		return err
	}
	if err := osfc.outfile.Close(); err != nil {
		return err
	}
	osfc.outfile = nil
	osfc.writer = nil

	return nil
}

func (osfc *OSFileManager) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (osfc *OSFileManager) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

func (osfc *OSFileManager) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}
