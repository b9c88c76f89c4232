package storage

import "io"

// Storage persists exported snapshot images.
type Storage interface {
	SaveBytes(data []byte, ext string) (string, error)
	OpenFile(path string) (io.ReadSeekCloser, error)
	DeleteFile(path string) error
}
