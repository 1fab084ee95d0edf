package usecase

import "fmt"

// StorageError reports a failed write or delete against the dataset store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// FileSystemError reports a failed operation on a staged upload file.
type FileSystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("filesystem: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error {
	return e.Err
}

// AggregationError reports a failed popular-term recomputation.
type AggregationError struct {
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation: %v", e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}
