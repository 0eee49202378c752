package storage

import "errors"

var (
	// ErrUnknownPartition is returned for a partition outside Partitions
	ErrUnknownPartition = errors.New("storage: unknown partition")

	// ErrMissingPartition is returned when opening without
	// CreateMissingPartitions and a partition does not exist
	ErrMissingPartition = errors.New("storage: missing partition")

	// ErrNotExist is returned when the database is absent and
	// CreateIfMissing is false
	ErrNotExist = errors.New("storage: database does not exist")

	// ErrExists is returned when ErrorIfExists is set and the database exists
	ErrExists = errors.New("storage: database already exists")

	// ErrLocked is returned when another process holds the database
	ErrLocked = errors.New("storage: database locked")

	// ErrClosed is returned by operations on a closed backend
	ErrClosed = errors.New("storage: backend closed")
)
