// Package storage provides object storage abstractions for the analytics
// projections.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrPutFailed          = errors.New("put failed")
	ErrGetFailed          = errors.New("get failed")
	ErrDeleteFailed       = errors.New("delete failed")
)

// ObjectStorage abstracts the analytics object store. Implementations
// include S3 and the local filesystem for development and testing.
//
// Objects are small JSON documents, so the interface is byte-oriented
// rather than file-oriented.
type ObjectStorage interface {
	// Put writes an object, replacing any prior version wholesale.
	Put(ctx context.Context, key string, data []byte) error

	// Get reads an object. Returns ErrObjectNotFound if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetWithETag reads an object and the ETag identifying the version
	// read, for use with ConditionalPut. Returns ErrObjectNotFound if
	// the key is absent.
	GetWithETag(ctx context.Context, key string) ([]byte, string, error)

	// ConditionalPut writes an object only if the precondition holds:
	// with a non-empty etag the stored object must still carry that ETag
	// (If-Match); with an empty etag the key must not exist yet
	// (If-None-Match). Returns ErrPreconditionFailed when another writer
	// got there first.
	ConditionalPut(ctx context.Context, key string, data []byte, etag string) error

	// Delete removes an object. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists.
	Exists(ctx context.Context, key string) (bool, error)

	// ListKeys returns all object keys under the given prefix.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
