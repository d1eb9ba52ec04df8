package blob

import (
	"context"
	"io"
	"time"
)

// MetaHash is the object user-metadata entry carrying the content fingerprint.
const MetaHash = "hash"

// Store is the object store gateway used by the sync engine. Absent objects are reported with an
// error matching syncerr.ErrNotFound, every other failure matches syncerr.ErrTransientNetwork.
type Store interface {
	PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error)
	GetObject(ctx context.Context, key string) (*GetObjectResponse, error)
	HeadObject(ctx context.Context, key string) (*ObjectInfo, error)
	ListObjects(ctx context.Context, prefix string) ([]*ObjectInfo, error)
}

type GetObjectResponse struct {
	Body         io.ReadCloser
	ETag         string
	Hash         string
	Size         int64
	LastModified time.Time
}

// ===================================================================================================

type PutObjectParams struct {
	Key         string
	Hash        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type PutObjectResponse struct {
	Key          string
	Version      string
	ETag         string
	Size         int64
	LastModified time.Time
}

// ===================================================================================================

// ObjectInfo is what the store currently holds for a key. Hash is empty when the object was listed
// rather than fetched, since listings do not carry user metadata.
type ObjectInfo struct {
	Key          string    `json:"key"`
	ETag         string    `json:"etag"`
	Hash         string    `json:"hash,omitempty"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}
