package blob

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/retrosync/retrosync/internal/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"no such key", &types.NoSuchKey{}, true},
		{"not found", &types.NotFound{}, true},
		{"wrapped not found", fmt.Errorf("operation error S3: HeadObject: %w", &types.NotFound{}), true},
		{"bare 404 code", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"dial failure", errors.New("dial tcp: connection refused"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapError("head", "k", tc.err)
			if tc.notFound {
				assert.ErrorIs(t, err, syncerr.ErrNotFound)
			} else {
				assert.ErrorIs(t, err, syncerr.ErrTransientNetwork)
				assert.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestNewBlobClientWithS3Config_Validation(t *testing.T) {
	_, err := NewBlobClientWithS3Config(context.Background(), &S3BlobConfig{AccessKey: "a", SecretKey: "b"})
	assert.ErrorIs(t, err, syncerr.ErrConfiguration)

	_, err = NewBlobClientWithS3Config(context.Background(), &S3BlobConfig{BucketName: "saves"})
	assert.ErrorIs(t, err, syncerr.ErrConfiguration)

	c, err := NewBlobClientWithS3Config(context.Background(), WithMinioConfig("http://127.0.0.1:9000", "saves", "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "saves", c.config.BucketName)
}
