package blob

type S3BlobConfig struct {
	BucketName    string
	Region        string
	AccessKey     string
	SecretKey     string
	Endpoint      string
	UseAccelerate bool
}

// WithS3Config creates a configuration for an AWS S3 bucket
func WithS3Config(bucketName, region, accessKey, secretKey string, accelerate bool) *S3BlobConfig {
	return &S3BlobConfig{
		BucketName:    bucketName,
		Region:        region,
		AccessKey:     accessKey,
		SecretKey:     secretKey,
		UseAccelerate: accelerate,
	}
}

// WithMinioConfig creates a configuration for a MinIO (or any S3 compatible) endpoint
func WithMinioConfig(url, bucketName, accessKey, secretKey string) *S3BlobConfig {
	return &S3BlobConfig{
		BucketName:    bucketName,
		Endpoint:      url,
		Region:        "us-east-1",
		AccessKey:     accessKey,
		SecretKey:     secretKey,
		UseAccelerate: false,
	}
}
