package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options locates the exported object.
type S3Options struct {
	Bucket string
	Key    string
	Region string
	// Endpoint points at an S3-compatible service such as MinIO and
	// switches the client to path-style addressing.
	Endpoint string
}

// S3Destination writes the workflow as one object. The object carries the
// document's SHA-256 in its metadata under "workflow-sha256".
type S3Destination struct {
	api  *s3.Client
	opts S3Options
}

// NewS3Destination resolves AWS credentials the usual way (environment,
// shared config, instance role) and returns a destination for opts.
func NewS3Destination(ctx context.Context, opts S3Options) (*S3Destination, error) {
	switch {
	case opts.Bucket == "":
		return nil, errors.New("s3 export: bucket is required")
	case opts.Key == "":
		return nil, errors.New("s3 export: object key is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("s3 export: loading AWS config: %w", err)
	}
	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint == "" {
			return
		}
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = true
	})
	return &S3Destination{api: api, opts: opts}, nil
}

func (d *S3Destination) Name() string {
	return fmt.Sprintf("s3://%s/%s", d.opts.Bucket, d.opts.Key)
}

func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	sum := sha256.Sum256(data)
	in := &s3.PutObjectInput{
		Bucket:            aws.String(d.opts.Bucket),
		Key:               aws.String(d.opts.Key),
		Body:              bytes.NewReader(data),
		ContentLength:     aws.Int64(int64(len(data))),
		ContentType:       aws.String("application/json"),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		Metadata:          map[string]string{"workflow-sha256": hex.EncodeToString(sum[:])},
	}
	if _, err := d.api.PutObject(ctx, in); err != nil {
		return fmt.Errorf("%s: %w", d.Name(), err)
	}
	return nil
}
