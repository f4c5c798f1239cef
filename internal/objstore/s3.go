// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/gamerunner/internal/awsclient"
)

// s3API is the subset of *s3.Client used for listing and reading.
type s3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads from S3 or an S3-compatible service.
type S3Store struct {
	api      s3API
	uploader *manager.Uploader
	tracer   trace.Tracer
}

var _ Backend = (*S3Store)(nil)

// NewS3Store wraps a configured client.
func NewS3Store(c *awsclient.S3Client) *S3Store {
	return &S3Store{
		api:      c.Client,
		uploader: manager.NewUploader(c.Client),
		tracer:   c.Tracer,
	}
}

func (s *S3Store) ListPage(ctx context.Context, bucket, prefix, cursor string) (Page, error) {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if cursor != "" {
		in.ContinuationToken = aws.String(cursor)
	}

	out, err := s.api.ListObjectsV2(ctx, in)
	if err != nil {
		return Page{}, err
	}

	page := Page{
		Objects:    make([]Object, 0, len(out.Contents)),
		Truncated:  aws.ToBool(out.IsTruncated),
		NextCursor: aws.ToString(out.NextContinuationToken),
	}
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		page.Objects = append(page.Objects, Object{Key: *obj.Key, Size: aws.ToInt64(obj.Size)})
	}
	return page, nil
}

func (s *S3Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, err
	}
	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, nil
}

// IsPermanent reports S3 error codes that a retry cannot fix.
func (s *S3Store) IsPermanent(err error) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.ErrorCode() {
	case "NoSuchKey", "NoSuchBucket", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "InvalidObjectState":
		return true
	}
	return false
}

// Upload sends a local file with the multipart uploader.
func (s *S3Store) Upload(ctx context.Context, bucket, key, sourceFilename string) error {
	if s.uploader == nil {
		return errors.New("s3 store has no uploader")
	}
	file, err := os.Open(sourceFilename)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", sourceFilename, err)
	}
	defer func() { _ = file.Close() }()

	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "objstore.s3Upload",
			trace.WithAttributes(
				attribute.String("bucket", bucket),
				attribute.String("key", key),
			),
		)
		defer span.End()
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("application/vnd.apache.parquet"),
		Metadata: map[string]string{
			"writer": "gamerunner",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
