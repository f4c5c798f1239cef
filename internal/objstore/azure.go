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
	"fmt"
	"io"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/gamerunner/internal/azureclient"
)

// azureAPI is the subset of *azblob.Client used here.
type azureAPI interface {
	NewListBlobsFlatPager(containerName string, o *azblob.ListBlobsFlatOptions) *runtime.Pager[azblob.ListBlobsFlatResponse]
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
	UploadFile(ctx context.Context, containerName, blobName string, file *os.File, o *azblob.UploadFileOptions) (azblob.UploadFileResponse, error)
}

// AzureStore reads from Azure Blob Storage. Buckets map to containers and
// the listing cursor is the service's continuation marker.
type AzureStore struct {
	api    azureAPI
	tracer trace.Tracer
}

var _ Backend = (*AzureStore)(nil)

func NewAzureStore(client *azureclient.BlobClient) *AzureStore {
	return &AzureStore{api: client.Client, tracer: client.Tracer}
}

func (s *AzureStore) ListPage(ctx context.Context, bucket, prefix, cursor string) (Page, error) {
	opts := &azblob.ListBlobsFlatOptions{Prefix: &prefix}
	if cursor != "" {
		opts.Marker = &cursor
	}

	resp, err := s.api.NewListBlobsFlatPager(bucket, opts).NextPage(ctx)
	if err != nil {
		return Page{}, err
	}

	var page Page
	if resp.Segment != nil {
		for _, item := range resp.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			obj := Object{Key: *item.Name, Size: -1}
			if item.Properties != nil && item.Properties.ContentLength != nil {
				obj.Size = *item.Properties.ContentLength
			}
			page.Objects = append(page.Objects, obj)
		}
	}
	if resp.NextMarker != nil && *resp.NextMarker != "" {
		page.Truncated = true
		page.NextCursor = *resp.NextMarker
	}
	return page, nil
}

func (s *AzureStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	resp, err := s.api.DownloadStream(ctx, bucket, key, nil)
	if err != nil {
		return nil, 0, err
	}
	size := int64(-1)
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}
	return resp.Body, size, nil
}

func (s *AzureStore) IsPermanent(err error) bool {
	return bloberror.HasCode(err,
		bloberror.BlobNotFound,
		bloberror.ContainerNotFound,
		bloberror.AuthorizationFailure,
		bloberror.AuthenticationFailed,
	)
}

func (s *AzureStore) Upload(ctx context.Context, bucket, key, sourceFilename string) error {
	file, err := os.Open(sourceFilename)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", sourceFilename, err)
	}
	defer func() { _ = file.Close() }()

	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "objstore.azureUpload",
			trace.WithAttributes(
				attribute.String("container", bucket),
				attribute.String("blob", key),
			),
		)
		defer span.End()
	}

	if _, err := s.api.UploadFile(ctx, bucket, key, file, nil); err != nil {
		return fmt.Errorf("failed to upload blob %s/%s: %w", bucket, key, err)
	}
	return nil
}
