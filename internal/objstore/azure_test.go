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
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAzure struct {
	pages   map[string]azblob.ListBlobsFlatResponse
	markers []string
	blobs   map[string]string
}

func (f *fakeAzure) NewListBlobsFlatPager(containerName string, o *azblob.ListBlobsFlatOptions) *runtime.Pager[azblob.ListBlobsFlatResponse] {
	marker := ""
	if o != nil && o.Marker != nil {
		marker = *o.Marker
	}
	f.markers = append(f.markers, marker)
	return runtime.NewPager(runtime.PagingHandler[azblob.ListBlobsFlatResponse]{
		More: func(azblob.ListBlobsFlatResponse) bool { return false },
		Fetcher: func(context.Context, *azblob.ListBlobsFlatResponse) (azblob.ListBlobsFlatResponse, error) {
			return f.pages[marker], nil
		},
	})
}

func (f *fakeAzure) DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error) {
	body, ok := f.blobs[blobName]
	if !ok {
		return azblob.DownloadStreamResponse{}, &azcore.ResponseError{ErrorCode: "BlobNotFound", StatusCode: http.StatusNotFound}
	}
	var resp azblob.DownloadStreamResponse
	resp.Body = io.NopCloser(strings.NewReader(body))
	resp.ContentLength = to.Ptr(int64(len(body)))
	return resp, nil
}

func (f *fakeAzure) UploadFile(ctx context.Context, containerName, blobName string, file *os.File, o *azblob.UploadFileOptions) (azblob.UploadFileResponse, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return azblob.UploadFileResponse{}, err
	}
	if f.blobs == nil {
		f.blobs = map[string]string{}
	}
	f.blobs[blobName] = string(data)
	return azblob.UploadFileResponse{}, nil
}

func blobPage(next string, names ...string) azblob.ListBlobsFlatResponse {
	var items []*container.BlobItem
	for _, n := range names {
		items = append(items, &container.BlobItem{
			Name:       to.Ptr(n),
			Properties: &container.BlobProperties{ContentLength: to.Ptr(int64(len(n)))},
		})
	}
	var resp azblob.ListBlobsFlatResponse
	resp.Segment = &container.BlobFlatListSegment{BlobItems: items}
	if next != "" {
		resp.NextMarker = to.Ptr(next)
	}
	return resp
}

func TestAzureStore_ListFollowsMarkers(t *testing.T) {
	api := &fakeAzure{pages: map[string]azblob.ListBlobsFlatResponse{
		"":   blobPage("m1", "game-data/a.parquet", "game-data/a.csv"),
		"m1": blobPage("", "game-data/b.parquet.zst"),
	}}
	store := &AzureStore{api: api}

	keys, err := ListDataKeys(context.Background(), store, "container", "game-data/")
	require.NoError(t, err)
	assert.Equal(t, []string{"game-data/a.parquet", "game-data/b.parquet.zst"}, keys)
	assert.Equal(t, []string{"", "m1"}, api.markers)
}

func TestAzureStore_OpenAndPermanent(t *testing.T) {
	store := &AzureStore{api: &fakeAzure{blobs: map[string]string{"a.parquet": "abc"}}}

	body, size, err := store.Open(context.Background(), "container", "a.parquet")
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
	require.NoError(t, body.Close())

	_, _, err = store.Open(context.Background(), "container", "missing.parquet")
	require.Error(t, err)
	assert.True(t, store.IsPermanent(err))
}

func TestAzureStore_Upload(t *testing.T) {
	api := &fakeAzure{}
	store := &AzureStore{api: api}

	src := filepath.Join(t.TempDir(), "games.parquet")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))
	require.NoError(t, store.Upload(context.Background(), "container", "game-data/games.parquet", src))
	assert.Equal(t, "data", api.blobs["game-data/games.parquet"])
}
