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

	"github.com/cardinalhq/gamerunner/config"
	"github.com/cardinalhq/gamerunner/internal/awsclient"
	"github.com/cardinalhq/gamerunner/internal/azureclient"
)

// Backend is a Store that can also receive uploads.
type Backend interface {
	Store
	Uploader
}

// New builds the backend selected by the storage configuration.
func New(ctx context.Context, sc config.StorageConfig) (Backend, error) {
	switch sc.Provider {
	case "aws", "":
		mgr, err := awsclient.NewManager(ctx, awsclient.WithAssumeRoleSessionName("gamerunner"))
		if err != nil {
			return nil, err
		}
		client, err := mgr.GetS3ForStorage(ctx, sc)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return NewS3Store(client), nil
	case "azure":
		mgr, err := azureclient.NewManager(ctx)
		if err != nil {
			return nil, err
		}
		client, err := mgr.GetBlob(ctx, azureclient.WithAccountURL(sc.AzureAccountURL))
		if err != nil {
			return nil, fmt.Errorf("failed to create blob client: %w", err)
		}
		return NewAzureStore(client), nil
	case "file":
		return NewFileStore(sc.Root, 0), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", sc.Provider)
	}
}
