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

package azureclient

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.opentelemetry.io/otel/trace"
)

type BlobClient struct {
	Client *azblob.Client
	Tracer trace.Tracer
}

type blobConfig struct {
	AccountURL string
}

type BlobOption func(*blobConfig)

// WithAccountURL selects the storage account by its blob service URL,
// eg https://account.blob.core.windows.net/
func WithAccountURL(url string) BlobOption {
	return func(c *blobConfig) {
		c.AccountURL = url
	}
}

func (m *Manager) GetBlob(ctx context.Context, opts ...BlobOption) (*BlobClient, error) {
	bc := blobConfig{}
	for _, o := range opts {
		o(&bc)
	}

	if bc.AccountURL == "" {
		return nil, fmt.Errorf("account URL is required")
	}

	m.RLock()
	client, ok := m.blobClients[bc.AccountURL]
	m.RUnlock()
	if ok {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()
	if client, ok = m.blobClients[bc.AccountURL]; ok {
		return client, nil
	}

	blobClient, err := azblob.NewClient(bc.AccountURL, m.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	client = &BlobClient{
		Client: blobClient,
		Tracer: m.tracer,
	}
	m.blobClients[bc.AccountURL] = client
	return client, nil
}
