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

package awsclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/gamerunner/config"
)

type S3Client struct {
	Client *s3.Client
	Tracer trace.Tracer
}

type s3Config struct {
	RoleARN     string
	Region      string
	Credentials aws.CredentialsProvider
	applyS3s    []func(*s3.Options)
}

// S3Option is a functional option for GetS3.
type S3Option func(*s3Config)

// WithRole sets the IAM Role ARN to assume (empty = no assume).
func WithRole(roleARN string) S3Option {
	return func(c *s3Config) {
		c.RoleARN = roleARN
	}
}

// WithRegion overrides the AWS region for this call.
func WithRegion(region string) S3Option {
	return func(c *s3Config) {
		c.Region = region
	}
}

// WithEndpoint forces a custom S3 endpoint (eg MinIO, Ceph).
func WithEndpoint(url string) S3Option {
	return func(c *s3Config) {
		c.applyS3s = append(c.applyS3s, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(url)
		})
	}
}

// WithPathStyle uses path-style addressing instead of virtual-host.
func WithPathStyle() S3Option {
	return func(c *s3Config) {
		c.applyS3s = append(c.applyS3s, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
}

// WithStaticCredentials bypasses the default chain, typically for a
// self-hosted endpoint. Ignored when a role is also set.
func WithStaticCredentials(accessKeyID, secretAccessKey string) S3Option {
	return func(c *s3Config) {
		c.Credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	}
}

// GetS3 returns an S3 client for the given options. Assumed-role
// credential providers are cached per (region, role).
func (m *Manager) GetS3(ctx context.Context, opts ...S3Option) (*S3Client, error) {
	sc := s3Config{
		Region: m.baseCfg.Region,
	}
	for _, o := range opts {
		o(&sc)
	}

	cfg := m.baseCfg.Copy()
	cfg.Region = sc.Region
	switch {
	case sc.RoleARN != "":
		cfg.Credentials = m.roleProvider(roleKey{Region: sc.Region, RoleARN: sc.RoleARN})
	case sc.Credentials != nil:
		cfg.Credentials = sc.Credentials
	}

	client := s3.NewFromConfig(cfg, sc.applyS3s...)
	return &S3Client{Client: client, Tracer: m.tracer}, nil
}

func (m *Manager) roleProvider(key roleKey) aws.CredentialsProvider {
	m.RLock()
	provider, ok := m.providers[key]
	m.RUnlock()
	if ok {
		return provider
	}

	m.Lock()
	defer m.Unlock()
	if provider, ok = m.providers[key]; ok {
		return provider
	}
	p := stscreds.NewAssumeRoleProvider(m.stsClient, key.RoleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = m.sessionName
	})
	provider = aws.NewCredentialsCache(p)
	m.providers[key] = provider
	return provider
}

// GetS3ForStorage translates the storage section of the config into options.
func (m *Manager) GetS3ForStorage(ctx context.Context, sc config.StorageConfig) (*S3Client, error) {
	var opts []S3Option
	if sc.Role != "" {
		opts = append(opts, WithRole(sc.Role))
	}
	if sc.Region != "" {
		opts = append(opts, WithRegion(sc.Region))
	}
	if sc.Endpoint != "" {
		opts = append(opts, WithEndpoint(sc.Endpoint))
	}
	if sc.PathStyle {
		opts = append(opts, WithPathStyle())
	}
	if sc.AccessKeyID != "" && sc.SecretAccessKey != "" {
		opts = append(opts, WithStaticCredentials(sc.AccessKeyID, sc.SecretAccessKey))
	}
	return m.GetS3(ctx, opts...)
}
