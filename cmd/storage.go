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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cardinalhq/gamerunner/config"
)

// addStorageFlags registers the flags that override the storage section of
// the configuration.
func addStorageFlags(fs *pflag.FlagSet) {
	fs.String("provider", "", "Storage provider: aws, azure or file")
	fs.String("bucket", "", "Bucket (or Azure container) holding the game files")
	fs.String("prefix", "", "Key prefix to scan")
	fs.String("region", "", "AWS region of the bucket")
	fs.String("role", "", "AWS IAM role to assume for bucket access")
	fs.String("root", "", "Base directory for the file provider")
}

// loadConfig reads configuration and applies any storage flags the user set
// on the command line.
func loadConfig(c *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyStorageFlags(c.Flags(), &cfg.Storage); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyStorageFlags(fs *pflag.FlagSet, sc *config.StorageConfig) error {
	overrides := []struct {
		flag string
		dst  *string
	}{
		{"provider", &sc.Provider},
		{"bucket", &sc.Bucket},
		{"prefix", &sc.Prefix},
		{"region", &sc.Region},
		{"role", &sc.Role},
		{"root", &sc.Root},
	}
	for _, o := range overrides {
		if fs.Lookup(o.flag) == nil || !fs.Changed(o.flag) {
			continue
		}
		v, err := fs.GetString(o.flag)
		if err != nil {
			return fmt.Errorf("failed to get %s flag: %w", o.flag, err)
		}
		*o.dst = v
	}
	return nil
}
