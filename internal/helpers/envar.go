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

// Package helpers holds small process-level utilities shared by the commands
// and the download path.
package helpers

import (
	"os"
	"strings"
)

// EnvEnabled reports whether the named environment variable switches a
// feature on. "true", "1", "yes" and "on" (any case) enable it; "false",
// "0", "no" and "off" disable it. Unset or empty returns def. Any other
// non-empty value counts as enabled, so DEBUG=please behaves like DEBUG=1.
func EnvEnabled(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "":
		return def
	case "false", "0", "no", "off":
		return false
	default:
		return true
	}
}
