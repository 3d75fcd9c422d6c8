// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package run

import (
	"os"
	"os/user"

	"clusterq/pkg/interp"
)

// SystemNames returns the naming context of the calling user and host.
// Lookups that fail leave their key unset.
func SystemNames() interp.Context {
	names := interp.Context{}
	if u, err := user.Current(); err == nil {
		names["user"] = u.Username
		names["home"] = u.HomeDir
		if g, err := user.LookupGroupId(u.Gid); err == nil {
			names["group"] = g.Name
		}
	}
	if home := os.Getenv("HOME"); home != "" {
		names["home"] = home
	}
	if host, err := os.Hostname(); err == nil {
		names["host"] = host
	}
	return names
}
