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
	"fmt"
	"io"

	"clusterq/pkg/discovery"
	"clusterq/pkg/interp"
	"clusterq/pkg/logging"
)

// List writes the available versions and the parameter sets found on disk,
// marking the defaults. A parameter set that cannot be listed is reported
// and the listing goes on.
func (s *Session) List(w io.Writer) {
	if len(s.Settings.Versions) > 0 {
		fmt.Fprintln(w, "Available versions:")
		versions := discovery.Tree{}
		for v := range s.Settings.Versions {
			versions[v] = discovery.Tree{}
		}
		discovery.Render(w, versions, []string{s.Settings.Defaults.Version}, 1)
	}

	defaults := interp.Context(s.Settings.Defaults.ParameterKeys)
	for _, pp := range s.ParameterPaths {
		root, segs := discovery.Split(pp.Template, nil)
		tree, err := discovery.Discover(s.Fs, root, segs, nil)
		if err != nil {
			logging.Error("Cannot list parameter set %s: %v", pp.Set, err)
			continue
		}
		if len(tree) == 0 {
			continue
		}
		fmt.Fprintf(w, "Available %s parameter sets:\n", pp.Set)
		discovery.Render(w, tree, discovery.DefaultNames(segs, nil, defaults), 1)
	}
}
