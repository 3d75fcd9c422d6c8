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

package config

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Keys whose sequence values are concatenated across layers.
var sequenceKeys = map[string]bool{
	"load":       true,
	"source":     true,
	"infiles":    true,
	"outfiles":   true,
	"posargs":    true,
	"offscript":  true,
	"prescript":  true,
	"postscript": true,
	"keywords":   true,
}

// Keys whose mapping values are key-unioned across layers.
var mappingKeys = map[string]bool{
	"export":         true,
	"append":         true,
	"defaults":       true,
	"conflicts":      true,
	"versions":       true,
	"optargs":        true,
	"parameters":     true,
	"parameterpaths": true,
	"filekeys":       true,
	"filevars":       true,
	"fileoptions":    true,
}

// IsAccumulating reports whether values of key accumulate across layers.
func IsAccumulating(key string) bool {
	return sequenceKeys[key] || mappingKeys[key]
}

// Config is the effective configuration built from merged layers.
type Config struct {
	root    *yaml.Node
	sources []string
	merged  map[string]bool
}

// New returns an empty configuration.
func New() *Config {
	return &Config{
		root:   &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"},
		merged: make(map[string]bool),
	}
}

// Merge overlays l onto the configuration. The layer is copied, so later
// changes to either side do not leak into the other.
func (c *Config) Merge(l *Layer) error {
	if c.merged[l.Source] {
		return errors.Wrapf(ErrDuplicateLayer, "%s", l.Source)
	}
	c.merged[l.Source] = true
	c.sources = append(c.sources, l.Source)

	for i := 0; i+1 < len(l.root.Content); i += 2 {
		key, val := l.root.Content[i], l.root.Content[i+1]
		idx := indexOf(c.root, key.Value)
		if idx < 0 {
			c.root.Content = append(c.root.Content, cloneNode(key), initialValue(key.Value, val))
			continue
		}
		cur := c.root.Content[idx+1]
		switch {
		case sequenceKeys[key.Value]:
			c.root.Content[idx+1] = concatSequences(cur, val)
		case mappingKeys[key.Value] && cur.Kind == yaml.MappingNode && val.Kind == yaml.MappingNode:
			unionMappings(cur, val)
		case mappingKeys[key.Value] && isNull(val):
			// an empty mapping adds nothing
		default:
			c.root.Content[idx+1] = cloneNode(val)
		}
	}
	return nil
}

// Sources lists the merged layer sources in merge order.
func (c *Config) Sources() []string {
	return append([]string(nil), c.sources...)
}

// Has reports whether key is set at the top level.
func (c *Config) Has(key string) bool {
	return indexOf(c.root, key) >= 0
}

// Scalar returns the text of a top-level scalar key.
func (c *Config) Scalar(key string) (string, bool) {
	idx := indexOf(c.root, key)
	if idx < 0 || c.root.Content[idx+1].Kind != yaml.ScalarNode || isNull(c.root.Content[idx+1]) {
		return "", false
	}
	return c.root.Content[idx+1].Value, true
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.root)
}

func indexOf(mapping *yaml.Node, key string) int {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func initialValue(key string, val *yaml.Node) *yaml.Node {
	if sequenceKeys[key] {
		return asSequence(val)
	}
	return cloneNode(val)
}

// asSequence copies n as a sequence; a scalar becomes a one-item sequence
// and null becomes empty.
func asSequence(n *yaml.Node) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	switch {
	case n.Kind == yaml.SequenceNode:
		seq.Style = n.Style
		for _, item := range n.Content {
			seq.Content = append(seq.Content, cloneNode(item))
		}
	case isNull(n):
	default:
		seq.Content = append(seq.Content, cloneNode(n))
	}
	return seq
}

func concatSequences(cur, val *yaml.Node) *yaml.Node {
	out := asSequence(cur)
	out.Content = append(out.Content, asSequence(val).Content...)
	return out
}

// unionMappings adds the entries of src to dst; a key present in both keeps
// its position and takes the value from src.
func unionMappings(dst, src *yaml.Node) {
	for i := 0; i+1 < len(src.Content); i += 2 {
		k, v := src.Content[i], src.Content[i+1]
		if idx := indexOf(dst, k.Value); idx >= 0 {
			dst.Content[idx+1] = cloneNode(v)
			continue
		}
		dst.Content = append(dst.Content, cloneNode(k), cloneNode(v))
	}
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Content != nil {
		out.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			out.Content[i] = cloneNode(c)
		}
	}
	// aliases point into the source document; keep the target resolvable
	if n.Alias != nil {
		out.Alias = cloneNode(n.Alias)
	}
	return &out
}
