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
	"testing"

	"clusterq/pkg/interp"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	. "gopkg.in/check.v1"
)

type MySuite struct{}

var _ = Suite(&MySuite{})

func Test(t *testing.T) {
	TestingT(t)
}

const queueConf = `{
  "sbmtcmd": "sbatch",
  "sbmtregex": "Submitted batch job (\\d+)",
  "statcmd": ["squeue", "--noheader", "-o", "%i %t", "-j"],
  "statregex": "\\d+ (\\w+)",
  "ready_states": ["CD", "F"],
  "queued_states": ["PD", "R"],
  "warn_errors": ["slurm_load_jobs error: Invalid job id specified"]
}`

const clusterConf = `{
  "clustername": "Nodo",
  "load": ["module purge"],
  "export": {"OMP_NUM_THREADS": "1"}
}`

const packageConf = `{
  "displayname": "ORCA",
  "iospec": "orca",
  "load": ["module load orca"],
  "export": {"RSH_COMMAND": "ssh"},
  "versions": {"5.0": {"executable": "/opt/orca/5.0/orca"}},
  "defaults": {"version": "5.0"},
  "parameterpaths": {"basis": "/opt/basis/{cluster}/{basis}"}
}`

const ioSpec = `{
  "infiles": ["inp"],
  "parametersets": ["basis"],
  "parameterkeys": ["basis"],
  "filekeys": {"hasGuess": "gbw", "hasBasis": "basis"},
  "conflicts": {
    "hasGuess & !hasBasis": "missing basis set",
    "hasBasis & !hasGuess": "basis without guess"
  }
}`

func mustParse(c *C, source, data string) *Layer {
	l, err := ParseLayer(source, []byte(data))
	c.Assert(err, IsNil)
	return l
}

func testFs(c *C) (afero.Fs, Paths) {
	fs := afero.NewMemMapFs()
	paths := Paths{ConfigDir: "/etc/clusterq", HomeDir: "/home/ana"}
	files := map[string]string{
		"/etc/clusterq/queueconf.json":                 queueConf,
		"/etc/clusterq/clusterconf.json":               clusterConf,
		"/etc/clusterq/packages/orca/packageconf.json": packageConf,
		"/etc/clusterq/iospecs/orca/iospec.json":       ioSpec,
	}
	for path, data := range files {
		c.Assert(afero.WriteFile(fs, path, []byte(data), 0644), IsNil)
	}
	return fs, paths
}

func (s *MySuite) TestMergeScalarOverride(c *C) {
	cfg := New()
	c.Assert(cfg.Merge(mustParse(c, "a", "clustername: one\nload: [x]\n")), IsNil)
	c.Assert(cfg.Merge(mustParse(c, "b", "clustername: two\nload: [y]\n")), IsNil)

	name, ok := cfg.Scalar("clustername")
	c.Assert(ok, Equals, true)
	c.Check(name, Equals, "two")

	var got struct {
		Load []string `yaml:"load"`
	}
	c.Assert(cfg.root.Decode(&got), IsNil)
	c.Check(got.Load, DeepEquals, []string{"x", "y"})
}

func (s *MySuite) TestMergeMappingUnion(c *C) {
	cfg := New()
	c.Assert(cfg.Merge(mustParse(c, "a", "export: {A: '1', B: '2'}\n")), IsNil)
	c.Assert(cfg.Merge(mustParse(c, "b", "export: {B: '3', C: '4'}\n")), IsNil)

	var got struct {
		Export map[string]string `yaml:"export"`
	}
	c.Assert(cfg.root.Decode(&got), IsNil)
	c.Check(got.Export, DeepEquals, map[string]string{"A": "1", "B": "3", "C": "4"})
}

func (s *MySuite) TestMergeScalarIntoSequenceKey(c *C) {
	cfg := New()
	c.Assert(cfg.Merge(mustParse(c, "a", "load: module purge\n")), IsNil)
	c.Assert(cfg.Merge(mustParse(c, "b", "load: [module load orca]\n")), IsNil)
	c.Assert(cfg.Merge(mustParse(c, "c", "load:\n")), IsNil)

	var got struct {
		Load []string `yaml:"load"`
	}
	c.Assert(cfg.root.Decode(&got), IsNil)
	c.Check(got.Load, DeepEquals, []string{"module purge", "module load orca"})
}

func (s *MySuite) TestMergeDeterminism(c *C) {
	layers := []string{queueConf, clusterConf, packageConf, ioSpec}
	build := func() []byte {
		cfg := New()
		for i, data := range layers {
			c.Assert(cfg.Merge(mustParse(c, string(rune('a'+i)), data)), IsNil)
		}
		out, err := cfg.YAML()
		c.Assert(err, IsNil)
		return out
	}
	c.Check(string(build()), Equals, string(build()))
}

func (s *MySuite) TestOverridingScalarLeavesAccumulatingKeys(c *C) {
	a := "clustername: one\nload: [x]\nexport: {A: '1'}\n"
	b := "clustername: two\nload: [y]\nexport: {B: '2'}\n"
	bPrime := "clustername: three\nload: [y]\nexport: {B: '2'}\n"

	build := func(second string) *Config {
		cfg := New()
		c.Assert(cfg.Merge(mustParse(c, "a", a)), IsNil)
		c.Assert(cfg.Merge(mustParse(c, "b", second)), IsNil)
		return cfg
	}
	type view struct {
		ClusterName string            `yaml:"clustername"`
		Load        []string          `yaml:"load"`
		Export      map[string]string `yaml:"export"`
	}
	var v1, v2 view
	c.Assert(build(b).root.Decode(&v1), IsNil)
	c.Assert(build(bPrime).root.Decode(&v2), IsNil)

	c.Check(v1.ClusterName, Equals, "two")
	c.Check(v2.ClusterName, Equals, "three")
	c.Check(v2.Load, DeepEquals, v1.Load)
	c.Check(v2.Export, DeepEquals, v1.Export)
	c.Check(v1.Load, DeepEquals, []string{"x", "y"})
	c.Check(v1.Export, DeepEquals, map[string]string{"A": "1", "B": "2"})
}

func (s *MySuite) TestMergeDoesNotAliasLayer(c *C) {
	layer := mustParse(c, "a", "load: [x]\n")
	cfg := New()
	c.Assert(cfg.Merge(layer), IsNil)
	c.Assert(cfg.Merge(mustParse(c, "b", "load: [y]\n")), IsNil)
	c.Check(layer.root.Content[1].Content, HasLen, 1)
}

func (s *MySuite) TestDuplicateLayer(c *C) {
	cfg := New()
	c.Assert(cfg.Merge(mustParse(c, "a", "x: 1\n")), IsNil)
	err := cfg.Merge(mustParse(c, "a", "x: 2\n"))
	c.Check(errors.Is(err, ErrDuplicateLayer), Equals, true)
}

func (s *MySuite) TestParseLayerMalformed(c *C) {
	_, err := ParseLayer("bad.json", []byte("{not json"))
	c.Check(errors.Is(err, ErrMalformedConfig), Equals, true)

	_, err = ParseLayer("list.json", []byte("[1, 2]"))
	c.Check(errors.Is(err, ErrMalformedConfig), Equals, true)

	l, err := ParseLayer("empty.json", nil)
	c.Assert(err, IsNil)
	c.Check(l.Keys(), HasLen, 0)
}

func (s *MySuite) TestLayerKeysKeepOrder(c *C) {
	l := mustParse(c, "a", "zeta: 1\nalpha: 2\nmid: 3\n")
	c.Check(l.Keys(), DeepEquals, []string{"zeta", "alpha", "mid"})
}

func (s *MySuite) TestLoad(c *C) {
	fs, paths := testFs(c)
	c.Assert(afero.WriteFile(fs, "/home/ana/.clusterq/orca/packageconf.json",
		[]byte(`{"defaults": {"version": "6.0"}, "versions": {"6.0": {"executable": "/home/ana/orca6"}}}`), 0644), IsNil)

	cfg, err := Load(fs, paths, "orca")
	c.Assert(err, IsNil)
	c.Check(cfg.Sources(), DeepEquals, []string{
		"/etc/clusterq/queueconf.json",
		"/etc/clusterq/clusterconf.json",
		"/etc/clusterq/packages/orca/packageconf.json",
		"/etc/clusterq/iospecs/orca/iospec.json",
		"/home/ana/.clusterq/orca/packageconf.json",
	})

	st, err := cfg.Settings()
	c.Assert(err, IsNil)
	c.Check(st.DisplayName, Equals, "ORCA")
	c.Check(st.ClusterName, Equals, "Nodo")
	c.Check([]string(st.SubmitCmd), DeepEquals, []string{"sbatch"})
	c.Check([]string(st.StatusCmd), DeepEquals, []string{"squeue", "--noheader", "-o", "%i %t", "-j"})
	c.Check(st.Load, DeepEquals, []string{"module purge", "module load orca"})
	c.Check(st.Export, DeepEquals, map[string]string{"OMP_NUM_THREADS": "1", "RSH_COMMAND": "ssh"})
	c.Check(st.Shell, Equals, "/bin/bash")
	c.Check(st.Conflicts, DeepEquals, Rules{
		{Expression: "hasGuess & !hasBasis", Message: "missing basis set"},
		{Expression: "hasBasis & !hasGuess", Message: "basis without guess"},
	})

	version, exe, err := st.ExecutableFor("")
	c.Assert(err, IsNil)
	c.Check(version, Equals, "6.0")
	c.Check(exe, Equals, "/home/ana/orca6")
	_, exe, err = st.ExecutableFor("5.0")
	c.Assert(err, IsNil)
	c.Check(exe, Equals, "/opt/orca/5.0/orca")
}

func (s *MySuite) TestLoadRequiredLayerMissing(c *C) {
	fs, paths := testFs(c)
	_, err := Load(fs, paths, "gaussian")
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, ErrConfigNotFound), Equals, true)
	c.Check(err, ErrorMatches, ".*/etc/clusterq/packages/gaussian/packageconf.json.*")
}

func (s *MySuite) TestLoadMalformedLayer(c *C) {
	fs, paths := testFs(c)
	c.Assert(afero.WriteFile(fs, "/home/ana/.clusterq/clusterconf.json", []byte("{oops"), 0644), IsNil)
	_, err := Load(fs, paths, "orca")
	c.Check(errors.Is(err, ErrMalformedConfig), Equals, true)
}

func (s *MySuite) TestValidateMissingKeys(c *C) {
	cfg := New()
	c.Assert(cfg.Merge(mustParse(c, "a", clusterConf)), IsNil)
	_, err := cfg.Settings()
	c.Assert(errors.Is(err, ErrMissingKey), Equals, true)
	c.Check(err, ErrorMatches, "displayname, sbmtcmd, sbmtregex, statcmd, statregex, ready_states, queued_states, warn_errors .*")
}

func (s *MySuite) TestResolveParameterPaths(c *C) {
	fs, paths := testFs(c)
	cfg, err := Load(fs, paths, "orca")
	c.Assert(err, IsNil)
	st, err := cfg.Settings()
	c.Assert(err, IsNil)

	pp, err := st.ResolveParameterPaths(interp.Context{"cluster": "nodo"})
	c.Assert(err, IsNil)
	c.Assert(pp, HasLen, 1)
	c.Check(pp[0].Set, Equals, "basis")
	c.Check(pp[0].Keys, DeepEquals, []string{"basis"})
	c.Check(pp[0].Template.String(), Equals, "/opt/basis/nodo/{basis}")
	c.Check(ParameterKeysInUse(pp), DeepEquals, []string{"basis"})
}

func (s *MySuite) TestResolveParameterPathsInvalidKey(c *C) {
	st := &Settings{
		ParameterSets:  []string{"basis"},
		ParameterKeys:  []string{"basis"},
		ParameterPaths: map[string]string{"basis": "/opt/{cluster}/{basis}"},
	}
	_, err := st.ResolveParameterPaths(interp.Context{})
	c.Check(errors.Is(err, ErrInvalidParameterKey), Equals, true)

	st.ParameterPaths["basis"] = ""
	_, err = st.ResolveParameterPaths(interp.Context{})
	c.Check(errors.Is(err, ErrMalformedConfig), Equals, true)

	delete(st.ParameterPaths, "basis")
	_, err = st.ResolveParameterPaths(interp.Context{})
	c.Check(errors.Is(err, ErrMissingKey), Equals, true)

	st.ParameterPaths["basis"] = "/opt/{basis"
	_, err = st.ResolveParameterPaths(interp.Context{})
	c.Check(errors.Is(err, interp.ErrMalformedPattern), Equals, true)
}
