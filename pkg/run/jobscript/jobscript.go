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

package jobscript

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"clusterq/pkg/logging"

	"github.com/spf13/afero"
)

// JobScriptTemplate is the Go template for the script handed to the
// scheduler on standard input.
const JobScriptTemplate = `#!{{.Shell}}
{{- range .Directives}}
{{.}}
{{- end}}
{{- range .Load}}
{{.}}
{{- end}}
{{- range .Source}}
source {{quote .}}
{{- end}}
{{- range $key, $value := .Export}}
export {{$key}}={{quote $value}}
{{- end}}
{{- if .WorkDir}}
cd {{quote .WorkDir}}
{{- end}}
{{- range .Prescript}}
{{.}}
{{- end}}
{{.Command}}
{{- range .Postscript}}
{{.}}
{{- end}}
`

// ScriptOptions holds the already interpolated pieces of a job script.
type ScriptOptions struct {
	JobName    string
	Shell      string
	Directives []string
	Load       []string
	Source     []string
	Export     map[string]string
	WorkDir    string
	Prescript  []string
	Command    string
	Postscript []string
}

// Quote returns s as a single shell word.
func Quote(s string) string {
	if s != "" && strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./:=@%+,", r)
}

// GenerateJobScript renders the job script.
func GenerateJobScript(opts ScriptOptions) (string, error) {
	if opts.Command == "" {
		return "", fmt.Errorf("job %s has no command to run", opts.JobName)
	}
	shell := opts.Shell
	if shell == "" {
		shell = "/bin/bash"
	}
	opts.Shell = shell

	tmpl, err := template.New("jobScript").Funcs(template.FuncMap{"quote": Quote}).Parse(JobScriptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse job script template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, opts); err != nil {
		return "", fmt.Errorf("failed to execute job script template: %w", err)
	}
	return buf.String(), nil
}

// WriteJobScript stores the script at path so the submitted job can be
// inspected later.
func WriteJobScript(fs afero.Fs, path, content string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for job script %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write job script %s: %w", path, err)
	}
	logging.Debug("Job script %s:\n%s", path, content)
	return nil
}
