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

// Package logging provides the printf-style leveled logger shared by the
// clusterq commands and libraries.
package logging

import (
	"bytes"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	logger   = newLogger(os.Stderr)
	exitFunc = os.Exit

	prefixes = map[logrus.Level]*color.Color{
		logrus.DebugLevel: color.New(color.Faint),
		logrus.WarnLevel:  color.New(color.FgYellow, color.Bold),
		logrus.ErrorLevel: color.New(color.FgRed, color.Bold),
	}
)

func init() {
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}
}

// prefixFormatter renders "level: message" lines; info lines carry no prefix.
type prefixFormatter struct{}

func (prefixFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	if c, ok := prefixes[e.Level]; ok {
		b.WriteString(c.Sprint(e.Level.String() + ":"))
		b.WriteByte(' ')
	}
	b.WriteString(e.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(prefixFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetVerbose enables debug messages.
func SetVerbose(verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

// DisableColor turns off colored prefixes regardless of the terminal.
func DisableColor() {
	color.NoColor = true
}

// Debug logs a message that is only shown in verbose mode.
func Debug(f string, a ...any) {
	logger.Debugf(f, a...)
}

// Info logs an informational message.
func Info(f string, a ...any) {
	logger.Infof(f, a...)
}

// Warn logs a warning.
func Warn(f string, a ...any) {
	logger.Warnf(f, a...)
}

// Error logs an error without stopping the process.
func Error(f string, a ...any) {
	logger.Errorf(f, a...)
}

// Fatal logs an error and exits with status 1.
func Fatal(f string, a ...any) {
	logger.Errorf(f, a...)
	exitFunc(1)
}
