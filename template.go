// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package microgemm

import (
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/gomlx/exceptions"
)

// Templates here are substitution-only: every loop or branch needed to
// produce a per-shape specialization (remainder unrolling, tile dispatch
// chains) is computed in Go and passed in as already-rendered text. This
// keeps the template layer a plain string-substitution collaborator.

var (
	muTemplates     sync.Mutex
	parsedTemplates = make(map[string]*template.Template)
)

// render executes the named template over data and returns the text.
// Template parse errors and missing bindings are programming errors and
// panic with a stack trace.
func render(name, text string, data any) string {
	muTemplates.Lock()
	t, found := parsedTemplates[name]
	if !found {
		var err error
		t, err = template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			muTemplates.Unlock()
			exceptions.Panicf("microgemm: failed to parse template %q: %v", name, err)
		}
		parsedTemplates[name] = t
	}
	muTemplates.Unlock()

	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		exceptions.Panicf("microgemm: failed to render template %q: %v", name, err)
	}
	return sb.String()
}

// indentedBuffer accumulates generated lines with the current indentation
// level, four spaces per level.
type indentedBuffer struct {
	sb     strings.Builder
	indent int
}

func (b *indentedBuffer) in()  { b.indent++ }
func (b *indentedBuffer) out() { b.indent-- }

func (b *indentedBuffer) writeln(line string) {
	if line != "" {
		for range b.indent {
			b.sb.WriteString("    ")
		}
		b.sb.WriteString(line)
	}
	b.sb.WriteByte('\n')
}

func (b *indentedBuffer) writelnf(format string, args ...any) {
	b.writeln(fmt.Sprintf(format, args...))
}

func (b *indentedBuffer) String() string { return b.sb.String() }
