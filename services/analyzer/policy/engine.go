// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package policy scrubs credentials from source text before it is sent to
// an external analysis backend.
package policy

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/policy/enforcement"
	"gopkg.in/yaml.v3"
)

// Engine holds the compiled credential patterns.
//
// # Thread Safety
//
// Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	classifications []Classification
}

// New builds an Engine from the patterns embedded in the binary.
func New() (*Engine, error) {
	return Parse(enforcement.SecretPatterns)
}

// Parse builds an Engine from a YAML pattern document.
//
// It unmarshals the document, compiles every regex and sorts
// classifications from highest to lowest priority.
func Parse(data []byte) (*Engine, error) {
	var file patternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the pattern file: %w", err)
	}
	if err := file.compile(); err != nil {
		return nil, err
	}
	file.sortByPriority()
	return &Engine{classifications: file.Classifications}, nil
}

// Redact replaces every credential in content with a "[REDACTED:<id>]"
// marker.
//
// # Description
//
// Content is processed line by line and the line structure is kept, so
// line numbers reported by the backend still point at the original file.
// Higher-priority classifications run first; a marker is never matched
// again by a later pattern.
//
// # Outputs
//
//   - string: Content with credentials replaced.
//   - []Finding: One entry per replacement, in line order.
func (e *Engine) Redact(content string) (string, []Finding) {
	var findings []Finding
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		for _, c := range e.classifications {
			for j := range c.Patterns {
				var n int
				line, n = c.Patterns[j].redactLine(line)
				for range n {
					findings = append(findings, Finding{
						LineNumber:         i + 1,
						ClassificationName: c.Name,
						PatternID:          c.Patterns[j].ID,
						Confidence:         c.Patterns[j].Confidence,
					})
				}
			}
		}
		lines[i] = line
	}
	if len(findings) == 0 {
		return content, nil
	}
	return strings.Join(lines, "\n"), findings
}

func (p *Pattern) redactLine(line string) (string, int) {
	matches := p.compiled.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return line, 0
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if p.group > 0 && m[2*p.group] >= 0 {
			start, end = m[2*p.group], m[2*p.group+1]
		}
		b.WriteString(line[last:start])
		b.WriteString("[REDACTED:")
		b.WriteString(p.ID)
		b.WriteString("]")
		last = end
	}
	b.WriteString(line[last:])
	return b.String(), len(matches)
}
