// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
)

const emailTemplate = `<html>
<head>
<style>
body { font-family: Arial, sans-serif; color: #333; }
.container { max-width: 800px; margin: 0 auto; }
.header { background-color: #f44336; color: white; padding: 20px; text-align: center; }
.content { padding: 20px; background-color: #f9f9f9; }
.section { margin: 20px 0; padding: 15px; background-color: white; border-radius: 5px; }
.error-critical { border-left: 5px solid #d32f2f; }
.error-high { border-left: 5px solid #f57c00; }
.error-medium { border-left: 5px solid #fbc02d; }
.error-low { border-left: 5px solid #388e3c; }
.file-name { font-weight: bold; color: #1976d2; margin-top: 10px; }
.error-list { margin: 10px 0; padding-left: 20px; }
.error-item { margin: 10px 0; padding: 10px; background-color: #f5f5f5; border-radius: 3px; }
.severity { font-weight: bold; padding: 2px 8px; border-radius: 3px; display: inline-block; }
.severity-critical { background-color: #d32f2f; color: white; }
.severity-high { background-color: #f57c00; color: white; }
.severity-medium { background-color: #fbc02d; color: black; }
.severity-low { background-color: #388e3c; color: white; }
.footer { color: #999; font-size: 12px; margin-top: 30px; padding-top: 20px; border-top: 1px solid #ddd; }
</style>
</head>
<body>
<div class="container">
<div class="header"><h1>&#9888;&#65039; Code Analysis Issues Detected</h1></div>
<div class="content">
<p>Hello <strong>{{.AuthorName}}</strong>,</p>
<p>AI code analysis has detected issues in your recent commit:</p>
<div class="section">
<p><strong>Branch:</strong> {{.Branch}}</p>
<p><strong>Folder:</strong> {{.Folder}}</p>
{{- if .CommitID}}
<p><strong>Commit:</strong> {{shortID .CommitID}}</p>
{{- end}}
<p><strong>Analysis Tool:</strong> AI Code Analyzer</p>
</div>
{{- range .Files}}
<div class="section error-{{fileClass .Severity}}">
<div class="file-name">{{.FilePath}}</div>
<p><strong>Language:</strong> {{or .Language "Unknown"}}</p>
{{- if .Errors}}
<div class="error-list">
{{- range .Errors}}
<div class="error-item">
<span class="severity severity-{{itemClass .Severity}}">{{upper (itemClass .Severity)}}</span>
<strong>{{.Type.Title}}</strong>
{{- if .Line.Valid}} (Line {{.Line.Value}}){{end}}<br>
<p>{{.Message}}</p>
{{- if .Suggestion}}
<p><em>Suggestion: {{.Suggestion}}</em></p>
{{- end}}
</div>
{{- end}}
</div>
{{- end}}
{{- if .Summary}}
<p><strong>Summary:</strong> {{.Summary}}</p>
{{- end}}
</div>
{{- end}}
<div class="section">
<p><strong>Next Steps:</strong></p>
<ul>
<li>Review the issues listed above</li>
<li>Make the necessary fixes in your code</li>
<li>Commit and push the corrected code</li>
<li>The analyzer will re-check on your next commit</li>
</ul>
</div>
<div class="footer">
<p>This is an automated message from AI Code Analyzer. Please do not reply to this email.</p>
<p>For questions or to disable notifications, contact your project administrator.</p>
</div>
</div>
</div>
</body>
</html>
`

var bodyTemplate = template.Must(template.New("email").Funcs(template.FuncMap{
	"upper":     strings.ToUpper,
	"fileClass": fileClass,
	"itemClass": itemClass,
	"shortID": func(id string) string {
		return datatypes.CommitRecord{ID: id}.ShortID()
	},
}).Parse(emailTemplate))

// RenderHTML renders the HTML body of n.
func RenderHTML(n Notification) (string, error) {
	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("rendering email: %w", err)
	}
	return buf.String(), nil
}

// fileClass maps a report severity to a border class. Unknown values and
// "none" fall back to low.
func fileClass(s datatypes.Severity) string {
	return severityClass(s, datatypes.SeverityLow)
}

// itemClass maps a finding severity to a badge class, defaulting to medium.
func itemClass(s datatypes.Severity) string {
	return severityClass(s, datatypes.SeverityMedium)
}

func severityClass(s, fallback datatypes.Severity) string {
	switch n := s.Normalize(); n {
	case datatypes.SeverityCritical, datatypes.SeverityHigh, datatypes.SeverityMedium, datatypes.SeverityLow:
		return string(n)
	default:
		return string(fallback)
	}
}
