// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"strings"
	"text/template"
)

// SystemPrompt is sent as the system message to chat-style providers.
const SystemPrompt = "You are an expert code reviewer. Respond only with valid JSON."

// Temperature is used for every provider.
const Temperature = 0.3

const analysisPromptText = `You are an expert code reviewer. Analyze the following code and identify:
1. Logic errors or potential bugs
2. Performance issues
3. Security vulnerabilities
4. Code quality problems
5. Best practice violations

Code:
` + "```" + `{{.Language}}
{{.Code}}
` + "```" + `

File: {{.FilePath}}
Language: {{.Language}}

Provide a detailed analysis in JSON format with this structure:
{
    "has_errors": boolean,
    "severity": "critical" | "high" | "medium" | "low" | "none",
    "errors": [
        {
            "line": number or null,
            "type": string (e.g., "logic_error", "security_issue", "performance", "best_practice"),
            "severity": "critical" | "high" | "medium" | "low",
            "message": string,
            "suggestion": string
        }
    ],
    "summary": string
}

Be thorough but concise. Focus on actual issues, not stylistic preferences.`

var analysisPrompt = template.Must(template.New("analysis").Parse(analysisPromptText))

type promptData struct {
	Language string
	Code     string
	FilePath string
}

// RenderPrompt builds the analysis prompt for one file.
func RenderPrompt(language, code, filePath string) (string, error) {
	var b strings.Builder
	if err := analysisPrompt.Execute(&b, promptData{Language: language, Code: code, FilePath: filePath}); err != nil {
		return "", err
	}
	return b.String(), nil
}
