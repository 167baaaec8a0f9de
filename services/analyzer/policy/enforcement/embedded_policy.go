// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package enforcement embeds the credential patterns into the binary so the
redaction rules travel with the executable and cannot be edited on the host.
*/
package enforcement

import (
	_ "embed"
)

// SecretPatterns holds the raw content of secret_patterns.yaml.
//
// Usage:
//
//	err := yaml.Unmarshal(enforcement.SecretPatterns, &targetStruct)
//
//go:embed secret_patterns.yaml
var SecretPatterns []byte
