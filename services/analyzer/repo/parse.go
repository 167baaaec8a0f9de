// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package repo

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/CodeAnalyzer/services/analyzer/datatypes"
)

const fieldSep = "\x1f"

// logFormat emits one record per commit: hash, author name, author email,
// commit time, raw body, then the --name-only file list.
const logFormat = "%x1e%H%x1f%an%x1f%ae%x1f%ct%x1f%B%x1f"

// recordHeader matches the fixed fields opening a record. A body may
// contain the separator bytes, so records are found by header and the body
// runs up to the last field separator of the record.
var recordHeader = regexp.MustCompile("\x1e([0-9a-f]{4,64})\x1f([^\x1f\n]*)\x1f([^\x1f\n]*)\x1f([^\x1f\n]*)\x1f")

var credentialsPattern = regexp.MustCompile(`://[^/@\s]+@`)

// parseLog converts git log output produced with logFormat.
func parseLog(out string) ([]datatypes.CommitRecord, error) {
	headers := recordHeader.FindAllStringSubmatchIndex(out, -1)
	if len(headers) == 0 {
		if strings.TrimSpace(out) != "" {
			return nil, errors.New("malformed log output: no commit header")
		}
		return nil, nil
	}
	if lead := out[:headers[0][0]]; strings.TrimSpace(lead) != "" {
		return nil, fmt.Errorf("malformed log output: %d unexpected leading bytes", len(lead))
	}

	commits := make([]datatypes.CommitRecord, 0, len(headers))
	for i, h := range headers {
		end := len(out)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		id := out[h[2]:h[3]]
		rest := out[h[1]:end]

		last := strings.LastIndex(rest, fieldSep)
		if last < 0 {
			return nil, fmt.Errorf("commit %s: malformed log record", id)
		}

		stamp := out[h[8]:h[9]]
		secs, err := strconv.ParseInt(strings.TrimSpace(stamp), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("commit %s: bad timestamp %q: %w", id, stamp, err)
		}

		commits = append(commits, datatypes.CommitRecord{
			ID:            id,
			AuthorName:    out[h[4]:h[5]],
			AuthorEmail:   out[h[6]:h[7]],
			Timestamp:     time.Unix(secs, 0).UTC(),
			Message:       strings.TrimRight(rest[:last], "\n"),
			ModifiedFiles: fileList(rest[last+1:]),
		})
	}
	return commits, nil
}

func fileList(s string) []string {
	files := []string{}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		files = append(files, line)
	}
	return files
}

// redactURL hides credentials embedded in a remote URL or git message.
func redactURL(s string) string {
	return credentialsPattern.ReplaceAllString(s, "://***@")
}
