// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/awnumar/memguard"
	"gopkg.in/yaml.v3"
)

// ErrNotConfigured is returned when a required credential is absent.
var ErrNotConfigured = errors.New("credential not configured")

const redacted = "[REDACTED]"

// Secret holds a credential sealed in a memguard enclave.
//
// # Description
//
// API keys and the SMTP password are read once at startup and sealed;
// they are opened only when a client is built. A nil *Secret is a valid
// "not configured" value.
//
// String, MarshalYAML, and %v formatting never reveal the value.
type Secret struct {
	enclave *memguard.Enclave
}

// NewSecret seals value. An empty value returns nil.
func NewSecret(value string) *Secret {
	if value == "" {
		return nil
	}
	return &Secret{enclave: memguard.NewEnclave([]byte(value))}
}

// Present reports whether a value is configured.
func (s *Secret) Present() bool {
	return s != nil && s.enclave != nil
}

// Reveal opens the enclave and returns a copy of the value.
func (s *Secret) Reveal() (string, error) {
	if !s.Present() {
		return "", ErrNotConfigured
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("open secret: %w", err)
	}
	defer buf.Destroy()
	return strings.Clone(buf.String()), nil
}

// String implements fmt.Stringer without revealing the value.
func (s *Secret) String() string {
	if !s.Present() {
		return ""
	}
	return redacted
}

// UnmarshalYAML seals a plain string from the config file.
func (s *Secret) UnmarshalYAML(node *yaml.Node) error {
	var value string
	if err := node.Decode(&value); err != nil {
		return err
	}
	s.enclave = nil
	if value != "" {
		s.enclave = memguard.NewEnclave([]byte(value))
	}
	return nil
}

// MarshalYAML writes a placeholder.
func (s *Secret) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}
