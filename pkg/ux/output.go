// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the analyzer CLI.
//
// Output is styled with lipgloss when written to a terminal and falls back
// to plain "key: value" lines otherwise, so cron logs and pipes stay
// greppable.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Key     lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Key:     lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconNone    Icon = ""
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// BoolIcon maps a pass/fail flag to an icon.
func BoolIcon(ok bool) Icon {
	if ok {
		return IconSuccess
	}
	return IconError
}

// Mode selects styled or plain output.
type Mode int

const (
	ModePlain Mode = iota
	ModeStyled
)

// DetectMode returns ModeStyled when f is a terminal and NO_COLOR is unset.
func DetectMode(f *os.File) Mode {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return ModePlain
	}
	fd := f.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return ModeStyled
	}
	return ModePlain
}

// Row is one line of a key/value table.
type Row struct {
	Key    string
	Value  string
	Status Icon
}

// Printer writes CLI output in one mode.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// Stdout returns a Printer for os.Stdout with the detected mode.
func Stdout() *Printer {
	return NewPrinter(os.Stdout, DetectMode(os.Stdout))
}

// Styled reports whether the printer emits styling.
func (p *Printer) Styled() bool { return p.mode == ModeStyled }

// Success prints a success line.
func (p *Printer) Success(text string) {
	if !p.Styled() {
		fmt.Fprintf(p.w, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	if !p.Styled() {
		fmt.Fprintf(p.w, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	if !p.Styled() {
		fmt.Fprintf(p.w, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Table prints rows under a title, boxed when styled.
//
// Plain output is a "=== title ===" header followed by "key: value" lines.
func (p *Printer) Table(title string, rows []Row) {
	if !p.Styled() {
		fmt.Fprintf(p.w, "\n=== %s ===\n", title)
		for _, r := range rows {
			fmt.Fprintf(p.w, "%s: %s\n", r.Key, r.Value)
		}
		return
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r.Key))
	}

	lines := []string{Styles.Title.Render(title)}
	for _, r := range rows {
		icon := r.Status.Render()
		if icon == "" {
			icon = " "
		}
		key := Styles.Key.Render(r.Key + strings.Repeat(" ", width-len(r.Key)))
		lines = append(lines, fmt.Sprintf("%s %s  %s", icon, key, r.Value))
	}

	box := Styles.Box
	for _, r := range rows {
		if r.Status == IconError {
			box = Styles.ErrorBox
			break
		}
	}
	fmt.Fprintln(p.w, box.Render(strings.Join(lines, "\n")))
}
