package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/user/secaudit/pkg/engine"
)

// Out is where all printers write
var Out io.Writer = os.Stdout

var (
	success    = color.New(color.FgGreen, color.Bold).SprintfFunc()
	info       = color.New(color.FgCyan, color.Bold).SprintfFunc()
	warning    = color.New(color.FgYellow, color.Bold).SprintfFunc()
	errorColor = color.New(color.FgRed, color.Bold).SprintfFunc()

	criticalColor = color.New(color.BgRed, color.FgWhite, color.Bold).SprintfFunc()
	highColor     = color.New(color.FgRed, color.Bold).SprintfFunc()
	mediumColor   = color.New(color.FgYellow, color.Bold).SprintfFunc()
	lowColor      = color.New(color.FgBlue, color.Bold).SprintfFunc()
)

const (
	WarningEmoji   = "⚠️"
	CheckEmoji     = "✅"
	CrossEmoji     = "❌"
	LockEmoji      = "🔒"
	MagnifierEmoji = "🔍"
	FolderEmoji    = "📁"
	ChartEmoji     = "📊"
	ShieldEmoji    = "🛡️"
)

func PrintBanner() {
	fmt.Fprintf(Out, "\n%s Security Audit Engine %s\n________________________________________________\n\n", LockEmoji, ShieldEmoji)
}

func PrintProgress(message string) {
	fmt.Fprintf(Out, "%s %s\n", MagnifierEmoji, info(message))
}

func PrintError(message string, err error) {
	fmt.Fprintf(Out, "%s %s: %v\n", CrossEmoji, errorColor(message), err)
}

func PrintSuccess(message string) {
	fmt.Fprintf(Out, "%s %s\n", CheckEmoji, success(message))
}

func PrintWarning(message string) {
	fmt.Fprintf(Out, "%s %s\n", WarningEmoji, warning(message))
}

// ColorForSeverity returns the color function for a severity level
func ColorForSeverity(severity engine.Severity) func(string, ...interface{}) string {
	switch severity {
	case engine.SeverityCritical:
		return criticalColor
	case engine.SeverityHigh:
		return highColor
	case engine.SeverityMedium:
		return mediumColor
	case engine.SeverityLow:
		return lowColor
	default:
		return info
	}
}

// EmojiForSeverity returns the emoji for a severity level
func EmojiForSeverity(severity engine.Severity) string {
	switch severity {
	case engine.SeverityCritical:
		return "🚨"
	case engine.SeverityHigh:
		return WarningEmoji
	case engine.SeverityMedium:
		return "⚡"
	case engine.SeverityLow:
		return "ℹ️"
	default:
		return MagnifierEmoji
	}
}
