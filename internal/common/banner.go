package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner writes the version banner to w.
func PrintBanner(w io.Writer, config *Config, logger *Logger) {
	version := GetVersion()
	build := GetBuild()
	commit := GetGitCommit()

	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 56
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	art := []string{
		` 8888888b.  8888888b.  8888888 8888888b.`,
		` 888  "Y88b 888   Y88b   888   888   Y88b`,
		` 888    888 888    888   888   888    888`,
		` 888    888 888   d88P   888   888   d88P`,
		` 888    888 8888888P"    888   8888888P"`,
		` 888    888 888 T88b     888   888`,
		` 888  .d88P 888  T88b    888   888`,
		` 8888888P"  888   T88b 8888888 888`,
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "%s\n", hr)
	fmt.Fprintf(w, "\n")
	for _, line := range art {
		fmt.Fprintf(w, "%s%s%s\n", textColor, line, banner.ColorReset)
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "%s  Dividend Reinvestment Portfolio Tracker%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "%s\n", hr)
	fmt.Fprintf(w, "\n")

	kvPad := 14
	kvLines := [][2]string{
		{"Version", version},
		{"Build", build},
		{"Commit", commit},
		{"Schema", SchemaVersion},
		{"Environment", config.Environment},
		{"Storage", config.Storage.Backend + " " + config.Storage.Path},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(w, "%s  %-*s %s%s\n", textColor, kvPad, kv[0], kv[1], banner.ColorReset)
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "%s\n", hr)
	fmt.Fprintf(w, "\n")

	logger.Debug().
		Str("version", version).
		Str("build", build).
		Str("commit", commit).
		Str("schema", SchemaVersion).
		Str("environment", config.Environment).
		Str("storage_backend", config.Storage.Backend).
		Msg("Version banner printed")
}
