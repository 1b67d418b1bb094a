// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/xbusmon/pkg/xpressnet"
)

var (
	catalogFormat string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the message definition catalog",
	Long: `Print the table of message definitions the decoder recognizes.

Each definition lists the call type and scope it follows, the header and
identifier patterns ('-' marks payload bits), the data byte count ('N' for
the header's low nibble) and the protocol versions it applies to.

The catalog is checked for definitions that could match the same bytes under
overlapping versions; the command exits non-zero if any are found.`,
	RunE: runCatalog,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().StringVarP(&catalogFormat, "format", "f", "table", "Output format (table, yaml)")
}

// catalogEntry is the exported form of a definition
type catalogEntry struct {
	Name       string `yaml:"name"`
	Call       string `yaml:"call"`
	Scope      string `yaml:"scope"`
	Parity     bool   `yaml:"parity"`
	Header     string `yaml:"header,omitempty"`
	Identifier string `yaml:"identifier,omitempty"`
	Data       string `yaml:"data"`
	Versions   string `yaml:"versions"`
	Checksum   bool   `yaml:"checksum"`
}

// catalogFile is the YAML document written by --format yaml
type catalogFile struct {
	Protocol    string         `yaml:"protocol"`
	Definitions []catalogEntry `yaml:"definitions"`
}

func catalogEntries(defs []xpressnet.Definition) []catalogEntry {
	entries := make([]catalogEntry, 0, len(defs))
	for _, d := range defs {
		e := catalogEntry{
			Name:     d.Name.String(),
			Call:     fmt.Sprintf("%02b", d.Call.Type),
			Scope:    d.Call.Scope.String(),
			Parity:   d.Call.CheckParity,
			Versions: d.Versions.String(),
			Checksum: d.Checksum,
		}
		if d.Header != nil {
			e.Header = d.Header.String()
			e.Data = d.Data.String()
		} else {
			e.Data = "0"
		}
		if d.Identifier != nil {
			e.Identifier = d.Identifier.String()
		}
		entries = append(entries, e)
	}
	return entries
}

func writeCatalogYAML(w io.Writer, entries []catalogEntry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalogFile{Protocol: "xpressnet", Definitions: entries}); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return enc.Close()
}

func renderCatalogTable(entries []catalogEntry) string {
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	orDash := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Name, e.Call, e.Scope, yesNo(e.Parity), orDash(e.Header), orDash(e.Identifier), e.Data, e.Versions, yesNo(e.Checksum),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(headerStyle).
		Headers("NAME", "CALL", "SCOPE", "PARITY", "HEADER", "IDENTIFIER", "DATA", "VERSIONS", "XOR").
		Rows(rows...)
	return t.String()
}

func runCatalog(cmd *cobra.Command, args []string) error {
	defs := xpressnet.DefaultCatalog().All()
	entries := catalogEntries(defs)

	switch catalogFormat {
	case "table":
		fmt.Println(renderCatalogTable(entries))
		fmt.Printf("%d definitions\n", len(entries))
	case "yaml":
		if err := writeCatalogYAML(os.Stdout, entries); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (use table or yaml)", catalogFormat)
	}

	if _, err := xpressnet.NewCatalog(defs); err != nil {
		fmt.Fprintf(os.Stderr, "Catalog integrity check failed:\n%v\n", err)
		return fmt.Errorf("catalog integrity check failed")
	}
	return nil
}
