// Command storeshell is an interactive client of the storage engine:
// a terminal session for issuing begin/insert/get/update/delete/
// commit/abort commands against a single fixed-width table.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"storemy/pkg/config"
	"storemy/pkg/shell"
)

func main() {
	configPath := flag.String("config", "", "path to an HCL config file (optional)")
	tableName := flag.String("table", "widgets", "table to open or create")
	recordSize := flag.Uint("record-size", 32, "fixed record size in bytes for a newly created table")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "storeshell: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "storeshell: %v\n", err)
		os.Exit(1)
	}

	engine, err := shell.NewEngine(cfg.LogFile, cfg.BufferPoolSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storeshell: %v\n", err)
		os.Exit(1)
	}

	tablePath := filepath.Join(cfg.DataDir, *tableName+".tbl")
	if err := engine.CreateTable(*tableName, tablePath, uint32(*recordSize)); err != nil {
		fmt.Fprintf(os.Stderr, "storeshell: %v\n", err)
		os.Exit(1)
	}
	engine.Run("table " + *tableName)

	if _, err := tea.NewProgram(shell.NewModel(engine)).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "storeshell: %v\n", err)
		os.Exit(1)
	}
}
