// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"log/slog"
)

// Storage drivers accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Options selects and configures a storage driver.
type Options struct {
	Driver           string
	Dir              string // file driver
	SQLitePath       string // sqlite driver
	MaxConversations int
	Logger           *slog.Logger
}

// Open creates the catalog described by opts. An empty driver means file.
func Open(opts Options) (Catalog, error) {
	switch opts.Driver {
	case DriverFile, "":
		s, err := NewFileStore(opts.Dir, opts.Logger)
		if err != nil {
			return nil, err
		}
		s.MaxConversations = opts.MaxConversations
		return s, nil
	case DriverSQLite:
		if opts.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite driver requires a database path")
		}
		return NewSQLiteStore(opts.SQLitePath, opts.MaxConversations, opts.Logger)
	case DriverMemory:
		return NewMemoryStore(opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
