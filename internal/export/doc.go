// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders stored conversations as Markdown, JSON or HTML.
//
// Usage:
//
//	exp, err := export.ForFormat("html", export.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	data, err := exp.Export(conv)
//
// ExportToFile writes the result under a directory using a filename built
// from the conversation summary.
package export
