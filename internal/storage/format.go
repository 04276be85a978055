// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strconv"
	"strings"

	"github.com/jeranaias/agentchat/internal/util"
)

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

// FormatSessionList renders conversations as a fixed-width table.
func FormatSessionList(sessions []ConversationMeta) string {
	if len(sessions) == 0 {
		return "No conversations found."
	}

	const (
		idWidth      = 36
		updatedWidth = 17
		countWidth   = 5
		previewWidth = 40
	)
	rule := strings.Repeat("-", idWidth+updatedWidth+countWidth+previewWidth+3) + "\n"

	var sb strings.Builder
	sb.WriteString(util.PadWidth("ID", idWidth) + " " +
		util.PadWidth("Updated", updatedWidth) + " " +
		util.PadWidth("Msgs", countWidth) + " Summary\n")
	sb.WriteString(rule)

	for _, s := range sessions {
		sb.WriteString(util.PadWidth(util.TruncateWidth(s.ID, idWidth), idWidth) + " ")
		sb.WriteString(util.PadWidth(s.UpdatedAt.Local().Format("2006-01-02 15:04"), updatedWidth) + " ")
		sb.WriteString(util.PadWidth(strconv.Itoa(s.MessageCount), countWidth) + " ")
		sb.WriteString(util.TruncateWidth(s.Summary, previewWidth) + "\n")
	}
	return sb.String()
}
