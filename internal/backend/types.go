// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import "time"

// StartResponse is returned by POST /api/chat/start.
type StartResponse struct {
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
}

// StreamRequest is the body of POST /api/chat/stream/{id}.
// FileID is sent as null when no file is selected.
type StreamRequest struct {
	Message string  `json:"message"`
	FileID  *string `json:"file_id"`
}

// AgentStatus is returned by GET /api/chat/status.
type AgentStatus struct {
	AgentName string     `json:"agent_name"`
	Status    string     `json:"status"`
	Model     string     `json:"model"`
	Available bool       `json:"available"`
	LastUsed  *time.Time `json:"last_used"`
}

// errorBody covers both error shapes the backend produces: the API's
// {"detail": ...} and the web proxy's {"error": ...}.
type errorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}
