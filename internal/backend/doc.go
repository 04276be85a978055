// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the agent chat API.
//
// # Key Types
//
//   - Client: starts conversations, opens reply streams, reads agent status
//   - ClientConfig: base URL, timeouts and rate limiting
//   - ClientError: typed error with an ErrorType for handling decisions
//   - StreamRequest: body of a streaming chat request
//   - AgentStatus: agent availability as reported by the backend
//
// # Endpoints
//
//	POST /api/chat/start                   -> {"conversation_id": "...", "status": "started"}
//	POST /api/chat/stream/{conversationId} -> text/plain, streamed
//	GET  /api/chat/status                  -> AgentStatus
//
// # Usage
//
//	client := backend.NewClientWithConfig(&backend.ClientConfig{BaseURL: url})
//	id, err := client.StartConversation(ctx)
//	body, err := client.OpenStream(ctx, id, backend.StreamRequest{Message: "Hi"})
//	defer body.Close()
package backend
