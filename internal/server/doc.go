// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides a development agent backend speaking the same
// HTTP interface as the real one.
//
// Replies are generated locally and streamed as raw text in small byte
// chunks, so multi-byte characters regularly arrive split across writes.
//
// # Endpoints
//
//   - POST /api/chat/start             - Start a conversation
//   - POST /api/chat/stream/{id}       - Stream a reply as text/plain
//   - GET  /api/chat/status            - Agent status
//   - GET  /health                     - Health check and counters
//
// A message starting with "/error" makes the stream endpoint fail with 500.
// A file_id that is not registered in Config.Files yields 404 with
// {"detail": "File not found or could not be read"}.
//
// # Usage
//
//	srv := server.New(server.Config{Addr: "127.0.0.1:8000"}, logger)
//	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
//		log.Fatal(err)
//	}
package server
