// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream turns a chunked text/plain response body into UTF-8 text
// fragments.
//
// Network chunk boundaries are arbitrary and can split a multi-byte
// character. Decoder holds back an incomplete trailing sequence until the
// next chunk completes it, so every fragment it emits is valid UTF-8.
//
// # Key Types
//
//   - Decoder: incremental UTF-8 decoder (Decode per chunk, Flush at end)
//   - Reader: drives a Decoder over an io.Reader, one callback per fragment
//
// # Usage
//
//	r := stream.NewReader(resp.Body)
//	err := r.Process(ctx, func(fragment string) {
//	    reply.WriteString(fragment)
//	})
package stream
