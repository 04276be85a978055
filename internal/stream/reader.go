// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
)

// DefaultChunkSize is the read buffer size used by NewReader.
const DefaultChunkSize = 4096

// FragmentFunc receives each decoded fragment in arrival order.
type FragmentFunc func(fragment string)

// Reader reads a response body chunk by chunk and decodes it.
type Reader struct {
	r   io.Reader
	dec *Decoder
	buf []byte

	bytesRead int64
	fragments int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, DefaultChunkSize)
}

// NewReaderSize creates a Reader that reads at most size bytes per chunk.
func NewReaderSize(r io.Reader, size int) *Reader {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Reader{
		r:   r,
		dec: NewDecoder(),
		buf: make([]byte, size),
	}
}

// Process reads until end of stream and calls fn for every non-empty
// fragment. It blocks until the body is exhausted, a read fails, or ctx
// is cancelled. Cancellation is checked between chunks and is reported as
// ctx.Err() even when it surfaces as a read error.
func (s *Reader) Process(ctx context.Context, fn FragmentFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := s.r.Read(s.buf)
		if n > 0 {
			s.bytesRead += int64(n)
			s.emit(fn, s.dec.Decode(s.buf[:n]))
		}

		if errors.Is(err, io.EOF) {
			s.emit(fn, s.dec.Flush())
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
}

func (s *Reader) emit(fn FragmentFunc, fragment string) {
	if fragment == "" {
		return
	}
	s.fragments++
	fn(fragment)
}

// BytesRead returns the number of body bytes consumed so far.
func (s *Reader) BytesRead() int64 {
	return s.bytesRead
}

// Fragments returns the number of fragments delivered so far.
func (s *Reader) Fragments() int {
	return s.fragments
}
