// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// DECODER
// =============================================================================

// Decoder converts a sequence of byte chunks into text.
//
// Concatenating every Decode result followed by Flush yields the decoding
// of the concatenated chunks. Invalid bytes are replaced with U+FFFD.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	t       transform.Transformer
	pending []byte // incomplete trailing sequence from the previous chunk
	dst     []byte
}

// NewDecoder returns a Decoder with no buffered bytes.
func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// Decode returns the text that chunk completes. A multi-byte character cut
// off at the end of chunk is held until a later call supplies the rest.
// The returned string may be empty.
func (d *Decoder) Decode(chunk []byte) string {
	return d.transform(chunk, false)
}

// Flush decodes whatever is still buffered and resets the Decoder.
// An incomplete sequence at end of input becomes U+FFFD.
func (d *Decoder) Flush() string {
	out := d.transform(nil, true)
	d.pending = nil
	d.t.Reset()
	return out
}

// Buffered reports how many bytes are held back awaiting completion.
func (d *Decoder) Buffered() int {
	return len(d.pending)
}

func (d *Decoder) transform(chunk []byte, atEOF bool) string {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}
	if len(src) == 0 {
		return ""
	}

	// A replaced byte expands to at most three output bytes.
	if need := 3*len(src) + utf8.UTFMax; cap(d.dst) < need {
		d.dst = make([]byte, need)
	}
	d.dst = d.dst[:cap(d.dst)]

	var out strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(d.dst, src, atEOF)
		out.Write(d.dst[:nDst])
		src = src[nSrc:]

		switch err {
		case transform.ErrShortDst:
			if nDst == 0 && nSrc == 0 {
				d.dst = make([]byte, 2*len(d.dst))
			}
			continue
		case transform.ErrShortSrc:
			// Copy: chunk belongs to the caller and may be reused.
			d.pending = append([]byte(nil), src...)
		}
		return out.String()
	}
}
