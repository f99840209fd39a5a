/*
Package nametok decodes CRAM 3.1 tokenized read-name blocks.

Read names of sequencing data are highly repetitive. The name tokenizer
splits every name into a sequence of typed tokens (strings, characters,
numbers, back-references to earlier names) and stores each token position
as a column of its own, every column entropy coded separately. Decoding
demultiplexes a block into columns and then rebuilds the names in order,
resolving each token against the same position of an earlier name.

A block starts with a 9 byte header (uncompressed length, name count,
back-end flag), followed by sub-blocks up to the end of input:

	header byte   0x80 new column, 0x40 duplicate, low 6 bits token kind
	duplicate     source column, source token kind
	otherwise     uint7 payload size, entropy coded payload

Payloads are decoded by package rans or, for blocks flagged as arithmetic
coded, by package arith. Clients may substitute their own back-ends with
WithRangeCoder and WithArithmeticCoder.

Blocks are decoded sequentially; independent blocks may be decoded
concurrently. See package batch for that.

Further Reading

	https://samtools.github.io/hts-specs/CRAMcodecs.pdf
	https://github.com/samtools/htscodecs   (C implementation)

----------------------------------------------------------------------

# BSD License

Copyright (c) Norbert Pillmayer <norbert@pillmayer@com>

All rights reserved.

License information is available in the LICENSE file.
*/
package nametok

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'nametok'
func tracer() tracing.Trace {
	return tracing.Select("nametok")
}

func assert(condition bool, msg string) {
	if !condition {
		panic(msg)
	}
}
