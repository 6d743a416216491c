// Package container reads and writes the chunked shader blob.
//
// A blob is a little-endian header followed by a table of chunk offsets and
// the chunks themselves, laid out back to back in table order:
//
//	"SXBC" u16 major u16 minor u32 totalSize u32 chunkCount u32 offsets[chunkCount]
//	chunk: fourcc u32 size bytes[size]
//
// Chunks are kept as raw bytes, so an unedited blob re-encodes bit for bit.
package container

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"

	"ampcap/internal/diag"
)

// FourCC names a chunk.
type FourCC [4]byte

func (f FourCC) String() string { return string(f[:]) }

var (
	Magic = FourCC{'S', 'X', 'B', 'C'}

	// ChunkProgram holds the encoded program.
	ChunkProgram = FourCC{'S', 'X', 'I', 'L'}
	// ChunkPipeline holds the pipeline state side table.
	ChunkPipeline = FourCC{'P', 'S', 'V', '0'}
	// ChunkFeatures holds the global feature flags.
	ChunkFeatures = FourCC{'S', 'F', 'I', '0'}
)

const (
	headerSize      = 16
	chunkHeaderSize = 8
)

// Chunk is a raw container part.
type Chunk struct {
	Tag  FourCC
	Data []byte
}

// Container is a decoded blob.
type Container struct {
	Version Version
	Chunks  []Chunk
}

var le = binary.LittleEndian

func blobErr(code diag.Code, format string, args ...any) *diag.Error {
	return diag.Errorf(code, diag.NoLocation, format, args...)
}

// Decode splits blob into chunks. The chunk data aliases blob.
func Decode(blob []byte) (*Container, error) {
	if len(blob) < headerSize {
		return nil, blobErr(diag.BlobTruncated, "blob is %d bytes, header needs %d", len(blob), headerSize)
	}
	if !bytes.Equal(blob[:4], Magic[:]) {
		return nil, blobErr(diag.BlobBadMagic, "magic %q", blob[:4])
	}
	c := &Container{Version: Version{Major: le.Uint16(blob[4:]), Minor: le.Uint16(blob[6:])}}
	total := le.Uint32(blob[8:])
	if uint64(total) != uint64(len(blob)) {
		return nil, blobErr(diag.BlobSizeMismatch, "header says %d bytes, blob has %d", total, len(blob))
	}
	count := le.Uint32(blob[12:])
	tableEnd := uint64(headerSize) + 4*uint64(count)
	if tableEnd > uint64(len(blob)) {
		return nil, blobErr(diag.BlobTruncated, "chunk table of %d entries exceeds blob", count)
	}
	next := tableEnd
	c.Chunks = make([]Chunk, 0, count)
	for i := range uint64(count) {
		off := uint64(le.Uint32(blob[headerSize+4*i:]))
		if off != next {
			return nil, blobErr(diag.BlobChunkLayout, "chunk %d at offset %d, expected %d", i, off, next)
		}
		if off+chunkHeaderSize > uint64(len(blob)) {
			return nil, blobErr(diag.BlobTruncated, "chunk %d header beyond end", i)
		}
		var tag FourCC
		copy(tag[:], blob[off:off+4])
		size := uint64(le.Uint32(blob[off+4:]))
		end := off + chunkHeaderSize + size
		if end > uint64(len(blob)) {
			return nil, blobErr(diag.BlobTruncated, "chunk %s of %d bytes beyond end", tag, size)
		}
		c.Chunks = append(c.Chunks, Chunk{Tag: tag, Data: blob[off+chunkHeaderSize : end]})
		next = end
	}
	if next != uint64(len(blob)) {
		return nil, blobErr(diag.BlobChunkLayout, "%d trailing bytes after last chunk", uint64(len(blob))-next)
	}
	return c, nil
}

// Encode lays the container out again.
func (c *Container) Encode() ([]byte, error) {
	count, err := safecast.Conv[uint32](len(c.Chunks))
	if err != nil {
		return nil, blobErr(diag.BlobChunkLayout, "chunk count: %w", err)
	}
	size := headerSize + 4*len(c.Chunks)
	for _, ch := range c.Chunks {
		size += chunkHeaderSize + len(ch.Data)
	}
	total, err := safecast.Conv[uint32](size)
	if err != nil {
		return nil, blobErr(diag.BlobSizeMismatch, "blob too large: %w", err)
	}

	out := make([]byte, headerSize+4*len(c.Chunks), size)
	copy(out, Magic[:])
	le.PutUint16(out[4:], c.Version.Major)
	le.PutUint16(out[6:], c.Version.Minor)
	le.PutUint32(out[8:], total)
	le.PutUint32(out[12:], count)
	for i, ch := range c.Chunks {
		le.PutUint32(out[headerSize+4*i:], uint32(len(out))) //nolint:gosec // bounded by total
		out = append(out, ch.Tag[:]...)
		out = le.AppendUint32(out, uint32(len(ch.Data))) //nolint:gosec // bounded by total
		out = append(out, ch.Data...)
	}
	return out, nil
}

// Chunk returns the first chunk tagged tag.
func (c *Container) Chunk(tag FourCC) ([]byte, bool) {
	for i := range c.Chunks {
		if c.Chunks[i].Tag == tag {
			return c.Chunks[i].Data, true
		}
	}
	return nil, false
}

// MustChunk is Chunk with a diagnostic for missing chunks.
func (c *Container) MustChunk(tag FourCC) ([]byte, error) {
	data, ok := c.Chunk(tag)
	if !ok {
		return nil, diag.Errorf(diag.BlobMissingChunk, diag.NoLocation.InChunk(tag.String()), "chunk %s missing", tag)
	}
	return data, nil
}

// SetChunk replaces the data of tag, appending a new chunk if absent.
func (c *Container) SetChunk(tag FourCC, data []byte) {
	for i := range c.Chunks {
		if c.Chunks[i].Tag == tag {
			c.Chunks[i].Data = data
			return
		}
	}
	c.Chunks = append(c.Chunks, Chunk{Tag: tag, Data: data})
}

func (c *Container) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "container sm%s, %d chunks\n", c.Version, len(c.Chunks))
	for _, ch := range c.Chunks {
		fmt.Fprintf(&b, "  %s %d bytes\n", ch.Tag, len(ch.Data))
	}
	return b.String()
}
