// Package contenthash implements the Dropbox content_hash algorithm:
// the input is split into 4 MiB blocks, each block is hashed with
// SHA-256, and the concatenation of the block digests is hashed with
// SHA-256 again. The result identifies file content independently of
// how writes were chunked by the caller, so it can be compared
// directly against the content_hash field of remote file metadata.
package contenthash

import (
	"crypto/sha256"
	"encoding"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
)

const (
	// BlockSize is the fixed block length of the two-level scheme
	BlockSize = 4 * 1024 * 1024

	// Size is the length of the final digest in bytes
	Size = sha256.Size
)

// ErrFinalized indicates the hasher has already produced its digest.
// Finalizing consumes the hasher; any later Write, Digest or Copy is
// a contract violation and is never retried.
var ErrFinalized = errors.New("content hasher already finalized")

// Hasher computes a streaming Dropbox content hash. A Hasher is
// either active or finalized; all operations are defined on active
// hashers only. Not safe for concurrent use.
type Hasher struct {
	overall   hash.Hash
	block     hash.Hash
	blockPos  int
	finalized bool
}

// New returns an active hasher with an empty current block
func New() *Hasher {
	return &Hasher{
		overall: sha256.New(),
		block:   sha256.New(),
	}
}

// Write feeds data into the hasher. A single call may span multiple
// blocks: whenever the current block fills up, its digest is folded
// into the overall accumulator and a fresh block begins.
// Implements io.Writer.
func (h *Hasher) Write(p []byte) (int, error) {
	if h.finalized {
		return 0, ErrFinalized
	}

	for pos := 0; pos < len(p); {
		if h.blockPos == BlockSize {
			h.foldBlock()
		}

		space := BlockSize - h.blockPos
		part := p[pos:]
		if len(part) > space {
			part = part[:space]
		}

		h.block.Write(part)
		h.blockPos += len(part)
		pos += len(part)
	}

	return len(p), nil
}

// foldBlock feeds the digest of the completed block into the overall
// accumulator and resets the block state
func (h *Hasher) foldBlock() {
	h.overall.Write(h.block.Sum(nil))
	h.block.Reset()
	h.blockPos = 0
}

// Digest finalizes the hasher and returns the raw 32-byte content
// hash. The hasher cannot be used afterwards.
func (h *Hasher) Digest() ([]byte, error) {
	if h.finalized {
		return nil, ErrFinalized
	}

	// A partially filled final block still contributes one digest;
	// an exact multiple of BlockSize adds no empty block.
	if h.blockPos > 0 {
		h.foldBlock()
	}

	h.finalized = true
	return h.overall.Sum(nil), nil
}

// HexDigest finalizes the hasher and returns the lowercase hex form
// used by the remote content_hash metadata field
func (h *Hasher) HexDigest() (string, error) {
	sum, err := h.Digest()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// Copy returns an independent hasher with the same internal state,
// without finalizing either instance
func (h *Hasher) Copy() (*Hasher, error) {
	if h.finalized {
		return nil, ErrFinalized
	}

	overall, err := cloneSHA256(h.overall)
	if err != nil {
		return nil, err
	}
	block, err := cloneSHA256(h.block)
	if err != nil {
		return nil, err
	}

	return &Hasher{
		overall:  overall,
		block:    block,
		blockPos: h.blockPos,
	}, nil
}

// cloneSHA256 duplicates a SHA-256 accumulator via its binary state.
// The crypto/sha256 digest implements encoding.BinaryMarshaler and
// encoding.BinaryUnmarshaler, which round-trips the full state.
func cloneSHA256(src hash.Hash) (hash.Hash, error) {
	marshaler, ok := src.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("hash state is not marshalable")
	}

	state, err := marshaler.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot hash state: %w", err)
	}

	dst := sha256.New()
	if err := dst.(encoding.BinaryUnmarshaler).UnmarshalBinary(state); err != nil {
		return nil, fmt.Errorf("failed to restore hash state: %w", err)
	}

	return dst, nil
}
