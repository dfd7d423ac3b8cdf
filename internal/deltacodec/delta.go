// Package deltacodec implements a fixed-block-size binary diff between two
// versions of a file, used by the backup engine's delta mode and replayed
// by the restore engine.
package deltacodec

import (
	"encoding/json"
	"io"
	"os"

	"ardiex/internal/apperr"
	"ardiex/internal/hasher"
)

// BlockSize is the fixed block granularity used for diffing. Not
// user-configurable.
const BlockSize = 4096

// OpKind distinguishes a kept original block from a replaced one.
type OpKind string

const (
	OpKeep    OpKind = "keep"
	OpReplace OpKind = "replace"
)

// BlockOp is a single instruction in a DeltaFile's reconstruction plan.
type BlockOp struct {
	Kind  OpKind `json:"kind"`
	Index int    `json:"index"`
	// Bytes holds the replacement block's content; empty for Keep.
	Bytes []byte `json:"bytes,omitempty"`
}

// DeltaFile is the serialized artifact produced by Create and consumed by
// Apply. Its JSON shape is stable across the codebase: any implementation
// must be able to load its own prior outputs.
type DeltaFile struct {
	BlockSize    int       `json:"block_size"`
	OriginalSize int64     `json:"original_size"`
	NewSize      int64     `json:"new_size"`
	OriginalHash string    `json:"original_hash"`
	NewHash      string    `json:"new_hash"`
	Ops          []BlockOp `json:"ops"`
}

// Create diffs originalPath against newPath in lock-step BlockSize blocks.
// Block i is Keep(i) iff it exists in the original and hashes equal to the
// corresponding new block; otherwise it's Replace(i, newBlock). Trailing
// blocks past the original's length are always Replace.
func Create(originalPath, newPath string) (*DeltaFile, error) {
	orig, err := os.ReadFile(originalPath)
	if err != nil {
		return nil, apperr.New(apperr.Io, "delta.create", err).WithSource(originalPath)
	}
	next, err := os.ReadFile(newPath)
	if err != nil {
		return nil, apperr.New(apperr.Io, "delta.create", err).WithSource(newPath)
	}
	return CreateBytes(orig, next)
}

// CreateBytes is the in-memory form of Create, useful for tests and for
// callers that already hold both versions in memory.
func CreateBytes(original, next []byte) (*DeltaFile, error) {
	d := &DeltaFile{
		BlockSize:    BlockSize,
		OriginalSize: int64(len(original)),
		NewSize:      int64(len(next)),
		OriginalHash: hasher.HashBytes(original),
		NewHash:      hasher.HashBytes(next),
	}

	numNewBlocks := blockCount(len(next))
	for i := 0; i < numNewBlocks; i++ {
		newBlock := block(next, i)
		if i < blockCount(len(original)) {
			origBlock := block(original, i)
			if hasher.HashBytes(newBlock) == hasher.HashBytes(origBlock) {
				d.Ops = append(d.Ops, BlockOp{Kind: OpKeep, Index: i})
				continue
			}
		}
		d.Ops = append(d.Ops, BlockOp{Kind: OpReplace, Index: i, Bytes: append([]byte(nil), newBlock...)})
	}
	return d, nil
}

// Apply reconstructs the new file's bytes by replaying delta against the
// content at originalPath. Fails with Corrupt if the original content no
// longer matches delta.OriginalHash, or Mismatch if the reconstruction
// doesn't hash to delta.NewHash.
func Apply(originalPath string, delta *DeltaFile) ([]byte, error) {
	orig, err := os.ReadFile(originalPath)
	if err != nil {
		return nil, apperr.New(apperr.Io, "delta.apply", err).WithSource(originalPath)
	}
	return ApplyBytes(orig, delta)
}

// ApplyBytes is the in-memory form of Apply.
func ApplyBytes(original []byte, delta *DeltaFile) ([]byte, error) {
	if hasher.HashBytes(original) != delta.OriginalHash {
		return nil, apperr.New(apperr.Corrupt, "delta.apply", errOriginalHashMismatch)
	}

	out := make([]byte, 0, delta.NewSize)
	for _, op := range delta.Ops {
		switch op.Kind {
		case OpKeep:
			out = append(out, block(original, op.Index)...)
		case OpReplace:
			out = append(out, op.Bytes...)
		default:
			return nil, apperr.New(apperr.Corrupt, "delta.apply", errUnknownOpKind)
		}
	}
	if int64(len(out)) > delta.NewSize {
		out = out[:delta.NewSize]
	} else if int64(len(out)) < delta.NewSize {
		padded := make([]byte, delta.NewSize)
		copy(padded, out)
		out = padded
	}

	if hasher.HashBytes(out) != delta.NewHash {
		return nil, apperr.New(apperr.Mismatch, "delta.apply", errReconstructionMismatch)
	}
	return out, nil
}

// Save writes delta as a JSON blob to w.
func Save(w io.Writer, delta *DeltaFile) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(delta); err != nil {
		return apperr.New(apperr.Io, "delta.save", err)
	}
	return nil
}

// SaveFile writes delta as a JSON blob to the file at path.
func SaveFile(path string, delta *DeltaFile) error {
	f, err := os.Create(path)
	if err != nil {
		return apperr.New(apperr.Io, "delta.save", err).WithDestination(path)
	}
	defer f.Close()
	return Save(f, delta)
}

// Load reads and validates a DeltaFile previously written by Save. Invalid
// or truncated blobs fail with Corrupt.
func Load(r io.Reader) (*DeltaFile, error) {
	var d DeltaFile
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, apperr.New(apperr.Corrupt, "delta.load", err)
	}
	if d.BlockSize != BlockSize {
		return nil, apperr.New(apperr.Corrupt, "delta.load", errBadBlockSize)
	}
	return &d, nil
}

// LoadFile reads a DeltaFile from path.
func LoadFile(path string) (*DeltaFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.New(apperr.Io, "delta.load", err).WithSource(path)
	}
	defer f.Close()
	return Load(f)
}

// SerializedSize reports the byte size delta would occupy once saved,
// without writing it to disk. Used by the engine's delta-vs-copy decision.
func SerializedSize(delta *DeltaFile) (int64, error) {
	data, err := json.Marshal(delta)
	if err != nil {
		return 0, apperr.New(apperr.Io, "delta.size", err)
	}
	return int64(len(data)), nil
}

func blockCount(n int) int {
	if n == 0 {
		return 0
	}
	return (n + BlockSize - 1) / BlockSize
}

func block(data []byte, index int) []byte {
	start := index * BlockSize
	if start >= len(data) {
		return nil
	}
	end := start + BlockSize
	if end > len(data) {
		end = len(data)
	}
	return data[start:end]
}
