// Copyright © 2018 One Concern

// Package fingerprint computes blake2b tree digests of random-access content, such as files stored on a volume.
//
// Content is split into leaves of a fixed size, hashed concurrently, and the leaf digests
// are combined into a root digest.
package fingerprint

import (
	"context"
	"io"
	"runtime"

	blake2b "github.com/minio/blake2b-simd"
	"golang.org/x/sync/errgroup"
)

// DefaultLeafSize spans 64 sectors
const DefaultLeafSize = 64 * 512

// Option for a digest Maker
type Option func(*Maker)

// LeafSize sets the size in bytes of the leaves of the hash tree
func LeafSize(sz uint32) Option {
	return func(m *Maker) {
		if sz > 0 {
			m.leafSize = sz
		}
	}
}

// NumberOfWorkers sets how many leaves may be hashed concurrently
func NumberOfWorkers(no int) Option {
	return func(m *Maker) {
		if no > 0 {
			m.numberOfWorkers = no
		}
	}
}

// Size sets the size of the digest, in bytes, from 1 to 64
func Size(sz uint8) Option {
	return func(m *Maker) {
		m.size = sz
	}
}

// Key turns the digest into a keyed MAC
func Key(key []byte) Option {
	return func(m *Maker) {
		m.key = key
	}
}

// New digest maker
func New(opts ...Option) *Maker {
	m := &Maker{
		leafSize:        DefaultLeafSize,
		numberOfWorkers: runtime.NumCPU(),
		size:            blake2b.Size,
	}

	for _, apply := range opts {
		apply(m)
	}
	return m
}

// Maker computes tree digests
type Maker struct {
	size            uint8
	key             []byte
	leafSize        uint32
	numberOfWorkers int
}

// Sum computes the digest of the first size bytes of r
func (m *Maker) Sum(ctx context.Context, r io.ReaderAt, size int64) ([]byte, error) {
	leaves := int((size + int64(m.leafSize) - 1) / int64(m.leafSize))
	if leaves == 0 {
		leaves = 1
	}
	digests := make([][]byte, leaves)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.numberOfWorkers)
	for part := 0; part < leaves; part++ {
		part := part
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			off := int64(part) * int64(m.leafSize)
			n := size - off
			if n > int64(m.leafSize) {
				n = int64(m.leafSize)
			}
			digest, err := m.leaf(io.NewSectionReader(r, off, n), part, part == leaves-1)
			if err != nil {
				return err
			}
			digests[part] = digest
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	root, err := blake2b.New(&blake2b.Config{
		Size: m.size,
		Key:  m.key,
		Tree: &blake2b.Tree{
			MaxDepth:      2,
			LeafSize:      m.leafSize,
			NodeDepth:     1,
			InnerHashSize: m.size,
			IsLastNode:    true,
		},
	})
	if err != nil {
		return nil, err
	}
	for _, digest := range digests {
		_, _ = root.Write(digest)
	}
	return root.Sum(nil), nil
}

func (m *Maker) leaf(r io.Reader, part int, last bool) ([]byte, error) {
	blake, err := blake2b.New(&blake2b.Config{
		Size: m.size,
		Key:  m.key,
		Tree: &blake2b.Tree{
			MaxDepth:      2,
			LeafSize:      m.leafSize,
			NodeOffset:    uint64(part),
			InnerHashSize: m.size,
			IsLastNode:    last,
		},
	})
	if err != nil {
		return nil, err
	}
	if _, err = io.Copy(blake, r); err != nil {
		return nil, err
	}
	return blake.Sum(nil), nil
}
