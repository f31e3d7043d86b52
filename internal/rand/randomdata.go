// Copyright © 2018 One Concern

// Package rand produces pseudo-random payloads for tests.
package rand

import (
	"math/rand"
	"sync"
	"time"
)

// Bytes returns a random slice of bytes
func Bytes(n int) []byte {
	return randBytes(n)
}

// Generator yields a reproducible stream of payloads
type Generator struct {
	mx  sync.Mutex
	gen *rand.Rand
}

// Seeded returns a generator with a fixed seed, so that a failing test sees the same data when replayed
func Seeded(seed int64) *Generator {
	return &Generator{gen: rand.New(rand.NewSource(seed))} // #nosec
}

// Bytes returns a slice of n pseudo-random bytes
func (g *Generator) Bytes(n int) []byte {
	buf := make([]byte, n)
	g.mx.Lock()
	_, _ = g.gen.Read(buf)
	g.mx.Unlock()
	return buf
}

// Intn returns a pseudo-random int in [0,n)
func (g *Generator) Intn(n int) int {
	g.mx.Lock()
	defer g.mx.Unlock()
	return g.gen.Intn(n)
}

var (
	onceSource sync.Once
	rgen       *rand.Rand
	randMutex  sync.Mutex
)

func seed() {
	src := rand.NewSource(time.Now().UnixNano())
	rgen = rand.New(src) // #nosec
}

func randBytes(n int) []byte {
	onceSource.Do(seed)
	buf := make([]byte, n)
	randMutex.Lock()
	_, _ = rgen.Read(buf)
	randMutex.Unlock()
	return buf
}

