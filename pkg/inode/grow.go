// Copyright © 2018 One Concern

package inode

import (
	"go.uber.org/zap"

	"github.com/oneconcern/sectorfs/pkg/freemap"
	"github.com/oneconcern/sectorfs/pkg/inode/status"
)

// grow extends a descriptor to length bytes, allocating zeroed data and index sectors.
//
// The free map stays locked from the space check to the last allocation. When an
// allocation fails, every sector allocated so far is released and d is left untouched.
// The caller persists d.
func (t *Table) grow(d *disk, length int64) error {
	switch {
	case length < 0:
		return status.ErrInvalidOffset.Wrapf("length %d", length)
	case length > MaxLength:
		return status.ErrTooLarge.Wrapf("length %d exceeds %d", length, MaxLength)
	case length <= int64(d.Length):
		return nil
	}

	have, want := SectorsFor(int64(d.Length)), SectorsFor(length)
	if want == have {
		// the last sector has room
		d.Length = int32(length)
		return nil
	}
	cost := GrowthCost(int64(d.Length), length)

	return t.fm.Update(func(tx *freemap.Tx) error {
		if free := tx.FreeCount(); free < cost {
			return status.ErrNoSpace.Wrapf("need %d sectors, %d free", cost, free)
		}

		g := &grower{t: t, tx: tx, d: *d, allocated: make([]uint32, 0, cost)}
		if err := g.extend(have, want); err != nil {
			g.rollback()
			t.l.Warn("growth rolled back", zap.Int32("from", d.Length), zap.Int64("to", length), zap.Error(err))
			return status.ErrNoSpace.Wrap(err)
		}
		if uint32(len(g.allocated)) != cost {
			panic(status.ErrCorrupt.Wrapf("growth allocated %d sectors, expected %d", len(g.allocated), cost))
		}

		g.d.Length = int32(length)
		*d = g.d
		if t.MetricsEnabled() {
			t.m.Volume.Inodes.sectors(want-have, MetadataSectors(want)-MetadataSectors(have), "grow")
		}
		return nil
	})
}

// grower walks the data sectors added to a file, allocating the index sectors they need
type grower struct {
	t         *Table
	tx        *freemap.Tx
	d         disk
	allocated []uint32

	l2      *index
	l2Dirty bool
	l1      *index
}

func (g *grower) alloc() (uint32, error) {
	s, err := g.tx.Allocate(1)
	if err != nil {
		return 0, err
	}
	g.allocated = append(g.allocated, s)
	return s, nil
}

func (g *grower) rollback() {
	for i := len(g.allocated) - 1; i >= 0; i-- {
		g.tx.Release(g.allocated[i], 1)
	}
	g.allocated = nil
}

// extend allocates data sectors [from, to) in order, with their index sectors
func (g *grower) extend(from, to uint32) error {
	for b := from; b < to; b++ {
		loc := locate(b)
		switch loc.kind {
		case direct:
			s, err := g.alloc()
			if err != nil {
				return err
			}
			g.t.zero(s)
			g.d.Direct[loc.slot] = s

		case indirect:
			if err := g.enterTree(); err != nil {
				return err
			}
			if err := g.enterIndex(loc); err != nil {
				return err
			}
			s, err := g.alloc()
			if err != nil {
				return err
			}
			g.t.zero(s)
			g.l1[loc.inner] = s

			if loc.leavesIndex(b, to) {
				g.t.writeIndex(g.l2[loc.outer], g.l1)
				g.l1 = nil
			}

		default:
			panic(badLocation(loc))
		}
	}

	if g.l2Dirty {
		g.t.writeIndex(g.d.Indirect, g.l2)
	}
	return nil
}

// enterTree loads or allocates the doubly indirect sector
func (g *grower) enterTree() error {
	if g.l2 != nil {
		return nil
	}
	if g.d.Indirect != 0 {
		g.l2 = g.t.readIndex(g.d.Indirect)
		return nil
	}
	s, err := g.alloc()
	if err != nil {
		return err
	}
	g.d.Indirect = s
	g.l2 = &index{}
	g.l2Dirty = true
	return nil
}

// enterIndex loads or allocates the indirect sector holding a location
func (g *grower) enterIndex(loc location) error {
	if g.l1 != nil {
		return nil
	}
	if loc.inner != 0 {
		g.l1 = g.t.readIndex(g.l2[loc.outer])
		return nil
	}
	s, err := g.alloc()
	if err != nil {
		return err
	}
	g.l2[loc.outer] = s
	g.l2Dirty = true
	g.l1 = &index{}
	return nil
}

// destroy releases all sectors of an inode: data sectors, each indirect sector once
// the traversal leaves it, the doubly indirect sector, then the inode sector, which is
// cleared first so that its descriptor cannot be opened again.
func (t *Table) destroy(sector uint32, d *disk) error {
	n := SectorsFor(int64(d.Length))

	err := t.fm.Update(func(tx *freemap.Tx) error {
		release := func(s uint32) {
			if s == 0 {
				panic(status.ErrCorrupt.Wrapf("inode %d points to sector 0", sector))
			}
			tx.Release(s, 1)
		}

		var l2, l1 *index
		for b := uint32(0); b < n; b++ {
			loc := locate(b)
			switch loc.kind {
			case direct:
				release(d.Direct[loc.slot])

			case indirect:
				if l2 == nil {
					l2 = t.readIndex(d.Indirect)
				}
				if l1 == nil {
					l1 = t.readIndex(l2[loc.outer])
				}
				release(l1[loc.inner])
				if loc.leavesIndex(b, n) {
					release(l2[loc.outer])
					l1 = nil
				}

			default:
				panic(badLocation(loc))
			}
		}
		if n > DirectBlocks {
			release(d.Indirect)
		}
		t.zero(sector)
		release(sector)
		return nil
	})

	t.l.Debug("destroyed", zap.Uint32("inode", sector), zap.Uint32("data", n), zap.Uint32("metadata", MetadataSectors(n)))
	if t.MetricsEnabled() {
		t.m.Volume.Inodes.sectors(n, MetadataSectors(n), "destroy")
		t.m.Volume.Inodes.destroyed()
	}
	return err
}
