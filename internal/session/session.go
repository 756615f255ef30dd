// Package session owns the ordered collection of parsed units an analysis
// or rewrite campaign operates on. Units are appended in groups, each group
// parsed under its own include/define configuration, and are addressed by
// stable insertion-order indices.
package session

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/svtools/svpickle/internal/lexer"
	"github.com/svtools/svpickle/internal/parser"
	"github.com/svtools/svpickle/internal/syntax"
)

// Unit is one parsed source file together with the configuration it was
// parsed under.
type Unit struct {
	Path     string
	Tree     *syntax.Tree
	Includes []string
	Defines  []string
}

// Session is an append-only sequence of units. Indices are assigned by
// insertion order and never reused or reordered; reachability results are
// sets of these indices.
type Session struct {
	units []Unit
}

func New() *Session {
	return &Session{}
}

// AddGroup parses a group of files with shared include directories and
// defines and appends the resulting units in file order. Files parse in
// parallel. If any file fails, the whole group is rejected and the session
// is left untouched.
func (s *Session) AddGroup(files, includes, defines []string) error {
	opts := lexer.Options{IncludeDirs: includes, Defines: defines}
	trees := make([]*syntax.Tree, len(files))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			tree, err := parser.ParseFile(file, opts)
			if err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, tree := range trees {
		s.units = append(s.units, Unit{
			Path:     files[i],
			Tree:     tree,
			Includes: includes,
			Defines:  defines,
		})
	}
	return nil
}

// UnitCount returns the number of units in insertion order.
func (s *Session) UnitCount() int {
	return len(s.units)
}

// UnitAt returns the unit at the given index. An out-of-range index is a
// caller contract violation and panics rather than reading out of bounds.
func (s *Session) UnitAt(i int) Unit {
	if i < 0 || i >= len(s.units) {
		panic(fmt.Sprintf("session: unit index %d out of range (%d units)", i, len(s.units)))
	}
	return s.units[i]
}

// Units borrows the full unit sequence.
func (s *Session) Units() []Unit {
	return s.units
}

// Metadatas collects every unit's metadata in unit order, the form the
// analysis package consumes.
func (s *Session) Metadatas() []syntax.Metadata {
	mds := make([]syntax.Metadata, len(s.units))
	for i, u := range s.units {
		mds[i] = u.Tree.Metadata
	}
	return mds
}
