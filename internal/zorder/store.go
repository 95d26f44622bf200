package zorder

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/widgetd/internal/widget"
)

// MoveFunc returns a copy of w placed at z. The shift cascade uses it to
// rebuild displaced widgets so they get a fresh timestamp.
type MoveFunc func(w widget.Widget, z int) widget.Widget

// Store is the z-ordered sequence plus the id index.
//
// INVARIANTS (after every exported call returns):
//   - byZ is sorted ascending by Z with pairwise distinct Z
//   - byID holds exactly the widgets in byZ, with identical field values
type Store struct {
	byZ    []widget.Widget
	byID   map[widget.ID]widget.Widget
	move   MoveFunc
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for shift tracing.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates an empty store. move is called for every widget displaced by
// the shift cascade.
func New(move MoveFunc, opts ...Option) *Store {
	s := &Store{
		byID:   make(map[widget.ID]widget.Widget),
		move:   move,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of live widgets.
func (s *Store) Len() int {
	return len(s.byZ)
}

// DefaultZ returns the z a widget gets when its request omits one: one above
// the current top, or 0 for an empty store. It fails with a validation error
// when the top widget already sits at math.MaxInt.
func (s *Store) DefaultZ() (int, error) {
	if len(s.byZ) == 0 {
		return 0, nil
	}
	top := s.byZ[len(s.byZ)-1].Z
	if top == math.MaxInt {
		return 0, widget.NewZOverflowError(top)
	}
	return top + 1, nil
}

// CheckRoom reports whether a widget can be placed at z without the shift
// cascade pushing any widget past math.MaxInt. The widget with id except is
// skipped as if it had already been removed.
func (s *Store) CheckRoom(z int, except widget.ID) error {
	pos, _ := s.IndexOfZ(z)
	next := z
	for ; pos < len(s.byZ); pos++ {
		w := s.byZ[pos]
		if w.ID == except {
			continue
		}
		if w.Z != next {
			return nil
		}
		if next == math.MaxInt {
			return widget.NewZOverflowError(z)
		}
		next++
	}
	return nil
}

// IndexOfZ binary-searches the sequence for z. found reports a widget at
// exactly that z (a collision); otherwise pos is where z would be inserted.
func (s *Store) IndexOfZ(z int) (pos int, found bool) {
	return slices.BinarySearchFunc(s.byZ, z, func(w widget.Widget, target int) int {
		return cmp.Compare(w.Z, target)
	})
}

// Find returns the live widget with the given id.
func (s *Store) Find(id widget.ID) (widget.Widget, bool) {
	w, ok := s.byID[id]
	return w, ok
}

// Insert adds w at w.Z. A widget already at that z is displaced upward,
// cascading through the contiguous run above it. If the cascade would pass
// math.MaxInt the store is left unchanged and a validation error is returned.
func (s *Store) Insert(w widget.Widget) error {
	if err := s.CheckRoom(w.Z, w.ID); err != nil {
		return err
	}
	pos, found := s.IndexOfZ(w.Z)
	if found {
		s.logger.Debug("z collision, shifting", "id", w.ID, "z", w.Z, "pos", pos, "occupant", s.byZ[pos].ID)
		s.shift(pos, w.Z+1)
	}
	s.byZ = slices.Insert(s.byZ, pos, w)
	s.byID[w.ID] = w
	return nil
}

// Update replaces old with next, which must share its id. An unchanged z
// keeps the widget at its position; a new z removes the old entry and inserts
// next with the usual shift cascade. A cascade that would pass math.MaxInt
// fails before anything is removed.
func (s *Store) Update(old, next widget.Widget) error {
	if old.ID != next.ID {
		return fmt.Errorf("update: id mismatch: %d != %d", old.ID, next.ID)
	}
	pos, err := s.positionOf(old)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	if old.Z == next.Z {
		s.byZ[pos] = next
		s.byID[next.ID] = next
		return nil
	}

	if err := s.CheckRoom(next.Z, old.ID); err != nil {
		return err
	}
	s.byZ = slices.Delete(s.byZ, pos, pos+1)
	delete(s.byID, old.ID)
	return s.Insert(next)
}

// RemoveByID deletes the widget with the given id and returns it.
// ok is false if no such widget is live.
func (s *Store) RemoveByID(id widget.ID) (w widget.Widget, ok bool) {
	w, ok = s.byID[id]
	if !ok {
		return widget.Widget{}, false
	}
	pos, err := s.positionOf(w)
	if err != nil {
		// byID and byZ disagree; the invariant is already broken.
		panic(fmt.Sprintf("zorder: remove %d: %v", id, err))
	}
	s.byZ = slices.Delete(s.byZ, pos, pos+1)
	delete(s.byID, id)
	return w, true
}

// Widgets returns a copy of the sequence in ascending z order.
// The result is never nil.
func (s *Store) Widgets() []widget.Widget {
	out := make([]widget.Widget, len(s.byZ))
	copy(out, s.byZ)
	return out
}

// Verify checks the store invariants and describes the first violation.
func (s *Store) Verify() error {
	if len(s.byZ) != len(s.byID) {
		return fmt.Errorf("sequence has %d widgets, index has %d", len(s.byZ), len(s.byID))
	}
	for i, w := range s.byZ {
		if i > 0 && s.byZ[i-1].Z >= w.Z {
			return fmt.Errorf("position %d: z %d does not exceed previous z %d", i, w.Z, s.byZ[i-1].Z)
		}
		if indexed, ok := s.byID[w.ID]; !ok || indexed != w {
			return fmt.Errorf("position %d: widget %d differs from its index entry", i, w.ID)
		}
	}
	return nil
}

// shift pushes the widget at pos to z and keeps pushing its successors while
// each one sits at the z just taken.
func (s *Store) shift(pos, z int) {
	for pos < len(s.byZ) {
		moved := s.move(s.byZ[pos], z)
		s.logger.Debug("shifting widget", "id", moved.ID, "z", z, "pos", pos)
		s.byZ[pos] = moved
		s.byID[moved.ID] = moved

		pos++
		if pos == len(s.byZ) || s.byZ[pos].Z != z {
			return
		}
		z++
	}
}

// positionOf locates w in the sequence by its z and checks it is the same widget.
func (s *Store) positionOf(w widget.Widget) (int, error) {
	pos, found := s.IndexOfZ(w.Z)
	if !found || s.byZ[pos].ID != w.ID {
		return 0, fmt.Errorf("widget %d is not at z %d", w.ID, w.Z)
	}
	return pos, nil
}
