package widget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqIDs struct {
	next ID
	err  error
}

func (s *seqIDs) Next(context.Context) (ID, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.next++
	return s.next, nil
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// frozenClock never advances, which forces the factory to nudge timestamps.
func frozenClock() Clock {
	return ClockFunc(func() time.Time { return epoch })
}

type row struct {
	w Widget
}

func (r *row) Widget() Widget { return r.w }
func (r *row) SetX(x int) { r.w.X = x }
func (r *row) SetY(y int) { r.w.Y = y }
func (r *row) SetZ(z int) { r.w.Z = z }
func (r *row) SetWidth(width int) { r.w.Width = width }
func (r *row) SetHeight(height int) { r.w.Height = height }
func (r *row) SetLastUpdatedAt(t time.Time) { r.w.LastUpdatedAt = t }

func fullRequest() Request {
	return Request{X: Int(10), Y: Int(20), Width: Int(100), Height: Int(50)}
}

func TestFactory_Create_DefaultsZ(t *testing.T) {
	f := NewFactory(&seqIDs{}, frozenClock())

	w, err := f.Create(context.Background(), fullRequest(), 7)
	require.NoError(t, err)

	assert.Equal(t, ID(1), w.ID)
	assert.Equal(t, 10, w.X)
	assert.Equal(t, 20, w.Y)
	assert.Equal(t, 7, w.Z)
	assert.Equal(t, 100, w.Width)
	assert.Equal(t, 50, w.Height)
	assert.Equal(t, epoch, w.LastUpdatedAt)
}

func TestFactory_Create_ExplicitZWins(t *testing.T) {
	f := NewFactory(&seqIDs{}, frozenClock())

	req := fullRequest()
	req.Z = Int(-3)
	w, err := f.Create(context.Background(), req, 7)
	require.NoError(t, err)
	assert.Equal(t, -3, w.Z)
}

func TestFactory_Create_InvalidDoesNotConsumeID(t *testing.T) {
	ids := &seqIDs{}
	f := NewFactory(ids, frozenClock())

	_, err := f.Create(context.Background(), Request{X: Int(1)}, 0)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	w, err := f.Create(context.Background(), fullRequest(), 0)
	require.NoError(t, err)
	assert.Equal(t, ID(1), w.ID, "rejected request must not burn an id")
}

func TestFactory_Create_IDGeneratorFailure(t *testing.T) {
	boom := errors.New("counter unavailable")
	f := NewFactory(&seqIDs{err: boom}, frozenClock())

	_, err := f.Create(context.Background(), fullRequest(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsValidation(err))
}

func TestFactory_Update_MergesFields(t *testing.T) {
	f := NewFactory(&seqIDs{}, frozenClock())
	existing, err := f.Create(context.Background(), fullRequest(), 4)
	require.NoError(t, err)

	updated, err := f.Update(existing, Request{Y: Int(-8), Height: Int(9)})
	require.NoError(t, err)

	assert.Equal(t, existing.ID, updated.ID)
	assert.Equal(t, 10, updated.X)
	assert.Equal(t, -8, updated.Y)
	assert.Equal(t, 4, updated.Z)
	assert.Equal(t, 100, updated.Width)
	assert.Equal(t, 9, updated.Height)
	assert.True(t, updated.LastUpdatedAt.After(existing.LastUpdatedAt))

	// The original value is untouched.
	assert.Equal(t, 20, existing.Y)
}

func TestFactory_Update_EmptyRequestOnlyTouchesTimestamp(t *testing.T) {
	f := NewFactory(&seqIDs{}, frozenClock())
	existing, err := f.Create(context.Background(), fullRequest(), 0)
	require.NoError(t, err)

	updated, err := f.Update(existing, Request{})
	require.NoError(t, err)

	assert.True(t, updated.LastUpdatedAt.After(existing.LastUpdatedAt))
	updated.LastUpdatedAt = existing.LastUpdatedAt
	assert.Equal(t, existing, updated)
}

func TestFactory_Update_RejectsNonPositiveSize(t *testing.T) {
	f := NewFactory(&seqIDs{}, frozenClock())
	existing, err := f.Create(context.Background(), fullRequest(), 0)
	require.NoError(t, err)

	_, err = f.Update(existing, Request{Width: Int(0)})
	assert.True(t, IsValidation(err))
}

func TestFactory_Move_RestampsWidget(t *testing.T) {
	f := NewFactory(&seqIDs{}, frozenClock())
	w, err := f.Create(context.Background(), fullRequest(), 1)
	require.NoError(t, err)

	moved := f.Move(w, 2)
	assert.Equal(t, 2, moved.Z)
	assert.Equal(t, 1, w.Z)
	assert.True(t, moved.LastUpdatedAt.After(w.LastUpdatedAt))
}

func TestFactory_ApplyInPlace(t *testing.T) {
	f := NewFactory(&seqIDs{}, frozenClock())
	w, err := f.Create(context.Background(), fullRequest(), 3)
	require.NoError(t, err)

	r := &row{w: w}
	require.NoError(t, f.ApplyInPlace(r, Request{X: Int(-1), Z: Int(12)}))

	assert.Equal(t, -1, r.w.X)
	assert.Equal(t, 20, r.w.Y)
	assert.Equal(t, 12, r.w.Z)
	assert.True(t, r.w.LastUpdatedAt.After(w.LastUpdatedAt))
}

func TestFactory_ApplyInPlace_InvalidLeavesRowUnchanged(t *testing.T) {
	f := NewFactory(&seqIDs{}, frozenClock())
	w, err := f.Create(context.Background(), fullRequest(), 3)
	require.NoError(t, err)

	r := &row{w: w}
	err = f.ApplyInPlace(r, Request{X: Int(5), Height: Int(-2)})
	assert.True(t, IsValidation(err))
	assert.Equal(t, w, r.w)
}

func TestFactory_WithValidators(t *testing.T) {
	reject := ValidatorFunc(func(Request) error { return NewValidationError("nope") })
	f := NewFactory(&seqIDs{}, frozenClock(), WithValidators(reject, reject))

	_, err := f.Create(context.Background(), fullRequest(), 0)
	assert.True(t, IsValidation(err))
}

func TestFactory_StampUsesAdvancingClock(t *testing.T) {
	now := epoch
	clock := ClockFunc(func() time.Time {
		now = now.Add(time.Second)
		return now
	})
	f := NewFactory(&seqIDs{}, clock)

	w, err := f.Create(context.Background(), fullRequest(), 0)
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(time.Second), w.LastUpdatedAt)

	u, err := f.Update(w, Request{})
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(2*time.Second), u.LastUpdatedAt)
}
