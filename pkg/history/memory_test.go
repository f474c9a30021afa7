package history

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sallich/PixelHub/pkg/canvas"
)

func place(x, y, color int, at time.Time) canvas.Placement {
	return canvas.Placement{X: x, Y: y, Color: color, Nickname: "alice", PlacedAt: at}
}

func TestLastWritePerCellWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Append(ctx, place(5, 5, 2, base))
	require.NoError(t, err)
	_, err = s.Append(ctx, place(5, 5, 1, base.Add(31*time.Second)))
	require.NoError(t, err)
	_, err = s.Append(ctx, place(1, 1, 0, base.Add(40*time.Second)))
	require.NoError(t, err)

	board, err := s.Board(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Cell{{X: 1, Y: 1, Color: 0}, {X: 5, Y: 5, Color: 1}}, board)
}

func TestSnapshotAsOfExcludesLaterRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Append(ctx, place(5, 5, 2, base))
	require.NoError(t, err)
	_, err = s.Append(ctx, place(5, 5, 1, base.Add(31*time.Second)))
	require.NoError(t, err)

	early, err := s.SnapshotAsOf(ctx, base.Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []Cell{{X: 5, Y: 5, Color: 2}}, early)

	late, err := s.SnapshotAsOf(ctx, base.Add(31*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []Cell{{X: 5, Y: 5, Color: 1}}, late)

	// Before any placement the board is empty.
	empty, err := s.SnapshotAsOf(ctx, base.Add(-time.Second))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEqualTimestampLaterAppendWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Append(ctx, place(3, 3, 0, at))
	require.NoError(t, err)
	_, err = s.Append(ctx, place(3, 3, 7, at))
	require.NoError(t, err)

	board, err := s.Board(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Cell{{X: 3, Y: 3, Color: 7}}, board)
}

func TestSnapshotProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	type placementSpec struct {
		X, Y, Color, Offset int
	}
	genSpec := gen.Struct(reflect.TypeOf(placementSpec{}), map[string]gopter.Gen{
		"X":      gen.IntRange(0, 5),
		"Y":      gen.IntRange(0, 5),
		"Color":  gen.IntRange(0, 15),
		"Offset": gen.IntRange(0, 100),
	})
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	build := func(specs []placementSpec) *MemoryStore {
		s := NewMemoryStore()
		for _, spec := range specs {
			_, _ = s.Append(context.Background(), canvas.Placement{
				X:        spec.X,
				Y:        spec.Y,
				Color:    spec.Color,
				Nickname: "prop",
				PlacedAt: base.Add(time.Duration(spec.Offset) * time.Second),
			})
		}
		return s
	}

	properties.Property("snapshot never includes records placed after T", prop.ForAll(
		func(specs []placementSpec, cutoff int) bool {
			s := build(specs)
			t := base.Add(time.Duration(cutoff) * time.Second)
			cells, err := s.SnapshotAsOf(context.Background(), t)
			if err != nil {
				return false
			}

			// Every returned cell must be explainable by a qualifying record.
			for _, c := range cells {
				found := false
				for _, spec := range specs {
					if spec.X == c.X && spec.Y == c.Y && spec.Color == c.Color && spec.Offset <= cutoff {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genSpec),
		gen.IntRange(0, 100),
	))

	properties.Property("snapshot is idempotent without intervening appends", prop.ForAll(
		func(specs []placementSpec, cutoff int) bool {
			s := build(specs)
			t := base.Add(time.Duration(cutoff) * time.Second)
			first, err := s.SnapshotAsOf(context.Background(), t)
			if err != nil {
				return false
			}
			second, err := s.SnapshotAsOf(context.Background(), t)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(first, second)
		},
		gen.SliceOf(genSpec),
		gen.IntRange(0, 100),
	))

	properties.Property("full board equals snapshot at the latest timestamp", prop.ForAll(
		func(specs []placementSpec) bool {
			s := build(specs)
			board, err := s.Board(context.Background())
			if err != nil {
				return false
			}
			snap, err := s.SnapshotAsOf(context.Background(), base.Add(101*time.Second))
			if err != nil {
				return false
			}
			return reflect.DeepEqual(board, snap)
		},
		gen.SliceOf(genSpec),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func BenchmarkSnapshotAsOf(b *testing.B) {
	s := NewMemoryStore()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10000; i++ {
		_, _ = s.Append(context.Background(), canvas.Placement{
			X:        i % 100,
			Y:        (i / 100) % 100,
			Color:    i % 16,
			Nickname: "bench",
			PlacedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
	}
	cutoff := base.Add(5 * time.Second)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := s.SnapshotAsOf(context.Background(), cutoff); err != nil {
			b.Fatal(err)
		}
	}
}
