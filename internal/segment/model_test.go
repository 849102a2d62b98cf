package segment

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selectRange drives the model through pointer gestures to reach [start, end]
// on a bar whose width equals the frame count.
func selectRange(t *testing.T, m *Model, start, end int) {
	t.Helper()
	width := float64(m.Snapshot().TotalFrames)
	cur := m.Snapshot()

	require.Equal(t, DragEnd, m.BeginDrag(float64(cur.End), width))
	m.UpdateDrag(float64(end), width)
	m.EndDrag()

	require.Equal(t, DragStart, m.BeginDrag(float64(cur.Start), width))
	m.UpdateDrag(float64(start), width)
	m.EndDrag()

	got := m.Snapshot()
	require.Equal(t, start, got.Start)
	require.Equal(t, end, got.End)
}

func TestNewModel_Empty(t *testing.T) {
	m := NewModel()
	s := m.Snapshot()

	assert.True(t, s.Empty())
	assert.Equal(t, 0, s.Len())
	assert.ErrorIs(t, s.Validate(), ErrEmpty)
	assert.Equal(t, DragNone, m.BeginDrag(0, 400))
	assert.False(t, m.UpdateDrag(10, 400))
}

func TestSetRange_ResetsRegardlessOfPriorState(t *testing.T) {
	m := NewModel()
	m.SetRange(1000)
	selectRange(t, m, 100, 200)

	m.SetRange(500)

	s := m.Snapshot()
	assert.Equal(t, Segment{TotalFrames: 500, Start: 0, End: 499}, s)
	assert.NoError(t, s.Validate())
	assert.Equal(t, 500, s.Len())
}

func TestBeginDrag_HitTest(t *testing.T) {
	m := NewModel()
	m.SetRange(1000)

	tests := []struct {
		name  string
		pixel float64
		want  DragState
	}{
		{"on start", 0, DragStart},
		{"inside start tolerance", 9, DragStart},
		{"at tolerance boundary", 10, DragNone},
		{"on end", 999, DragEnd},
		{"inside end tolerance", 990, DragEnd},
		{"middle", 500, DragNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.EndDrag()
			assert.Equal(t, tt.want, m.BeginDrag(tt.pixel, 1000))
		})
	}
}

func TestBeginDrag_TieGoesToStart(t *testing.T) {
	m := NewModel()
	m.SetRange(1000)
	selectRange(t, m, 500, 505)

	assert.Equal(t, DragStart, m.BeginDrag(502, 1000))
	assert.Equal(t, DragStart, m.BeginDrag(505, 1000), "end handle is shadowed while start is within tolerance")
}

func TestUpdateDrag_ClampsAndPreservesOrder(t *testing.T) {
	m := NewModel()
	m.SetRange(100)
	selectRange(t, m, 40, 60)

	require.Equal(t, DragStart, m.BeginDrag(40, 100))
	m.UpdateDrag(80, 100)
	s := m.Snapshot()
	assert.Equal(t, 60, s.Start, "start cannot pass end")
	assert.Equal(t, 60, s.End)

	m.UpdateDrag(-50, 100)
	assert.Equal(t, 0, m.Snapshot().Start)
	m.EndDrag()

	require.Equal(t, DragEnd, m.BeginDrag(60, 100))
	m.UpdateDrag(500, 100)
	assert.Equal(t, 99, m.Snapshot().End)
	m.UpdateDrag(-10, 100)
	s = m.Snapshot()
	assert.Equal(t, 0, s.End, "end cannot pass start")
	assert.Equal(t, 0, s.Start)
}

func TestEndDrag_Unconditional(t *testing.T) {
	m := NewModel()
	m.SetRange(100)

	m.EndDrag()
	assert.Equal(t, DragNone, m.Drag())

	m.BeginDrag(0, 100)
	require.Equal(t, DragStart, m.Drag())
	m.EndDrag()
	assert.Equal(t, DragNone, m.Drag())
	assert.False(t, m.UpdateDrag(50, 100))
}

func TestUpdateDrag_InvariantHoldsForRandomGestures(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	m := NewModel()

	for round := 0; round < 50; round++ {
		total := 1 + rng.Intn(2000)
		width := float64(50 + rng.Intn(1000))
		m.SetRange(total)

		for i := 0; i < 200; i++ {
			x := rng.Float64()*width*1.4 - width*0.2
			switch rng.Intn(3) {
			case 0:
				m.BeginDrag(x, width)
			case 1:
				m.UpdateDrag(x, width)
			default:
				m.EndDrag()
			}
			s := m.Snapshot()
			if s.Start < 0 || s.Start > s.End || s.End > s.TotalFrames-1 {
				t.Fatalf("round %d step %d: invariant broken: %+v", round, i, s)
			}
		}
	}
}

func TestSubscribe_NotifiesOnDragCommit(t *testing.T) {
	m := NewModel()
	m.SetRange(100)

	var got [][2]int
	unsubscribe := m.Subscribe(func(start, end int) {
		got = append(got, [2]int{start, end})
	})

	m.UpdateDrag(10, 100) // no drag active
	assert.Empty(t, got)

	m.BeginDrag(99, 100)
	m.UpdateDrag(70, 100)
	m.UpdateDrag(50, 100)
	m.EndDrag()

	assert.Equal(t, [][2]int{{0, 70}, {0, 50}}, got)

	unsubscribe()
	m.BeginDrag(50, 100)
	m.UpdateDrag(60, 100)
	assert.Len(t, got, 2)
}

func TestSubscribe_NotifiesInSubscriptionOrder(t *testing.T) {
	m := NewModel()
	m.SetRange(100)

	var order []string
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		m.Subscribe(func(int, int) { order = append(order, name) })
	}
	unsubscribe := m.Subscribe(func(int, int) { order = append(order, "removed") })
	m.Subscribe(func(int, int) { order = append(order, "f") })
	unsubscribe()

	m.BeginDrag(99, 100)
	m.UpdateDrag(70, 100)
	m.UpdateDrag(60, 100)

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "a", "b", "c", "d", "e", "f"}, order)
}

func TestModel_ConcurrentSnapshots(t *testing.T) {
	m := NewModel()
	m.SetRange(1000)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			m.BeginDrag(999, 1000)
			m.UpdateDrag(float64(i), 1000)
			m.EndDrag()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			assert.NoError(t, m.Snapshot().Validate())
		}
	}()
	wg.Wait()
}

func TestSegment_Seconds(t *testing.T) {
	s := Segment{TotalFrames: 300, Start: 45, End: 299}
	start, end := s.Seconds(30)
	assert.Equal(t, 1, start)
	assert.Equal(t, 9, end)

	start, end = s.Seconds(0)
	assert.Zero(t, start)
	assert.Zero(t, end)
}

func TestDragState_String(t *testing.T) {
	assert.Equal(t, "none", DragNone.String())
	assert.Equal(t, "start", DragStart.String())
	assert.Equal(t, "end", DragEnd.String())
}
