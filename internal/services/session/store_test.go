package session

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/models"
)

func testDataset(categories ...string) *models.Dataset {
	schema := models.NewSchema(map[models.Field]int{models.FieldCategory: 0})
	records := make([]models.Record, 0, len(categories))
	for _, c := range categories {
		records = append(records, models.Record{Values: []string{c}, Category: c})
	}
	return models.NewDataset("ds-1", "test.csv", []string{"Category"}, schema, records)
}

func TestGetOrCreate(t *testing.T) {
	store := NewStore(time.Hour, zerolog.Nop())

	s1, created := store.GetOrCreate("")
	require.True(t, created)
	assert.NotEmpty(t, s1.ID)

	s2, created := store.GetOrCreate(s1.ID)
	assert.False(t, created)
	assert.Same(t, s1, s2)

	s3, created := store.GetOrCreate("unknown-id")
	assert.True(t, created)
	assert.NotEqual(t, "unknown-id", s3.ID, "unknown IDs are never adopted")
	assert.Equal(t, 2, store.Len())
}

func TestSessionStartsEmpty(t *testing.T) {
	store := NewStore(time.Hour, zerolog.Nop())
	s, _ := store.GetOrCreate("")

	assert.Empty(t, s.Categories())

	_, err := s.Snapshot()
	assert.ErrorIs(t, err, ErrNoDataset)
}

func TestReplace(t *testing.T) {
	store := NewStore(time.Hour, zerolog.Nop())
	s, _ := store.GetOrCreate("")

	first := testDataset("A", "B", "A")
	s.Replace(first)

	st, err := s.Snapshot()
	require.NoError(t, err)
	assert.Same(t, first, st.Dataset)
	assert.Equal(t, []string{"A", "B"}, s.Categories())

	second := testDataset("C")
	s.Replace(second)

	st, err = s.Snapshot()
	require.NoError(t, err)
	assert.Same(t, second, st.Dataset)
	assert.Equal(t, []string{"C"}, s.Categories())
}

func TestSessionsAreIndependent(t *testing.T) {
	store := NewStore(time.Hour, zerolog.Nop())
	a, _ := store.GetOrCreate("")
	b, _ := store.GetOrCreate("")

	a.Replace(testDataset("A"))

	_, err := a.Snapshot()
	assert.NoError(t, err)
	_, err = b.Snapshot()
	assert.ErrorIs(t, err, ErrNoDataset)
}

func TestSweep(t *testing.T) {
	store := NewStore(time.Minute, zerolog.Nop())
	idle, _ := store.GetOrCreate("")
	active, _ := store.GetOrCreate("")

	now := time.Now()
	idle.touch(now.Add(-2 * time.Minute))
	active.touch(now)

	assert.Equal(t, 1, store.Sweep(now))

	_, ok := store.Get(idle.ID)
	assert.False(t, ok)
	_, ok = store.Get(active.ID)
	assert.True(t, ok)
}

func TestCleanupLoop(t *testing.T) {
	store := NewStore(time.Nanosecond, zerolog.Nop())
	store.GetOrCreate("")

	store.StartCleanup(5 * time.Millisecond)
	defer store.Stop()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStopWithoutStart(t *testing.T) {
	store := NewStore(time.Minute, zerolog.Nop())
	store.Stop()
	store.Stop()
}

func TestConcurrentReplaceAndRead(t *testing.T) {
	store := NewStore(time.Hour, zerolog.Nop())
	s, _ := store.GetOrCreate("")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Replace(testDataset("A", "B"))
		}()
		go func() {
			defer wg.Done()
			if st, err := s.Snapshot(); err == nil {
				assert.Equal(t, st.Dataset.Categories(), st.Categories)
			}
		}()
	}
	wg.Wait()

	_, err := s.Snapshot()
	assert.NoError(t, err)
}

type countingCleaner struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCleaner) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 0
}

func (c *countingCleaner) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestCleanupRunsRegisteredCleaners(t *testing.T) {
	store := NewStore(time.Hour, zerolog.Nop())
	cleaner := &countingCleaner{}
	store.Register(cleaner)

	store.StartCleanup(5 * time.Millisecond)
	defer store.Stop()

	assert.Eventually(t, func() bool { return cleaner.Calls() > 0 }, time.Second, 5*time.Millisecond)
}
