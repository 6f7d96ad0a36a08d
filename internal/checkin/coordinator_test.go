package checkin

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/repository"
	"github.com/iliyamo/checkin-core/internal/testutil"
)

var testDate = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

func TestGetOrCreateOccurrenceConcurrent(t *testing.T) {
	t.Parallel()
	store := testutil.NewStore()
	c := NewCoordinator(store, store, 0, 0, nil)
	sched := int64(7)

	const n = 50
	ids := make([]int64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			occ, err := c.GetOrCreateOccurrence(context.Background(), 10, &sched, testDate)
			errs[i] = err
			if occ != nil {
				ids[i] = occ.ID
			}
		}()
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got occurrence %d, caller 0 got %d", i, ids[i], ids[0])
		}
	}
	if got := len(store.Occurrences()); got != 1 {
		t.Fatalf("stored %d occurrences, want 1", got)
	}
}

func TestGetOrCreateOccurrenceSeparatesSchedules(t *testing.T) {
	t.Parallel()
	store := testutil.NewStore()
	c := NewCoordinator(store, store, 0, 0, nil)
	s1, s2 := int64(1), int64(2)
	ctx := context.Background()

	a, err := c.GetOrCreateOccurrence(ctx, 10, &s1, testDate)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.GetOrCreateOccurrence(ctx, 10, &s2, testDate)
	if err != nil {
		t.Fatal(err)
	}
	none, err := c.GetOrCreateOccurrence(ctx, 10, nil, testDate)
	if err != nil {
		t.Fatal(err)
	}
	again, err := c.GetOrCreateOccurrence(ctx, 10, nil, testDate.Add(15*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID || a.ID == none.ID || b.ID == none.ID {
		t.Fatalf("distinct triples shared a row: %d %d %d", a.ID, b.ID, none.ID)
	}
	if again.ID != none.ID {
		t.Fatalf("same date at another hour created a second row")
	}
}

// racyOccurrences loses the insert race once: the first read misses, the
// insert conflicts, and the second read finds the winner's row.
type racyOccurrences struct {
	finds  int
	winner model.Occurrence
}

func (r *racyOccurrences) InsertOccurrence(context.Context, model.Occurrence) (repository.InsertResult[model.Occurrence], error) {
	return repository.Conflicted[model.Occurrence](), nil
}

func (r *racyOccurrences) FindOccurrence(context.Context, int64, *int64, time.Time) (*model.Occurrence, error) {
	r.finds++
	if r.finds == 1 {
		return nil, repository.ErrNotFound
	}
	w := r.winner
	return &w, nil
}

func TestGetOrCreateOccurrenceRecoversFromConflict(t *testing.T) {
	t.Parallel()
	occ := &racyOccurrences{winner: model.Occurrence{ID: 99, LocationID: 10, OccurrenceDate: testDate}}
	c := NewCoordinator(occ, nil, 0, 0, nil)

	got, err := c.GetOrCreateOccurrence(context.Background(), 10, nil, testDate)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != 99 {
		t.Fatalf("got occurrence %d, want the winner's 99", got.ID)
	}
}

func TestAllocateSecurityCodeUniqueUnderConcurrency(t *testing.T) {
	t.Parallel()
	store := testutil.NewStore()
	c := NewCoordinator(store, store, 3, 10, nil)

	const n = 100
	codes := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ac, err := c.AllocateSecurityCode(context.Background(), testDate)
			errs[i] = err
			if ac != nil {
				codes[i] = ac.Code
			}
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, code := range codes {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if seen[code] {
			t.Fatalf("code %q issued twice", code)
		}
		seen[code] = true
	}
}

func TestAllocateSecurityCodeSameCodeOtherDay(t *testing.T) {
	t.Parallel()
	store := testutil.NewStore()
	fixed := func(int) (string, error) { return "ABC", nil }
	c := NewCoordinator(store, store, 3, 2, fixed)
	ctx := context.Background()

	if _, err := c.AllocateSecurityCode(ctx, testDate); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AllocateSecurityCode(ctx, testDate.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("code reuse on a different date rejected: %v", err)
	}
}

func TestAllocateSecurityCodeExhaustion(t *testing.T) {
	t.Parallel()
	store := testutil.NewStore()
	fixed := func(int) (string, error) { return "AAA", nil }
	c := NewCoordinator(store, store, 3, 10, fixed)
	ctx := context.Background()

	if _, err := c.AllocateSecurityCode(ctx, testDate); err != nil {
		t.Fatal(err)
	}
	_, err := c.AllocateSecurityCode(ctx, testDate)
	if !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Fatalf("err = %v, want ErrCodeSpaceExhausted", err)
	}
	if store.CodeInserts != 11 {
		t.Fatalf("attempted %d inserts, want 1 + 10", store.CodeInserts)
	}
}

func TestRandomCodeAlphabet(t *testing.T) {
	t.Parallel()
	for i := 0; i < 200; i++ {
		code, err := RandomCode(6)
		if err != nil {
			t.Fatal(err)
		}
		if len(code) != 6 {
			t.Fatalf("len(%q) = %d", code, len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
	}
}
