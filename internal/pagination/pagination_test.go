package pagination

import (
	"context"
	"errors"
	"slices"
	"testing"
)

// scriptedRequestor serves a fixed script of pages and can be told to fail on
// a given call.
type scriptedRequestor struct {
	pages  [][]string
	failAt int // 1-based call number that fails, 0 means never
	err    error
	calls  int
}

func (r *scriptedRequestor) NextPage(_ context.Context) ([]string, bool, error) {
	r.calls++
	if r.failAt != 0 && r.calls == r.failAt {
		return nil, false, r.err
	}
	if r.calls > len(r.pages) {
		return nil, false, nil
	}
	// Hand out a copy: the iterator reverses pages in place.
	return slices.Clone(r.pages[r.calls-1]), true, nil
}

func drain(t *testing.T, it *Iterator[string]) []string {
	t.Helper()
	var got []string
	for record := range it.All(context.Background()) {
		got = append(got, record)
	}
	return got
}

func TestIterator_SinglePage_PreservesOrder(t *testing.T) {
	req := &scriptedRequestor{pages: [][]string{{"a", "b", "c"}}}
	it := NewIterator(req)

	got := drain(t, it)

	want := []string{"a", "b", "c"}
	if !slices.Equal(got, want) {
		t.Errorf("drained records = %v, want %v", got, want)
	}
	if err := it.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestIterator_MultiplePages_ConcatenatesInOrder(t *testing.T) {
	req := &scriptedRequestor{pages: [][]string{{"a", "b"}, {"c"}, {"d", "e"}}}
	it := NewIterator(req)

	got := drain(t, it)

	want := []string{"a", "b", "c", "d", "e"}
	if !slices.Equal(got, want) {
		t.Errorf("drained records = %v, want %v", got, want)
	}
	if req.calls != 4 {
		t.Errorf("requestor called %d times, want 4 (three pages plus exhaustion)", req.calls)
	}
}

func TestIterator_EmptyStream(t *testing.T) {
	req := &scriptedRequestor{}
	it := NewIterator(req)

	if got := drain(t, it); len(got) != 0 {
		t.Errorf("drained records = %v, want none", got)
	}
	if err := it.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestIterator_EmptyPagesAreSkipped(t *testing.T) {
	req := &scriptedRequestor{pages: [][]string{{}, {"a"}, {}, {"b"}}}
	it := NewIterator(req)

	got := drain(t, it)

	want := []string{"a", "b"}
	if !slices.Equal(got, want) {
		t.Errorf("drained records = %v, want %v", got, want)
	}
}

func TestIterator_NothingFetchedBeforeFirstNext(t *testing.T) {
	req := &scriptedRequestor{pages: [][]string{{"a"}}}
	_ = NewIterator(req)

	if req.calls != 0 {
		t.Errorf("requestor called %d times before first Next, want 0", req.calls)
	}
}

func TestIterator_FetchError_EndsStreamAndReportsErr(t *testing.T) {
	boom := errors.New("page fetch failed")
	req := &scriptedRequestor{pages: [][]string{{"a", "b"}, {"c"}}, failAt: 2, err: boom}
	it := NewIterator(req)

	got := drain(t, it)

	// Records from the page before the failure were already yielded.
	want := []string{"a", "b"}
	if !slices.Equal(got, want) {
		t.Errorf("drained records = %v, want %v", got, want)
	}
	if !errors.Is(it.Err(), boom) {
		t.Errorf("Err() = %v, want %v", it.Err(), boom)
	}
}

func TestIterator_NoCallsAfterError(t *testing.T) {
	req := &scriptedRequestor{failAt: 1, err: errors.New("fail")}
	it := NewIterator(req)

	drain(t, it)
	if _, ok := it.Next(context.Background()); ok {
		t.Error("Next() after error = ok, want stream end")
	}
	if req.calls != 1 {
		t.Errorf("requestor called %d times, want 1", req.calls)
	}
}

func TestIterator_NoCallsAfterExhaustion(t *testing.T) {
	req := &scriptedRequestor{pages: [][]string{{"a"}}}
	it := NewIterator(req)

	drain(t, it)
	calls := req.calls
	for range 3 {
		if _, ok := it.Next(context.Background()); ok {
			t.Fatal("Next() after exhaustion = ok, want stream end")
		}
	}
	if req.calls != calls {
		t.Errorf("requestor called %d more times after exhaustion, want 0", req.calls-calls)
	}
}

func TestIterator_BreakingOutOfAllKeepsIteratorUsable(t *testing.T) {
	req := &scriptedRequestor{pages: [][]string{{"a", "b", "c"}}}
	it := NewIterator(req)

	for record := range it.All(context.Background()) {
		if record == "a" {
			break
		}
	}

	record, ok := it.Next(context.Background())
	if !ok || record != "b" {
		t.Errorf("Next() after break = %q, %v, want \"b\", true", record, ok)
	}
}
