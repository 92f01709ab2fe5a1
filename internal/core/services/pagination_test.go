package services

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-sync-reconciler/internal/domain"
)

// scriptedPages отдает страницы по порядку и запоминает присланные курсоры.
type scriptedPages struct {
	pages   []domain.Page[int]
	errAt   int // номер вызова (с 1), на котором вернуть ошибку; 0 означает никогда
	err     error
	cursors []*string
	limits  []int
}

func (s *scriptedPages) fetch(_ context.Context, req PageRequest) (domain.Page[int], error) {
	s.cursors = append(s.cursors, req.Cursor)
	s.limits = append(s.limits, req.Limit)
	call := len(s.cursors)
	if s.errAt == call {
		return domain.Page[int]{}, s.err
	}
	if call > len(s.pages) {
		return domain.Page[int]{}, errors.New("fetched past the last page")
	}
	return s.pages[call-1], nil
}

func cursor(s string) *string {
	return &s
}

// pagesOf строит страницы заданных размеров с последовательными элементами,
// курсор отсутствует только у последней.
func pagesOf(sizes ...int) []domain.Page[int] {
	pages := make([]domain.Page[int], 0, len(sizes))
	next := 0
	for i, size := range sizes {
		items := make([]int, 0, size)
		for j := 0; j < size; j++ {
			items = append(items, next)
			next++
		}
		page := domain.Page[int]{Items: items}
		if i < len(sizes)-1 {
			page.NextCursor = cursor("c" + strconv.Itoa(i+1))
		}
		pages = append(pages, page)
	}
	return pages
}

func TestRetrieveAll(t *testing.T) {
	tests := []struct {
		name      string
		pages     []domain.Page[int]
		pageSize  int
		maxItems  int
		wantLen   int
		wantCalls int
	}{
		{"single page without cursor", pagesOf(3), 4, 12, 3, 1},
		{"stops at absent cursor", pagesOf(4, 4, 2), 4, 0, 10, 3},
		{"limit reached exactly", pagesOf(4, 4, 4, 4), 4, 12, 12, 3},
		{"limit crossing page kept whole", pagesOf(4, 4, 4), 5, 5, 8, 2},
		{"unbounded", pagesOf(1, 1, 1, 1, 1), 1, 0, 5, 5},
		{"empty page with cursor continues", []domain.Page[int]{
			{Items: []int{}, NextCursor: cursor("c1")},
			{Items: []int{}, NextCursor: cursor("c2")},
			{Items: []int{7}},
		}, 4, 12, 1, 3},
		{"empty first page without cursor", []domain.Page[int]{{}}, 4, 12, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &scriptedPages{pages: tt.pages}

			got, err := RetrieveAll(context.Background(), src.fetch, tt.pageSize, tt.maxItems)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Len(t, got, tt.wantLen)
			assert.Len(t, src.cursors, tt.wantCalls)

			for _, limit := range src.limits {
				assert.Equal(t, tt.pageSize, limit)
			}
		})
	}
}

func TestRetrieveAll_PreservesOrderAndCursors(t *testing.T) {
	src := &scriptedPages{pages: pagesOf(4, 4, 4)}

	got, err := RetrieveAll(context.Background(), src.fetch, 4, 12)
	require.NoError(t, err)

	want := make([]int, 12)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)

	require.Len(t, src.cursors, 3)
	assert.Nil(t, src.cursors[0])
	assert.Equal(t, "c1", *src.cursors[1])
	assert.Equal(t, "c2", *src.cursors[2])
}

func TestRetrieveAll_FailsClosed(t *testing.T) {
	boom := errors.New("boom")
	src := &scriptedPages{pages: pagesOf(4, 4, 4), errAt: 3, err: boom}

	got, err := RetrieveAll(context.Background(), src.fetch, 4, 0)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, src.cursors, 3)
}

func TestRetrieveAll_InvalidPageSize(t *testing.T) {
	src := &scriptedPages{pages: pagesOf(1)}

	_, err := RetrieveAll(context.Background(), src.fetch, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidPageSize)
	assert.Empty(t, src.cursors)
}

func TestRetrieveAll_CanceledContext(t *testing.T) {
	src := &scriptedPages{pages: pagesOf(1)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RetrieveAll(ctx, src.fetch, 4, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.cursors)
}

func TestPager(t *testing.T) {
	src := &scriptedPages{pages: pagesOf(2, 1)}
	p := NewPager(src.fetch, 2)
	ctx := context.Background()

	items, ok, err := p.Next(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int{0, 1}, items)
	assert.False(t, p.Done())

	items, ok, err = p.Next(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int{2}, items)
	assert.True(t, p.Done())
	assert.Equal(t, 2, p.Pages())

	items, ok, err = p.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, items)
	assert.Len(t, src.cursors, 2)
}

func TestPager_StopsAfterError(t *testing.T) {
	boom := errors.New("boom")
	src := &scriptedPages{pages: pagesOf(1, 1), errAt: 1, err: boom}
	p := NewPager(src.fetch, 1)

	_, _, err := p.Next(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, p.Done())

	_, ok, err := p.Next(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, src.cursors, 1)
}

func TestSinglePage(t *testing.T) {
	calls := 0
	fetch := SinglePage(func(context.Context) ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	})

	got, err := RetrieveAll(context.Background(), fetch, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, calls)

	failing := SinglePage(func(context.Context) ([]string, error) {
		return nil, errors.New("down")
	})
	got, err = RetrieveAll(context.Background(), failing, 1, 0)
	assert.Error(t, err)
	assert.Nil(t, got)
}
