package services

import (
	"context"
	"errors"
	"fmt"

	"telegram-sync-reconciler/internal/domain"
)

// ErrInvalidPageSize возвращается при неположительном размере страницы.
var ErrInvalidPageSize = errors.New("page size must be positive")

// PageRequest — параметры запроса одной страницы.
// Cursor равен nil для первой страницы.
type PageRequest struct {
	Limit  int
	Cursor *string
}

// PageFetcher запрашивает одну страницу курсорной выборки.
type PageFetcher[T any] func(ctx context.Context, req PageRequest) (domain.Page[T], error)

// Pager лениво обходит курсорную выборку страница за страницей.
// Перезапуск невозможен: для повторного обхода создается новый Pager.
type Pager[T any] struct {
	fetch    PageFetcher[T]
	pageSize int
	cursor   *string
	pages    int
	done     bool
}

// NewPager создает Pager, запрашивающий страницы размером pageSize.
func NewPager[T any](fetch PageFetcher[T], pageSize int) *Pager[T] {
	return &Pager[T]{
		fetch:    fetch,
		pageSize: pageSize,
	}
}

// Next возвращает элементы следующей страницы. ok равен false, когда выборка
// исчерпана и запроса не было. После ошибки Pager считается завершенным.
func (p *Pager[T]) Next(ctx context.Context) (items []T, ok bool, err error) {
	if p.done {
		return nil, false, nil
	}
	if p.pageSize <= 0 {
		p.done = true
		return nil, false, fmt.Errorf("%w: %d", ErrInvalidPageSize, p.pageSize)
	}

	page, err := p.fetch(ctx, PageRequest{Limit: p.pageSize, Cursor: p.cursor})
	if err != nil {
		p.done = true
		return nil, false, fmt.Errorf("fetch page %d: %w", p.pages+1, err)
	}

	p.pages++
	p.cursor = page.NextCursor
	if page.Done() {
		p.done = true
	}
	return page.Items, true, nil
}

// Done сообщает, что следующих страниц нет.
func (p *Pager[T]) Done() bool {
	return p.done
}

// Pages возвращает число успешно полученных страниц.
func (p *Pager[T]) Pages() int {
	return p.pages
}

// RetrieveAll собирает элементы всех страниц по порядку. Обход останавливается,
// когда курсор отсутствует или накоплено не меньше maxItems элементов
// (страница, пересекшая лимит, сохраняется целиком). maxItems <= 0 снимает лимит.
// Пустая страница с курсором не завершает обход. При любой ошибке частичный
// результат отбрасывается.
func RetrieveAll[T any](ctx context.Context, fetch PageFetcher[T], pageSize, maxItems int) ([]T, error) {
	pager := NewPager(fetch, pageSize)
	all := make([]T, 0)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, ok, err := pager.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		all = append(all, items...)
		if pager.Done() || (maxItems > 0 && len(all) >= maxItems) {
			break
		}
	}
	return all, nil
}

// SinglePage превращает непагинируемую выборку в выборку из одной страницы
// без курсора.
func SinglePage[T any](list func(ctx context.Context) ([]T, error)) PageFetcher[T] {
	return func(ctx context.Context, _ PageRequest) (domain.Page[T], error) {
		items, err := list(ctx)
		if err != nil {
			return domain.Page[T]{}, err
		}
		return domain.Page[T]{Items: items}, nil
	}
}
