package client

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// NoticeKind classifies a Notice
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message about the outcome of a mutation
type Notice struct {
	ID      int64
	Kind    NoticeKind
	Message string
}

// FormMode tells which product form, if any, is open
type FormMode int

const (
	FormClosed FormMode = iota
	FormCreate
	FormEdit
)

// Filter narrows the product list
type Filter struct {
	Category string
	Search   string
	MinPrice string
	MaxPrice string
}

// Browser holds the state behind a product list view: the current page, its filters, the
// open form and pending notices. Every successful mutation refetches the list.
// Methods are serialized, so a Browser is safe for concurrent use.
type Browser struct {
	client    *Client
	validator *FormValidator

	mu         sync.Mutex
	filter     Filter
	page       int
	limit      int
	products   []Product
	pagination Pagination
	form       FormMode
	editing    *Product
	notices    []Notice
	lastNotice int64
}

// NewBrowser creates a Browser showing limit products per page
func NewBrowser(c *Client, v *FormValidator, limit int) *Browser {
	if v == nil {
		v = NewFormValidator(NoRules)
	}
	return &Browser{client: c, validator: v, page: 1, limit: limit}
}

// Products returns the products on the current page
func (b *Browser) Products() []Product {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Product(nil), b.products...)
}

// Pagination returns the metadata of the current page
func (b *Browser) Pagination() Pagination {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pagination
}

// Filter returns the active filter
func (b *Browser) Filter() Filter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

// Form returns the open form and, when editing, the product being edited
func (b *Browser) Form() (FormMode, *Product) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.form, b.editing
}

// Notices returns the notices not yet dismissed, oldest first
func (b *Browser) Notices() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notice(nil), b.notices...)
}

// Dismiss removes the notice with the given id
func (b *Browser) Dismiss(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.notices[:0]
	for _, n := range b.notices {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	b.notices = kept
}

// Refresh refetches the current page
func (b *Browser) Refresh(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refresh(ctx)
}

// SetFilter replaces the filter and returns to the first page
func (b *Browser) SetFilter(ctx context.Context, f Filter) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.filter = f
	b.page = 1
	return b.refresh(ctx)
}

// NextPage moves forward one page; it does nothing on the last page
func (b *Browser) NextPage(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.page >= b.pagination.TotalPages {
		return nil
	}
	b.page++
	return b.refresh(ctx)
}

// PrevPage moves back one page; it does nothing on the first page
func (b *Browser) PrevPage(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.page <= 1 {
		return nil
	}
	b.page--
	return b.refresh(ctx)
}

// OpenCreate opens an empty product form
func (b *Browser) OpenCreate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.form, b.editing = FormCreate, nil
}

// OpenEdit loads a product into the edit form
func (b *Browser) OpenEdit(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.client.Get(ctx, id)
	if err != nil {
		b.notify(NoticeError, errorMessage(err))
		return err
	}
	b.form, b.editing = FormEdit, p
	return nil
}

// CloseForm closes whichever form is open
func (b *Browser) CloseForm() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.form, b.editing = FormClosed, nil
}

// Create validates and submits a new product. Invalid input is returned as *FormError without
// contacting the server.
func (b *Browser) Create(ctx context.Context, fields Fields, img *Image) (Notice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if errs := b.validator.ValidateCreate(fields, img); errs != nil {
		return Notice{}, &FormError{Fields: errs}
	}

	if _, err := b.client.Create(ctx, fields, img); err != nil {
		return b.notify(NoticeError, errorMessage(err)), err
	}

	b.form, b.editing = FormClosed, nil
	return b.notify(NoticeSuccess, "Product created successfully"), b.refresh(ctx)
}

// Update validates and submits changes to a product
func (b *Browser) Update(ctx context.Context, id int64, fields Fields, img *Image) (Notice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if errs := b.validator.ValidateUpdate(fields, img); errs != nil {
		return Notice{}, &FormError{Fields: errs}
	}

	if _, err := b.client.Update(ctx, id, fields, img); err != nil {
		return b.notify(NoticeError, errorMessage(err)), err
	}

	b.form, b.editing = FormClosed, nil
	return b.notify(NoticeSuccess, "Product updated successfully"), b.refresh(ctx)
}

// Delete removes a product. Emptying the last page steps back one page.
func (b *Browser) Delete(ctx context.Context, id int64) (Notice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.client.Delete(ctx, id); err != nil {
		return b.notify(NoticeError, errorMessage(err)), err
	}

	notice := b.notify(NoticeSuccess, "Product deleted successfully")
	if err := b.refresh(ctx); err != nil {
		return notice, err
	}
	if len(b.products) == 0 && b.page > 1 {
		b.page--
		return notice, b.refresh(ctx)
	}
	return notice, nil
}

// refresh must be called with mu held
func (b *Browser) refresh(ctx context.Context) error {
	page, err := b.client.List(ctx, Query{
		Category: b.filter.Category,
		Search:   b.filter.Search,
		MinPrice: b.filter.MinPrice,
		MaxPrice: b.filter.MaxPrice,
		Page:     b.page,
		Limit:    b.limit,
	})
	if err != nil {
		b.notify(NoticeError, errorMessage(err))
		return err
	}

	b.products = page.Products
	b.pagination = page.Pagination
	if page.Pagination.Page > 0 {
		b.page = page.Pagination.Page
	}
	return nil
}

// notify must be called with mu held
func (b *Browser) notify(kind NoticeKind, message string) Notice {
	b.lastNotice++
	n := Notice{ID: b.lastNotice, Kind: kind, Message: message}
	b.notices = append(b.notices, n)
	return n
}

func errorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if len(apiErr.Details) == 0 {
			return apiErr.Message
		}
		parts := make([]string, 0, len(apiErr.Details))
		for _, d := range apiErr.Details {
			parts = append(parts, d.Field+": "+d.Message)
		}
		return apiErr.Message + " (" + strings.Join(parts, "; ") + ")"
	}
	return err.Error()
}
