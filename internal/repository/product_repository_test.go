package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"product-catalog/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dbParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	return parameters
}

func newProduct(name, category string, cents int64, stock int) *domain.Product {
	return &domain.Product{
		Name:        name,
		Description: "Description of " + name,
		Price:       decimal.New(cents, -2),
		Category:    category,
		Stock:       stock,
	}
}

func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(dbParameters())

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(name string, cents int64, stock int, withImage bool) bool {
			product := newProduct(name, "props-"+uuid.NewString(), cents, stock)
			if withImage {
				image := "1700000000000-" + name + ".png"
				product.Image = &image
			}

			if err := repo.Create(ctx, product); err != nil {
				t.Logf("Failed to create product: %v", err)
				return false
			}
			if product.ID <= 0 || product.CreatedAt.IsZero() || product.UpdatedAt.IsZero() {
				return false
			}

			found, err := repo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("Failed to find product: %v", err)
				return false
			}

			return found.Name == product.Name &&
				found.Description == product.Description &&
				found.Price.Equal(product.Price) &&
				found.Category == product.Category &&
				found.Stock == product.Stock &&
				found.ImageName() == product.ImageName()
		},
		gen.Identifier(),
		gen.Int64Range(0, 99_999_999),
		gen.IntRange(0, 100_000),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCreateRoundsPriceToCents(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	product := newProduct("Rounded", "rounding", 0, 0)
	product.Price = decimal.RequireFromString("12.345")
	require.NoError(t, repo.Create(ctx, product))

	found, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "12.35", found.Price.StringFixed(2))
}

func TestDatabaseRejectsNegativeValues(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	assert.Error(t, repo.Create(ctx, newProduct("Negative", "checks", -1, 0)))
	assert.Error(t, repo.Create(ctx, newProduct("Negative", "checks", 100, -1)))
}

func TestProperty_PriceRangeFilterIsInclusive(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(dbParameters())

	properties.Property("only products priced within [min, max] are listed", prop.ForAll(
		func(prices []int64, a, b int64) bool {
			minCents, maxCents := a, b
			if minCents > maxCents {
				minCents, maxCents = maxCents, minCents
			}

			category := "range-" + uuid.NewString()
			expected := 0
			for i, cents := range prices {
				if err := repo.Create(ctx, newProduct("item"+string(rune('a'+i%26)), category, cents, 1)); err != nil {
					return false
				}
				if cents >= minCents && cents <= maxCents {
					expected++
				}
			}

			minPrice, maxPrice := decimal.New(minCents, -2), decimal.New(maxCents, -2)
			result, err := repo.List(ctx, domain.ProductFilter{
				Category: category,
				MinPrice: &minPrice,
				MaxPrice: &maxPrice,
			}, PageRequest{Page: 1, Limit: MaxLimit})
			if err != nil {
				t.Logf("Failed to list products: %v", err)
				return false
			}

			if result.Total != expected || len(result.Items) != expected {
				return false
			}
			for _, p := range result.Items {
				if p.Price.LessThan(minPrice) || p.Price.GreaterThan(maxPrice) || p.Category != category {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.Int64Range(0, 10_000)),
		gen.Int64Range(0, 10_000),
		gen.Int64Range(0, 10_000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestSearchMatchesNameOrDescriptionCaseInsensitively(t *testing.T) {
	resetProducts(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	inName := newProduct("Blue WIDGET", "search", 100, 1)
	inDescription := newProduct("Gizmo", "search", 100, 1)
	inDescription.Description = "a small wide-angle widget"
	neither := newProduct("Sprocket", "search", 100, 1)
	neither.Description = "no match here"

	for _, p := range []*domain.Product{inName, inDescription, neither} {
		require.NoError(t, repo.Create(ctx, p))
	}

	result, err := repo.List(ctx, domain.ProductFilter{Search: "wid"}, PageRequest{})
	require.NoError(t, err)

	ids := map[int64]bool{}
	for _, p := range result.Items {
		ids[p.ID] = true
		assert.True(t,
			strings.Contains(strings.ToLower(p.Name), "wid") || strings.Contains(strings.ToLower(p.Description), "wid"))
	}
	assert.True(t, ids[inName.ID])
	assert.True(t, ids[inDescription.ID])
	assert.False(t, ids[neither.ID])
	assert.Equal(t, 2, result.Total)
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	resetProducts(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	discount := newProduct("50% off", "wildcards", 100, 1)
	plain := newProduct("500 pens", "wildcards", 100, 1)
	require.NoError(t, repo.Create(ctx, discount))
	require.NoError(t, repo.Create(ctx, plain))

	result, err := repo.List(ctx, domain.ProductFilter{Search: "0%"}, PageRequest{})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, discount.ID, result.Items[0].ID)

	result, err = repo.List(ctx, domain.ProductFilter{Search: "_"}, PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	resetProducts(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	var created []*domain.Product
	for i := 0; i < 25; i++ {
		p := newProduct("paged", "paging", int64(i*100), i)
		require.NoError(t, repo.Create(ctx, p))
		created = append(created, p)
	}

	first, err := repo.List(ctx, domain.ProductFilter{}, PageRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, first.Total)
	assert.Equal(t, 3, first.TotalPages)
	require.Len(t, first.Items, 10)
	assert.Equal(t, created[24].ID, first.Items[0].ID)

	last, err := repo.List(ctx, domain.ProductFilter{}, PageRequest{Page: 3, Limit: 10})
	require.NoError(t, err)
	require.Len(t, last.Items, 5)
	assert.Equal(t, created[0].ID, last.Items[4].ID)

	beyond, err := repo.List(ctx, domain.ProductFilter{}, PageRequest{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 25, beyond.Total)

	clamped, err := repo.List(ctx, domain.ProductFilter{}, PageRequest{Page: 0, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, clamped.Page)
	assert.Equal(t, MaxLimit, clamped.Limit)
	assert.Len(t, clamped.Items, 25)
}

func TestProperty_ProductUpdatesAreReflected(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(dbParameters())

	properties.Property("updates are persisted and refresh updated_at", prop.ForAll(
		func(newStock int, newCents int64) bool {
			product := newProduct("updatable", "updates", 1000, 1)
			if err := repo.Create(ctx, product); err != nil {
				return false
			}
			before := product.UpdatedAt

			product.Stock = newStock
			product.Price = decimal.New(newCents, -2)
			if err := repo.Update(ctx, product); err != nil {
				t.Logf("Failed to update product: %v", err)
				return false
			}

			found, err := repo.FindByID(ctx, product.ID)
			if err != nil {
				return false
			}

			return found.Stock == newStock &&
				found.Price.Equal(decimal.New(newCents, -2)) &&
				found.Name == "updatable" &&
				found.UpdatedAt.After(before)
		},
		gen.IntRange(0, 10_000),
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUpdateMissingProduct(t *testing.T) {
	repo := NewProductRepository(testDB)

	product := newProduct("ghost", "missing", 100, 1)
	product.ID = 987654321
	assert.ErrorIs(t, repo.Update(context.Background(), product), ErrProductNotFound)
}

func TestProperty_ProductDeletionRemovesFromCatalog(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(dbParameters())

	properties.Property("deleted products can no longer be found or deleted", prop.ForAll(
		func(name string) bool {
			product := newProduct(name, "deletes", 100, 1)
			if err := repo.Create(ctx, product); err != nil {
				return false
			}

			if err := repo.Delete(ctx, product.ID); err != nil {
				return false
			}

			_, err := repo.FindByID(ctx, product.ID)
			return errors.Is(err, ErrProductNotFound) &&
				errors.Is(repo.Delete(ctx, product.ID), ErrProductNotFound)
		},
		gen.Identifier(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCategoriesListsCounts(t *testing.T) {
	resetProducts(t)
	repo := NewProductRepository(testDB)
	categories := NewCategoryRepository(testDB)
	ctx := context.Background()

	for _, c := range []string{"Office", "Office", "Kitchen", ""} {
		p := newProduct("item", c, 100, 1)
		require.NoError(t, repo.Create(ctx, p))
	}

	list, err := categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.Category{Name: "Kitchen", ProductCount: 1}, *list[0])
	assert.Equal(t, domain.Category{Name: "Office", ProductCount: 2}, *list[1])
}
