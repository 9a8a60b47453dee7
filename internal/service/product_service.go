package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"product-catalog/internal/domain"
	"product-catalog/internal/repository"
	"product-catalog/internal/storage"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NUMERIC(10,2)
var maxPrice = decimal.New(1, 8)

const (
	MaxNameLength     = 255
	MaxCategoryLength = 255
	// INTEGER column
	MaxStock = math.MaxInt32

	missingFieldsMessage = "Missing required fields: name, description, price, category"
	invalidFieldsMessage = "Invalid product fields"
)

// FieldError names one rejected field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when input is missing or out of range; nothing is persisted
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// ProductInput carries the fields a caller supplied. Nil means "not supplied".
type ProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	Stock       *int
}

// ProductService defines the business operations on the catalog
type ProductService interface {
	Create(ctx context.Context, input ProductInput, image string) (*domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter, page repository.PageRequest) (repository.PageResult[*domain.Product], error)
	Update(ctx context.Context, id int64, input ProductInput, image string) (*domain.Product, error)
	Delete(ctx context.Context, id int64) error
	Categories(ctx context.Context) ([]*domain.Category, error)
}

type productService struct {
	repo       repository.ProductRepository
	categories repository.CategoryRepository
	images     storage.ImageStore
	logger     *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	repo repository.ProductRepository,
	categories repository.CategoryRepository,
	images storage.ImageStore,
	logger *zap.Logger,
) ProductService {
	return &productService{
		repo:       repo,
		categories: categories,
		images:     images,
		logger:     logger,
	}
}

// Create validates the input and stores a new product. image is the stored filename of an
// uploaded image, or empty.
func (s *productService) Create(ctx context.Context, input ProductInput, image string) (*domain.Product, error) {
	if missing := missingRequired(input); len(missing) > 0 {
		return nil, &ValidationError{Message: missingFieldsMessage, Fields: missing}
	}

	product := &domain.Product{
		Name:        *input.Name,
		Description: *input.Description,
		Price:       *input.Price,
		Category:    *input.Category,
	}
	if input.Stock != nil {
		product.Stock = *input.Stock
	}
	if image != "" {
		product.Image = &image
	}

	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.Bool("has_image", product.HasImage()))
	return product, nil
}

func (s *productService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *productService) List(ctx context.Context, filter domain.ProductFilter, page repository.PageRequest) (repository.PageResult[*domain.Product], error) {
	result, err := s.repo.List(ctx, filter, page.Normalize())
	if err != nil {
		return result, fmt.Errorf("failed to list products: %w", err)
	}
	return result, nil
}

// Update applies the supplied fields to an existing product. A new image replaces the previous
// one, whose file is removed first.
func (s *productService) Update(ctx context.Context, id int64, input ProductInput, image string) (*domain.Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.Category != nil {
		product.Category = *input.Category
	}
	if input.Stock != nil {
		product.Stock = *input.Stock
	}

	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if image != "" {
		if previous := product.ImageName(); previous != "" && previous != image {
			s.removeImage(ctx, previous)
		}
		product.Image = &image
	}

	if err := s.repo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.logger.Info("Product updated", zap.Int64("product_id", product.ID))
	return product, nil
}

// Delete removes the product and, best-effort, its image
func (s *productService) Delete(ctx context.Context, id int64) error {
	product, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if product.HasImage() {
		s.removeImage(ctx, product.ImageName())
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

// Categories lists the categories in use with their product counts
func (s *productService) Categories(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// removeImage logs and swallows failures
func (s *productService) removeImage(ctx context.Context, name string) {
	if err := s.images.Remove(ctx, name); err != nil {
		s.logger.Warn("Failed to remove product image", zap.String("image", name), zap.Error(err))
	}
}

func missingRequired(input ProductInput) []FieldError {
	var missing []FieldError
	add := func(field string) {
		missing = append(missing, FieldError{Field: field, Message: "This field is required"})
	}

	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		add("name")
	}
	if input.Description == nil || strings.TrimSpace(*input.Description) == "" {
		add("description")
	}
	if input.Price == nil {
		add("price")
	}
	if input.Category == nil || strings.TrimSpace(*input.Category) == "" {
		add("category")
	}

	return missing
}

func validateProduct(p *domain.Product) error {
	var fields []FieldError

	// checked as stored, so a value that rounds up to the limit is caught here
	p.Price = p.Price.Round(2)

	switch {
	case strings.TrimSpace(p.Name) == "":
		fields = append(fields, FieldError{Field: "name", Message: "This field is required"})
	case utf8.RuneCountInString(p.Name) > MaxNameLength:
		fields = append(fields, FieldError{Field: "name", Message: "Value is too long"})
	}
	if strings.TrimSpace(p.Description) == "" {
		fields = append(fields, FieldError{Field: "description", Message: "This field is required"})
	}
	switch {
	case strings.TrimSpace(p.Category) == "":
		fields = append(fields, FieldError{Field: "category", Message: "This field is required"})
	case utf8.RuneCountInString(p.Category) > MaxCategoryLength:
		fields = append(fields, FieldError{Field: "category", Message: "Value is too long"})
	}
	switch {
	case p.Price.IsNegative():
		fields = append(fields, FieldError{Field: "price", Message: "Value must be greater than or equal to 0"})
	case p.Price.GreaterThanOrEqual(maxPrice):
		fields = append(fields, FieldError{Field: "price", Message: "Value must be less than " + maxPrice.String()})
	}
	switch {
	case p.Stock < 0:
		fields = append(fields, FieldError{Field: "stock", Message: "Value must be greater than or equal to 0"})
	case p.Stock > MaxStock:
		fields = append(fields, FieldError{Field: "stock", Message: fmt.Sprintf("Value must be less than or equal to %d", MaxStock)})
	}

	if len(fields) > 0 {
		return &ValidationError{Message: invalidFieldsMessage, Fields: fields}
	}
	return nil
}
