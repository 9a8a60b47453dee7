package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"product-catalog/internal/domain"
	"product-catalog/internal/middleware"
	"product-catalog/internal/repository"
	"product-catalog/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxJSONBody = 1 << 20

	msgProductNotFound = "Product not found"
	msgInvalidFields   = "Invalid product fields"
)

var productFields = []string{"name", "description", "price", "category", "stock"}

// productRequest is the textual form of a create/update payload before conversion
type productRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	Price       *string `json:"price" validate:"omitempty,numeric"`
	Category    *string `json:"category" validate:"omitempty,max=255"`
	Stock       *string `json:"stock" validate:"omitempty,number"`
}

// ProductResponse is a product as returned to clients
type ProductResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	Image       *string   `json:"image"`
	ImageURL    *string   `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Pagination describes the page returned by a list request
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// DataResponse wraps a successful single-result response
type DataResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// ListResponse wraps a page of products
type ListResponse struct {
	Message    string            `json:"message"`
	Data       []ProductResponse `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

// DeletedResponse is the data of a successful delete
type DeletedResponse struct {
	ID int64 `json:"id"`
}

// ProductHandler handles HTTP requests for catalog operations
type ProductHandler struct {
	productService service.ProductService
	publicBaseURL  string
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler. When publicBaseURL is empty image URLs are
// built from the incoming request's scheme and host.
func NewProductHandler(productService service.ProductService, publicBaseURL string, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		publicBaseURL:  strings.TrimRight(publicBaseURL, "/"),
		logger:         logger,
	}
}

// RegisterRoutes registers all catalog routes under /api. upload is applied to the routes
// that accept an image.
func (h *ProductHandler) RegisterRoutes(r chi.Router, upload func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.With(upload).Post("/", h.CreateProduct)
			r.Get("/{id}", h.GetProduct)
			r.With(upload).Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
		r.Get("/categories", h.ListCategories)
	})
}

// CreateProduct handles product creation
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	image, _ := middleware.UploadedImage(r.Context())

	product, err := h.productService.Create(r.Context(), input, image)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, DataResponse{
		Message: "Product created successfully",
		Data:    h.toResponse(r, product),
	})
}

// ListProducts handles filtered, paginated listing
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, page, fieldErrs := parseListQuery(r)
	if len(fieldErrs) > 0 {
		middleware.RespondWithValidationErrors(w, "Invalid query parameters", fieldErrs)
		return
	}

	result, err := h.productService.List(r.Context(), filter, page)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	data := make([]ProductResponse, 0, len(result.Items))
	for _, p := range result.Items {
		data = append(data, h.toResponse(r, p))
	}

	middleware.RespondWithJSON(w, http.StatusOK, ListResponse{
		Message: "Products retrieved successfully",
		Data:    data,
		Pagination: Pagination{
			Total:      result.Total,
			Page:       result.Page,
			Limit:      result.Limit,
			TotalPages: result.TotalPages,
		},
	})
}

// GetProduct handles fetching a single product
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, DataResponse{
		Message: "Product retrieved successfully",
		Data:    h.toResponse(r, product),
	})
}

// UpdateProduct handles partial updates
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	input, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	image, _ := middleware.UploadedImage(r.Context())

	product, err := h.productService.Update(r.Context(), id, input, image)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, DataResponse{
		Message: "Product updated successfully",
		Data:    h.toResponse(r, product),
	})
}

// DeleteProduct handles product deletion
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, DataResponse{
		Message: "Product deleted successfully",
		Data:    DeletedResponse{ID: id},
	})
}

// ListCategories handles listing the categories in use
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.productService.Categories(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, DataResponse{
		Message: "Categories retrieved successfully",
		Data:    categories,
	})
}

func (h *ProductHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		details := make([]middleware.ValidationError, 0, len(validationErr.Fields))
		for _, f := range validationErr.Fields {
			details = append(details, middleware.ValidationError{Field: f.Field, Message: f.Message})
		}
		middleware.RespondWithValidationErrors(w, validationErr.Message, details)
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, msgProductNotFound)
	default:
		h.logger.Error("Product request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeProduct reads a JSON, urlencoded or multipart body into service input. It writes the
// error response itself and reports whether decoding succeeded.
func (h *ProductHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (service.ProductInput, bool) {
	req, err := readProductRequest(w, r)
	if err != nil {
		var fieldErr *fieldTypeError
		if errors.As(err, &fieldErr) {
			middleware.RespondWithValidationErrors(w, msgInvalidFields, []middleware.ValidationError{
				{Field: fieldErr.field, Message: "Value must be a string or number"},
			})
			return service.ProductInput{}, false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return service.ProductInput{}, false
	}

	if err := middleware.ValidateRequest(req); err != nil {
		if fieldErrs := middleware.FormatValidationErrors(err); len(fieldErrs) > 0 {
			middleware.RespondWithValidationErrors(w, msgInvalidFields, fieldErrs)
			return service.ProductInput{}, false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return service.ProductInput{}, false
	}

	input, fieldErrs := req.toInput()
	if len(fieldErrs) > 0 {
		middleware.RespondWithValidationErrors(w, msgInvalidFields, fieldErrs)
		return service.ProductInput{}, false
	}

	return input, true
}

type fieldTypeError struct {
	field string
}

func (e *fieldTypeError) Error() string {
	return "unsupported value for " + e.field
}

func readProductRequest(w http.ResponseWriter, r *http.Request) (*productRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if r.MultipartForm == nil {
			if err := r.ParseMultipartForm(maxJSONBody); err != nil {
				return nil, err
			}
		}
		return formRequest(r.PostForm), nil
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return formRequest(r.PostForm), nil
	default:
		return jsonRequest(http.MaxBytesReader(w, r.Body, maxJSONBody))
	}
}

// form submissions send every input, so empty values mean "not supplied"
func formRequest(values map[string][]string) *productRequest {
	get := func(key string) *string {
		vs, ok := values[key]
		if !ok || len(vs) == 0 || strings.TrimSpace(vs[0]) == "" {
			return nil
		}
		v := vs[0]
		return &v
	}

	req := &productRequest{
		Name:        get("name"),
		Description: get("description"),
		Price:       get("price"),
		Category:    get("category"),
		Stock:       get("stock"),
	}
	req.normalizeNumbers()
	return req
}

func jsonRequest(body io.Reader) (*productRequest, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return &productRequest{}, nil
		}
		return nil, err
	}

	values := make(map[string]*string, len(productFields))
	for _, field := range productFields {
		msg, ok := raw[field]
		if !ok {
			continue
		}

		msg = bytes.TrimSpace(msg)
		switch {
		case len(msg) == 0 || string(msg) == "null":
			continue
		case msg[0] == '"':
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return nil, err
			}
			values[field] = &s
		case msg[0] == '-' || (msg[0] >= '0' && msg[0] <= '9'):
			s := string(msg)
			values[field] = &s
		default:
			return nil, &fieldTypeError{field: field}
		}
	}

	req := &productRequest{
		Name:        values["name"],
		Description: values["description"],
		Price:       values["price"],
		Category:    values["category"],
		Stock:       values["stock"],
	}
	req.normalizeNumbers()
	return req, nil
}

// normalizeNumbers trims numeric fields, strips a currency sign from the price and drops blanks
func (req *productRequest) normalizeNumbers() {
	if req.Price != nil {
		p := strings.TrimPrefix(strings.TrimSpace(*req.Price), "$")
		req.Price = &p
		if p == "" {
			req.Price = nil
		}
	}
	if req.Stock != nil {
		s := strings.TrimSpace(*req.Stock)
		req.Stock = &s
		if s == "" {
			req.Stock = nil
		}
	}
}

func (req *productRequest) toInput() (service.ProductInput, []middleware.ValidationError) {
	input := service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
	}

	var fieldErrs []middleware.ValidationError

	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			fieldErrs = append(fieldErrs, middleware.ValidationError{Field: "price", Message: "Value must be a number"})
		} else {
			input.Price = &price
		}
	}

	if req.Stock != nil {
		stock, err := strconv.Atoi(*req.Stock)
		if err != nil {
			fieldErrs = append(fieldErrs, middleware.ValidationError{Field: "stock", Message: "Value must be a non-negative whole number"})
		} else {
			input.Stock = &stock
		}
	}

	return input, fieldErrs
}

func parseListQuery(r *http.Request) (domain.ProductFilter, repository.PageRequest, []middleware.ValidationError) {
	q := r.URL.Query()

	filter := domain.ProductFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
	}

	var fieldErrs []middleware.ValidationError
	parsePrice := func(key string) *decimal.Decimal {
		raw := strings.TrimPrefix(strings.TrimSpace(q.Get(key)), "$")
		if raw == "" {
			return nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			fieldErrs = append(fieldErrs, middleware.ValidationError{Field: key, Message: "Value must be a number"})
			return nil
		}
		return &d
	}
	filter.MinPrice = parsePrice("minPrice")
	filter.MaxPrice = parsePrice("maxPrice")

	page := repository.PageRequest{
		Page:  atoiOrZero(q.Get("page")),
		Limit: atoiOrZero(q.Get("limit")),
	}

	return filter, page.Normalize(), fieldErrs
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// productID parses the {id} path parameter; ids that cannot exist are reported as not found
func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.RespondWithError(w, http.StatusNotFound, msgProductNotFound)
		return 0, false
	}
	return id, true
}

func (h *ProductHandler) toResponse(r *http.Request, p *domain.Product) ProductResponse {
	resp := ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.Round(2).InexactFloat64(),
		Category:    p.Category,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}

	if p.HasImage() {
		image := p.ImageName()
		imageURL := h.baseURL(r) + "/uploads/" + url.PathEscape(image)
		resp.Image = &image
		resp.ImageURL = &imageURL
	}

	return resp
}

func (h *ProductHandler) baseURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.SplitN(proto, ",", 2)[0])
	}

	return scheme + "://" + r.Host
}
