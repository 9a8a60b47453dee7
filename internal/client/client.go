package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Product is a catalog item as returned by the API
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	Image       *string         `json:"image"`
	ImageURL    *string         `json:"imageUrl"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Category is a distinct category with its product count
type Category struct {
	Name         string `json:"name"`
	ProductCount int    `json:"productCount"`
}

// Pagination mirrors the list response metadata
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// Page is one page of a product listing
type Page struct {
	Products   []Product
	Pagination Pagination
}

// Query selects a page of products. Empty fields are not sent.
type Query struct {
	Category string
	Search   string
	MinPrice string
	MaxPrice string
	Page     int
	Limit    int
}

func (q Query) values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			v.Set(key, value)
		}
	}
	set("category", q.Category)
	set("search", q.Search)
	set("minPrice", q.MinPrice)
	set("maxPrice", q.MaxPrice)
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Fields are product form values keyed by field name, as entered
type Fields map[string]string

// Image is a file attached to a create or update
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// FieldError is one entry of a validation failure reported by the server
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a non-2xx response
type APIError struct {
	Status  int
	Message string
	Details []FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type envelope[T any] struct {
	Message    string      `json:"message"`
	Data       T           `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Client talks to the catalog HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default traced HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the API rooted at baseURL, e.g. http://localhost:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches a page of products
func (c *Client) List(ctx context.Context, q Query) (*Page, error) {
	path := "/api/products"
	if encoded := q.values().Encode(); encoded != "" {
		path += "?" + encoded
	}

	var out envelope[[]Product]
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}

	page := &Page{Products: out.Data}
	if out.Pagination != nil {
		page.Pagination = *out.Pagination
	}
	return page, nil
}

// Get fetches a single product
func (c *Client) Get(ctx context.Context, id int64) (*Product, error) {
	var out envelope[Product]
	if err := c.do(ctx, http.MethodGet, productPath(id), nil, "", &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Create submits a new product, as multipart when img is set and JSON otherwise
func (c *Client) Create(ctx context.Context, fields Fields, img *Image) (*Product, error) {
	return c.submit(ctx, http.MethodPost, "/api/products", fields, img)
}

// Update changes the supplied fields of a product
func (c *Client) Update(ctx context.Context, id int64, fields Fields, img *Image) (*Product, error) {
	return c.submit(ctx, http.MethodPut, productPath(id), fields, img)
}

// Delete removes a product and its image
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, productPath(id), nil, "", nil)
}

// Categories lists the distinct categories in use
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out envelope[[]Category]
	if err := c.do(ctx, http.MethodGet, "/api/categories", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func productPath(id int64) string {
	return "/api/products/" + strconv.FormatInt(id, 10)
}

func (c *Client) submit(ctx context.Context, method, path string, fields Fields, img *Image) (*Product, error) {
	var (
		body        io.Reader
		contentType string
	)

	if img != nil {
		buf, ct, err := multipartBody(fields, img)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	} else {
		payload, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode product: %w", err)
		}
		body, contentType = bytes.NewReader(payload), "application/json"
	}

	var out envelope[Product]
	if err := c.do(ctx, method, path, body, contentType, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartBody(fields Fields, img *Image) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	contentType := img.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(img.Data)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, quoteEscaper.Replace(img.Name)))
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error   string       `json:"error"`
		Details []FieldError `json:"details"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		apiErr.Message = text
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
