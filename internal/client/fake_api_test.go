package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// fakeAPI is an in-memory stand-in for the catalog API
type fakeAPI struct {
	mu       sync.Mutex
	products map[int64]*Product
	nextID   int64

	lastContentType string
	lastImage       []byte
	lastFields      map[string]string
	lists           int
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client) {
	t.Helper()
	api := &fakeAPI{products: make(map[int64]*Product)}

	r := chi.NewRouter()
	r.Get("/api/products", api.list)
	r.Post("/api/products", api.create)
	r.Get("/api/products/{id}", api.get)
	r.Put("/api/products/{id}", api.update)
	r.Delete("/api/products/{id}", api.delete)
	r.Get("/api/categories", api.categories)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return api, New(srv.URL, WithHTTPClient(srv.Client()))
}

func (a *fakeAPI) seed(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < n; i++ {
		a.nextID++
		a.products[a.nextID] = &Product{
			ID:       a.nextID,
			Name:     "Item " + strconv.FormatInt(a.nextID, 10),
			Price:    decimal.NewFromInt(a.nextID),
			Category: "Office",
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details ...FieldError) {
	body := map[string]any{"error": msg}
	if len(details) > 0 {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

func (a *fakeAPI) readFields(r *http.Request) map[string]string {
	fields := map[string]string{}
	a.lastContentType = r.Header.Get("Content-Type")
	a.lastImage = nil

	if strings.HasPrefix(a.lastContentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			return nil
		}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		if files := r.MultipartForm.File["image"]; len(files) == 1 {
			f, _ := files[0].Open()
			a.lastImage, _ = io.ReadAll(f)
			f.Close()
		}
	} else {
		_ = json.NewDecoder(r.Body).Decode(&fields)
	}

	a.lastFields = fields
	return fields
}

func (a *fakeAPI) list(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lists++

	q := r.URL.Query()
	var matched []Product
	for _, p := range a.products {
		if c := q.Get("category"); c != "" && p.Category != c {
			continue
		}
		if s := q.Get("search"); s != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(s)) {
			continue
		}
		matched = append(matched, *p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	totalPages := (len(matched) + limit - 1) / limit
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Products retrieved successfully",
		"data":    matched[start:end],
		"pagination": Pagination{
			Total: len(matched), Page: page, Limit: limit, TotalPages: totalPages,
		},
	})
}

func (a *fakeAPI) find(w http.ResponseWriter, r *http.Request) (*Product, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	p, ok := a.products[id]
	if err != nil || !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return nil, false
	}
	return p, true
}

func (a *fakeAPI) get(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.find(w, r); ok {
		writeJSON(w, http.StatusOK, map[string]any{"message": "Product retrieved successfully", "data": p})
	}
}

func (a *fakeAPI) create(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fields := a.readFields(r)
	if fields["name"] == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: name",
			FieldError{Field: "name", Message: "This field is required"})
		return
	}

	a.nextID++
	p := &Product{ID: a.nextID, CreatedAt: time.Now()}
	apply(p, fields)
	if a.lastImage != nil {
		name := "1700000000000-upload.png"
		p.Image = &name
	}
	a.products[p.ID] = p
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Product created successfully", "data": p})
}

func (a *fakeAPI) update(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.find(w, r)
	if !ok {
		return
	}
	apply(p, a.readFields(r))
	writeJSON(w, http.StatusOK, map[string]any{"message": "Product updated successfully", "data": p})
}

func (a *fakeAPI) delete(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.find(w, r)
	if !ok {
		return
	}
	delete(a.products, p.ID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Product deleted successfully", "data": map[string]int64{"id": p.ID}})
}

func (a *fakeAPI) categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Categories retrieved successfully",
		"data":    []Category{{Name: "Office", ProductCount: 2}},
	})
}

func apply(p *Product, fields map[string]string) {
	if v, ok := fields["name"]; ok {
		p.Name = v
	}
	if v, ok := fields["description"]; ok {
		p.Description = v
	}
	if v, ok := fields["category"]; ok {
		p.Category = v
	}
	if v, ok := fields["price"]; ok {
		p.Price, _ = decimal.NewFromString(strings.TrimPrefix(v, "$"))
	}
	if v, ok := fields["stock"]; ok {
		p.Stock, _ = strconv.Atoi(v)
	}
	p.UpdatedAt = time.Now()
}

type submission struct {
	contentType string
	image       []byte
	fields      map[string]string
}

func (a *fakeAPI) lastSubmission() submission {
	a.mu.Lock()
	defer a.mu.Unlock()
	return submission{contentType: a.lastContentType, image: a.lastImage, fields: a.lastFields}
}

func (a *fakeAPI) listCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lists
}
