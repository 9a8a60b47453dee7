package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallest valid PNG header is enough for content sniffing
var pngData = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

func TestClientCreateJSON(t *testing.T) {
	api, c := newFakeAPI(t)

	p, err := c.Create(context.Background(), Fields{
		"name": "Pen", "description": "Blue ink", "price": "1.5", "category": "Office", "stock": "100",
	}, nil)
	require.NoError(t, err)

	assert.Positive(t, p.ID)
	assert.True(t, decimal.RequireFromString("1.5").Equal(p.Price))
	assert.Equal(t, 100, p.Stock)
	assert.Nil(t, p.ImageURL)
	assert.Equal(t, "application/json", api.lastSubmission().contentType)
}

func TestClientCreateMultipart(t *testing.T) {
	api, c := newFakeAPI(t)

	p, err := c.Create(context.Background(), Fields{
		"name": "Lamp", "description": "Desk lamp", "price": "$20", "category": "Office",
	}, &Image{Name: "my lamp.png", Data: pngData})
	require.NoError(t, err)

	sub := api.lastSubmission()
	assert.True(t, strings.HasPrefix(sub.contentType, "multipart/form-data"))
	assert.Equal(t, pngData, sub.image)
	assert.Equal(t, "$20", sub.fields["price"])
	require.NotNil(t, p.Image)
}

func TestClientAPIError(t *testing.T) {
	_, c := newFakeAPI(t)

	_, err := c.Create(context.Background(), Fields{"description": "no name"}, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Missing required fields: name", apiErr.Message)
	require.Len(t, apiErr.Details, 1)
	assert.Equal(t, "name", apiErr.Details[0].Field)
}

func TestClientNotFound(t *testing.T) {
	_, c := newFakeAPI(t)

	_, err := c.Get(context.Background(), 42)
	assert.True(t, IsNotFound(err))

	err = c.Delete(context.Background(), 42)
	assert.True(t, IsNotFound(err))
}

func TestClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Get(context.Background(), 1)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream exploded", apiErr.Message)
}

func TestClientListQuery(t *testing.T) {
	api, c := newFakeAPI(t)
	api.seed(15)

	page, err := c.List(context.Background(), Query{Category: "Office", Page: 2, Limit: 10})
	require.NoError(t, err)

	assert.Len(t, page.Products, 5)
	assert.Equal(t, Pagination{Total: 15, Page: 2, Limit: 10, TotalPages: 2}, page.Pagination)
}

func TestQueryValuesSkipsEmpty(t *testing.T) {
	v := Query{Category: " ", Search: "wid", MinPrice: "1"}.values()

	assert.Equal(t, "minPrice=1&search=wid", v.Encode())
}

func TestClientUpdateAndDelete(t *testing.T) {
	api, c := newFakeAPI(t)
	api.seed(1)

	p, err := c.Update(context.Background(), 1, Fields{"stock": "7"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)
	assert.Equal(t, "Item 1", p.Name)

	require.NoError(t, c.Delete(context.Background(), 1))
	_, err = c.Get(context.Background(), 1)
	assert.True(t, IsNotFound(err))
}

func TestClientCategories(t *testing.T) {
	_, c := newFakeAPI(t)

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Category{{Name: "Office", ProductCount: 2}}, cats)
}
