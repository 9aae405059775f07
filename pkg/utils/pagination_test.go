package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func contextFor(target string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestGetPaginationParams(t *testing.T) {
	tests := []struct {
		target string
		want   PaginationParams
	}{
		{"/products", PaginationParams{Page: 1, PageSize: 20, Offset: 0}},
		{"/products?page=3&limit=10", PaginationParams{Page: 3, PageSize: 10, Offset: 20}},
		{"/products?page=-1&limit=500", PaginationParams{Page: 1, PageSize: 20, Offset: 0}},
		{"/products?page=abc", PaginationParams{Page: 1, PageSize: 20, Offset: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, GetPaginationParams(contextFor(tt.target)))
		})
	}

	assert.False(t, Requested(contextFor("/products?search=x")))
	assert.True(t, Requested(contextFor("/products?limit=5")))
}

func TestBounds(t *testing.T) {
	p := PaginationParams{Page: 2, PageSize: 10, Offset: 10}

	start, end := p.Bounds(25)
	assert.Equal(t, 10, start)
	assert.Equal(t, 20, end)

	start, end = p.Bounds(15)
	assert.Equal(t, 10, start)
	assert.Equal(t, 15, end)

	start, end = p.Bounds(5)
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)
}
