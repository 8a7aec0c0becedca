package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func paramsFor(query string) PaginationParams {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	return GetPaginationParams(c, 50)
}

func TestGetPaginationParamsDefaults(t *testing.T) {
	p := paramsFor("")
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 50, p.PageSize)
	assert.Equal(t, 0, p.Offset)
}

func TestGetPaginationParamsOffset(t *testing.T) {
	p := paramsFor("page=3&limit=20")
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 20, p.PageSize)
	assert.Equal(t, 40, p.Offset)
}

func TestGetPaginationParamsClampsAbuse(t *testing.T) {
	p := paramsFor("page=-2&limit=5000")
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 50, p.PageSize)
}
