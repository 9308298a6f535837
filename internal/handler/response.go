package handler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// Default envelope messages.
const (
	msgSuccess = "操作成功"
	msgFailure = "操作失败"
)

// Result is the envelope every JSON endpoint answers with.  Application
// errors use code 1 and still travel with HTTP 200.
type Result struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Data    any    `json:"data"`
}

// Page wraps a list together with its total count.
type Page struct {
	Data  any `json:"data"`
	Count int `json:"count"`
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Result{Message: msgSuccess, Code: 0, Data: data})
}

func fail(c echo.Context, msg string) error {
	if msg == "" {
		msg = msgFailure
	}
	return c.JSON(http.StatusOK, Result{Message: msg, Code: 1})
}

// failWith is fail carrying details, such as the row errors of an import.
func failWith(c echo.Context, msg string, data any) error {
	return c.JSON(http.StatusOK, Result{Message: msg, Code: 1, Data: data})
}

// pageOf builds a page whose count is the list length.  A nil slice is
// rendered as [] rather than null.
func pageOf[T any](items []T) Page {
	if items == nil {
		items = []T{}
	}
	return Page{Data: items, Count: len(items)}
}

func listOf[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// requestCtx bounds storage calls made on behalf of a request.
func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// bodyParam reads a parameter from the query string or a urlencoded body.
// net/http only parses bodies of POST, PUT and PATCH, so DELETE bodies are
// decoded here.
func bodyParam(c echo.Context, name string) string {
	if v := c.QueryParam(name); v != "" {
		return v
	}
	req := c.Request()
	if req.Method != http.MethodDelete {
		return c.FormValue(name)
	}
	if !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationForm) || req.Body == nil {
		return ""
	}
	b, err := io.ReadAll(io.LimitReader(req.Body, 1<<16))
	if err != nil {
		return ""
	}
	vals, err := url.ParseQuery(string(b))
	if err != nil {
		return ""
	}
	return vals.Get(name)
}
