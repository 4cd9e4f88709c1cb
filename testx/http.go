package testx

import (
	"io"
	"net/http"
	"net/http/httptest"
)

// Serve executes the request against h through a ResponseRecorder, which can
// then be inspected.
func Serve(h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, body))
	return rr
}

func Get(h http.Handler, target string) *httptest.ResponseRecorder {
	return Serve(h, http.MethodGet, target, nil)
}
