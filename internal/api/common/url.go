// Package common provides shared HTTP utility functions for API handlers.
package common

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
)

// GetAndValidateURLParam returns the path-decoded value of a chi URL parameter.
// Blank values and values containing whitespace are rejected.
func GetAndValidateURLParam(r *http.Request, paramName string) (string, error) {
	value, err := url.PathUnescape(chi.URLParam(r, paramName))
	if err != nil {
		return "", fmt.Errorf("invalid URL encoding in %s", paramName)
	}
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%s cannot be empty", paramName)
	}
	if strings.ContainsFunc(value, unicode.IsSpace) {
		return "", fmt.Errorf("%s cannot contain whitespace", paramName)
	}
	return value, nil
}
