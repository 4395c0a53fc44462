package validators

import (
	"net/http"

	pkgerrors "github.com/thiagodiasb91/drop-shop-site-sub000/pkg/errors"
)

const maxQueryValueLen = 64

// ParseQueryEnum reads an optional enum query parameter. An empty value
// returns the zero value of T.
func ParseQueryEnum[T ~string](r *http.Request, key string, parse func(string) (T, error)) (T, error) {
	var zero T
	raw := SanitizeString(r.URL.Query().Get(key), maxQueryValueLen)
	if raw == "" {
		return zero, nil
	}
	value, err := parse(raw)
	if err != nil {
		return zero, pkgerrors.New(pkgerrors.CodeValidation, "query parameter is invalid").WithDetails(map[string]any{"field": key, "value": raw})
	}
	return value, nil
}
