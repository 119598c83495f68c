package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/threshingfloor/roastery-backend/pkg/errors"
)

// ParseQueryInt reads key as an int in [min, max], or defaultVal when absent.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "must be numeric")
	}
	if value < min || value > max {
		return 0, queryError(key, "is out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// QueryString returns the trimmed value of key, rejecting values longer than
// maxLen. A missing key yields "".
func QueryString(r *http.Request, key string, maxLen int) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if maxLen > 0 && len(raw) > maxLen {
		return "", queryError(key, "is too long")
	}
	return raw, nil
}

// RequireQueryString is QueryString for parameters the handler cannot do without.
func RequireQueryString(r *http.Request, key string, maxLen int) (string, error) {
	raw, err := QueryString(r, key, maxLen)
	if err != nil {
		return "", err
	}
	if raw == "" {
		return "", queryError(key, "is required")
	}
	return raw, nil
}

func queryError(key, problem string) *pkgerrors.Error {
	return pkgerrors.Validation(key + " " + problem).WithDetails(map[string]any{"field": key})
}
