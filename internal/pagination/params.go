package pagination

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Kyz7/microblog/internal/apperr"
)

// ParseParams converts raw query-string values. Empty strings mean "not
// given". parseCursor decodes after into the endpoint's key type.
func ParseParams[K any](limit, offset, after string, parseCursor func(string) (K, error)) (Params[K], error) {
	var p Params[K]

	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return p, fmt.Errorf("%w: limit must be an integer", apperr.ErrBadRequest)
		}
		p.Limit = &n
	}

	if offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil {
			return p, fmt.Errorf("%w: offset must be an integer", apperr.ErrBadRequest)
		}
		p.Offset = &n
	}

	if after != "" {
		if parseCursor == nil {
			return p, fmt.Errorf("%w: after is not supported here", apperr.ErrBadRequest)
		}
		k, err := parseCursor(after)
		if err != nil {
			return p, fmt.Errorf("%w: invalid after cursor: %v", apperr.ErrBadRequest, err)
		}
		p.After = &k
	}

	return p, nil
}

func StringCursor(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("empty cursor")
	}
	return s, nil
}

// TimeCursor accepts RFC 3339 timestamps with or without fractional
// seconds and normalises them to UTC.
func TimeCursor(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
