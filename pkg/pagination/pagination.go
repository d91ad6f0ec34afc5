package pagination

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Params holds the skip/limit window of a list request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads ?skip= and ?limit=. Missing values take the defaults,
// limits above MaxLimit are clamped, and malformed or negative values are
// rejected.
func FromContext(c echo.Context) (Params, error) {
	p := Params{Limit: DefaultLimit}

	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Params{}, fmt.Errorf("limit must be a positive integer")
		}
		p.Limit = min(n, MaxLimit)
	}

	if raw := c.QueryParam("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Params{}, fmt.Errorf("skip must be a non-negative integer")
		}
		p.Offset = n
	}

	return p, nil
}
