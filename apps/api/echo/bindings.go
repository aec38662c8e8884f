package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

const (
	orderingParam    = "ordering"
	contextObjectKey = "object"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindUserFilter reads a user.QueryFilter out of the query string. Malformed values are ignored.
func bindUserFilter(ctx echo.Context) *user.QueryFilter {
	filter := &user.QueryFilter{
		Search: ctx.QueryParam("search"),
		Roles:  ctx.QueryParams()["role"],
		Status: ctx.QueryParam("status"),
	}
	if b, err := strconv.ParseBool(ctx.QueryParam("is_active")); err == nil {
		filter.IsActive = &b
	}
	if t, err := time.Parse(time.RFC3339, ctx.QueryParam("created_from")); err == nil {
		filter.CreatedFrom = t
	}
	if t, err := time.Parse(time.RFC3339, ctx.QueryParam("created_to")); err == nil {
		filter.CreatedTo = t
	}
	filter.Clean()
	return filter
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `json:"ids"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}
)
