// Order HTTP handlers.
//
// Endpoints, all scoped to a table:
//   - POST   /tables/{table_id}/orders              (create, idempotent with Idempotency-Key)
//   - GET    /tables/{table_id}/orders              (list, keyset pagination, ETag support)
//   - GET    /tables/{table_id}/orders/{order_id}   (fetch one)
//   - DELETE /tables/{table_id}/orders/{order_id}   (soft delete)
//
// Handlers are transport-thin: they parse and validate path, query and body
// input, call the OrderService, and translate results and error kinds into
// HTTP responses.
package handlers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/http/middleware"
	"github.com/tbourn/go-order-backend/internal/utils"
)

// OrderService defines the order operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and honor ctx.
type OrderService interface {
	// Create registers an order; replayed is true when served from the idempotency cache.
	Create(ctx context.Context, tableID, dishID int64, token string) (order *domain.Order, replayed bool, err error)
	// Get returns a live order of tableID.
	Get(ctx context.Context, tableID, id int64) (*domain.Order, error)
	// List returns live orders of tableID with id >= fromID, at most limit.
	List(ctx context.Context, tableID int64, fromID, limit *int64) ([]domain.Order, error)
	// Delete soft-deletes an order of tableID.
	Delete(ctx context.Context, tableID, id int64) error
	// ListVersion returns a token that changes whenever the table's list changes.
	ListVersion(ctx context.Context, tableID int64) (string, error)
}

// Handlers groups the order endpoints.
type Handlers struct {
	orderSvc OrderService
}

// New constructs Handlers bound to the given service.
func New(orderSvc OrderService) *Handlers {
	return &Handlers{orderSvc: orderSvc}
}

// CreateOrderRequest is the JSON payload for creating an order.
type CreateOrderRequest struct {
	// DishID identifies the menu item. It is not validated against a menu.
	DishID *int64 `json:"dish_id" binding:"required" example:"10"`
}

// pathID parses a 32-bit path parameter, writing a 400 on failure.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := utils.ParseInt32(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidIdentifier, fmt.Sprintf("%s must be a 32-bit integer", name))
		return 0, false
	}
	return id, true
}

// CreateOrder godoc
// @ID          createOrder
// @Summary     Create an order
// @Description Registers a dish for a table. ready_time is the creation time plus the configured delay (15 minutes by default).
// @Description With an Idempotency-Key, a retry of the same (table, dish, key) within the cache TTL returns the original order
// @Description and sets `Idempotency-Replayed: true`.
// @Tags        Orders
// @Accept      json
// @Produce     json
//
// @Param       table_id         path    int     true  "Table ID"  format(int32)
// @Param       Idempotency-Key  header  string  false "Client token for safe retries (printable ASCII, max 200 bytes)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateOrderRequest  true  "Order payload"
//
// @Success     201  {object}  domain.Order
// @Header      201  {string}  Location              "URL of the order"
// @Header      201  {string}  Idempotency-Replayed  "true when served from the idempotency cache"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tables/{table_id}/orders [post]
func (h *Handlers) CreateOrder(c *gin.Context) {
	tableID, okID := pathID(c, "table_id")
	if !okID {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidRequestBody, "body must be {\"dish_id\": <int>}")
		return
	}
	if *req.DishID < math.MinInt32 || *req.DishID > math.MaxInt32 {
		fail(c, http.StatusBadRequest, ErrCodeInvalidRequestBody, "dish_id must be a 32-bit integer")
		return
	}

	token, found := middleware.GetIdempotencyKey(c)
	if !found {
		token = c.GetHeader(middleware.HeaderIdempotencyKey)
	}

	o, replayed, err := h.orderSvc.Create(c.Request.Context(), tableID, *req.DishID, token)
	if err != nil {
		failErr(c, err)
		return
	}
	if replayed {
		middleware.MarkReplayed(c)
	}
	c.Header("Location", strings.TrimSuffix(c.Request.URL.Path, "/")+"/"+strconv.FormatInt(o.ID, 10))
	ok(c, http.StatusCreated, o)
}

// ListOrders godoc
// @ID          listOrders
// @Summary     List orders of a table
// @Description Returns live orders with id >= from_id in ascending id order, at most limit.
// @Description Fetch the next page with from_id = last id + 1. Supports weak ETag via If-None-Match.
// @Tags        Orders
// @Produce     json
//
// @Param       table_id       path    int     true   "Table ID"  format(int32)
// @Param       from_id        query   int     false  "Smallest id to return"  minimum(0)
// @Param       limit          query   int     false  "Page size (capped by the server)"  minimum(0)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {array}   domain.Order
// @Header      200  {string}  ETag  "Weak ETag for the current page"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tables/{table_id}/orders [get]
func (h *Handlers) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()
	tableID, okID := pathID(c, "table_id")
	if !okID {
		return
	}
	fromID, err := utils.ParseOptionalCursor(c.Query("from_id"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidPagination, "from_id "+err.Error())
		return
	}
	limit, err := utils.ParseOptionalCursor(c.Query("limit"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidPagination, "limit "+err.Error())
		return
	}

	// ETag pre-check (best effort). The header only goes out with a 304 or
	// a successful page.
	var etag string
	if version, err := h.orderSvc.ListVersion(ctx, tableID); err == nil {
		etag = listETag(version, fromID, limit)
		if etagMatches(c.GetHeader("If-None-Match"), etag) {
			c.Header("ETag", etag)
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, err := h.orderSvc.List(ctx, tableID, fromID, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	if etag != "" {
		c.Header("ETag", etag)
	}
	ok(c, http.StatusOK, items)
}

// GetOrder godoc
// @ID          getOrder
// @Summary     Get an order
// @Description Returns a live order of the table. Deleted orders and orders of other tables are reported as not found.
// @Tags        Orders
// @Produce     json
//
// @Param       table_id  path  int  true  "Table ID"  format(int32)
// @Param       order_id  path  int  true  "Order ID"  format(int32)
//
// @Success     200  {object}  domain.Order
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /tables/{table_id}/orders/{order_id} [get]
func (h *Handlers) GetOrder(c *gin.Context) {
	tableID, okT := pathID(c, "table_id")
	if !okT {
		return
	}
	orderID, okO := pathID(c, "order_id")
	if !okO {
		return
	}

	o, err := h.orderSvc.Get(c.Request.Context(), tableID, orderID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, o)
}

// DeleteOrder godoc
// @ID          deleteOrder
// @Summary     Delete an order
// @Description Soft-deletes an order of the table. Repeating the call succeeds without changes.
// @Tags        Orders
//
// @Param       table_id  path  int  true  "Table ID"  format(int32)
// @Param       order_id  path  int  true  "Order ID"  format(int32)
//
// @Success     204  "Deleted"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Order not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /tables/{table_id}/orders/{order_id} [delete]
func (h *Handlers) DeleteOrder(c *gin.Context) {
	tableID, okT := pathID(c, "table_id")
	if !okT {
		return
	}
	orderID, okO := pathID(c, "order_id")
	if !okO {
		return
	}

	if err := h.orderSvc.Delete(c.Request.Context(), tableID, orderID); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// listETag derives a weak validator from the table version and page window.
func listETag(version string, fromID, limit *int64) string {
	opt := func(p *int64) string {
		if p == nil {
			return "-"
		}
		return strconv.FormatInt(*p, 10)
	}
	return fmt.Sprintf(`W/"orders:%s:%s:%s"`, version, opt(fromID), opt(limit))
}

// etagMatches implements weak comparison against an If-None-Match list.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, cand := range strings.Split(header, ",") {
		cand = strings.TrimSpace(cand)
		if cand == "*" || strings.TrimPrefix(cand, "W/") == want {
			return true
		}
	}
	return false
}
