package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteAndCollapsesUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/tables/:table_id/orders", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	r.DELETE("/tables/:table_id/orders/:order_id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	const route = "/tables/:table_id/orders"
	baseList := testutil.ToFloat64(httpReqs.WithLabelValues("GET", route, "200"))
	baseDel := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", route+"/:order_id", "204"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404"))

	for _, tc := range []struct {
		method, url string
		code        int
	}{
		{http.MethodGet, "/tables/1/orders", http.StatusOK},
		{http.MethodGet, "/tables/2/orders", http.StatusOK},
		{http.MethodDelete, "/tables/2/orders/9", http.StatusNoContent},
		{http.MethodGet, "/nope/1", http.StatusNotFound},
		{http.MethodGet, "/nope/2", http.StatusNotFound},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.url, nil))
		if w.Code != tc.code {
			t.Fatalf("%s %s -> %d, want %d", tc.method, tc.url, w.Code, tc.code)
		}
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", route, "200")) - baseList; got != 2 {
		t.Fatalf("list counter delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", route+"/:order_id", "204")) - baseDel; got != 1 {
		t.Fatalf("delete counter delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404")) - base404; got != 2 {
		t.Fatalf("unmatched counter delta = %v, want 2", got)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}
