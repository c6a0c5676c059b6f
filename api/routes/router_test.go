package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alopez/store-backend/api/controllers"
	"github.com/alopez/store-backend/internal/checkout"
	"github.com/alopez/store-backend/internal/products"
	pkgAuth "github.com/alopez/store-backend/pkg/auth"
	"github.com/alopez/store-backend/pkg/config"
	"github.com/alopez/store-backend/pkg/enums"
	"github.com/alopez/store-backend/pkg/logger"
	"github.com/alopez/store-backend/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubProducts struct {
	created int
}

func (s *stubProducts) ListProducts(ctx context.Context, categoryID *int64) ([]products.ProductDTO, error) {
	return []products.ProductDTO{}, nil
}

func (s *stubProducts) GetProduct(ctx context.Context, id int64) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: id, Name: "Keyboard"}, nil
}

func (s *stubProducts) CreateProduct(ctx context.Context, input products.ProductInput) (*products.ProductDTO, error) {
	s.created++
	return &products.ProductDTO{ID: 1, Name: input.Name}, nil
}

func (s *stubProducts) UpdateProduct(ctx context.Context, id int64, input products.ProductInput) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: id, Name: input.Name}, nil
}

func (s *stubProducts) DeleteProduct(ctx context.Context, id int64) error {
	return nil
}

func (s *stubProducts) ListCategories(ctx context.Context) ([]products.CategoryDTO, error) {
	return []products.CategoryDTO{}, nil
}

type stubCheckout struct {
	webhooks int
}

func (s *stubCheckout) Checkout(ctx context.Context, customerID int64, cartID uuid.UUID) (*checkout.CheckoutResult, error) {
	return &checkout.CheckoutResult{OrderID: 1, CheckoutURL: "https://pay.example"}, nil
}

func (s *stubCheckout) HandleWebhookEvent(ctx context.Context, headers http.Header, payload []byte) error {
	s.webhooks++
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "store-backend", ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60},
	}
}

func newTestRouter(t *testing.T, deps Dependencies) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(cfg, logg, deps), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: 42,
		Name:   "Tester",
		Email:  "tester@example.com",
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func serve(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProductRoutesSecurity(t *testing.T) {
	productSvc := &stubProducts{}
	router, cfg := newTestRouter(t, Dependencies{Products: productSvc})
	body := `{"name":"Mouse","price":10.5}`

	if rec := serve(router, http.MethodGet, "/api/products", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected public product list, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodGet, "/api/categories", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected public category list, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodPost, "/api/products", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodPost, "/api/products", bearer(t, cfg, enums.RoleUser), body); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for USER role, got %d", rec.Code)
	}
	rec := serve(router, http.MethodPost, "/api/products", bearer(t, cfg, enums.RoleAdmin), body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
	if productSvc.created != 1 {
		t.Fatalf("expected one create call, got %d", productSvc.created)
	}
}

func TestAdminHelloRequiresAdmin(t *testing.T) {
	router, cfg := newTestRouter(t, Dependencies{})

	if rec := serve(router, http.MethodGet, "/api/admin/hello", bearer(t, cfg, enums.RoleUser), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec := serve(router, http.MethodGet, "/api/admin/hello", bearer(t, cfg, enums.RoleAdmin), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Hello Admin!") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestCheckoutRoutes(t *testing.T) {
	checkoutSvc := &stubCheckout{}
	router, cfg := newTestRouter(t, Dependencies{Checkout: checkoutSvc})
	body := `{"cartId":"00000000-0000-0000-0000-000000000001"}`

	if rec := serve(router, http.MethodPost, "/api/checkout", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodPost, "/api/checkout", bearer(t, cfg, enums.RoleUser), body); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodPost, "/api/checkout/webhook", "", `{}`); rec.Code != http.StatusOK {
		t.Fatalf("expected public webhook, got %d", rec.Code)
	}
	if checkoutSvc.webhooks != 1 {
		t.Fatalf("expected webhook to reach service")
	}
}

func TestOrdersRequireToken(t *testing.T) {
	router, _ := newTestRouter(t, Dependencies{})
	if rec := serve(router, http.MethodGet, "/api/orders", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodGet, "/api/users", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for user list, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	router, _ := newTestRouter(t, Dependencies{
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Gatherer:    reg,
		Readiness:   map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{}},
	})

	if rec := serve(router, http.MethodGet, "/health/live", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected live 200, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected ready 200, got %d", rec.Code)
	}
	rec := serve(router, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("expected http metrics in output")
	}
}

func TestReadyReportsDependencyFailure(t *testing.T) {
	router, _ := newTestRouter(t, Dependencies{
		Readiness: map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{err: errors.New("down")}},
	})
	rec := serve(router, http.MethodGet, "/health/ready", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "redis") {
		t.Fatalf("expected failing dependency in body: %s", rec.Body.String())
	}
}
