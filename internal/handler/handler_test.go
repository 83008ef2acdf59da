package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"go-stock-ledger/internal/events"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/service"
	"go-stock-ledger/internal/testdb"
	"go-stock-ledger/pkg/jwt"
)

type testServer struct {
	app   *fiber.App
	roles repository.RoleRepository
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testdb.Open(t)
	ctx := context.Background()

	products := repository.NewProductRepo(db)
	txs := repository.NewTransactionRepo(db)
	history := repository.NewHistoryRepo(db)
	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	privileges := repository.NewPrivilegeRepo(db)
	require.NoError(t, service.NewSeeder(privileges, roles, users).Seed(ctx, "admin@example.com", "admin123"))

	publisher := events.NewRecorder(64)
	cache := service.NewStatsCache(time.Minute)
	ledger := service.NewLedgerService(db, products, txs, history, publisher, cache, service.DefaultLedgerConfig())
	inventory := service.NewInventoryService(db, products, txs, history, ledger, publisher, cache, 10)
	queries := service.NewQueryService(txs, history)
	auth := service.NewAuthService(users, jwt.NewManager([]byte("handler-test"), time.Hour), publisher)

	h := &Handlers{
		Auth:         NewAuthHandler(auth),
		Inventory:    NewInventoryHandler(inventory, ledger),
		Transactions: NewTransactionHandler(ledger, queries),
		History:      NewHistoryHandler(queries),
		Dashboard:    NewDashboardHandler(service.NewDashboardService(inventory, txs, cache)),
		Users:        NewUserHandler(service.NewUserService(users, privileges, roles)),
		Roles:        NewRoleHandler(roles, privileges),
	}
	app := fiber.New()
	h.Register(app, auth)

	s := &testServer{app: app, roles: roles}
	s.token = s.login(t, "admin@example.com", "admin123")
	return s
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := s.do(t, "", fiber.MethodPost, "/api/v1/auth/login", fiber.Map{"email": email, "password": password})
	require.Equal(t, fiber.StatusOK, status, body)
	return body["token"].(string)
}

func (s *testServer) do(t *testing.T, token, method, path string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestRequiresAuthentication(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, "", fiber.MethodGet, "/api/v1/transactions", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = s.do(t, "", fiber.MethodPost, "/api/v1/auth/login", fiber.Map{"email": "admin@example.com", "password": "nope"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestTransactionLifecycle(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, s.token, fiber.MethodPost, "/api/v1/transactions", fiber.Map{
		"type": "import", "product_name": "Widget", "sku": "W-1", "quantity": 10,
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	data := body["data"].(map[string]interface{})
	txID := data["transaction"].(map[string]interface{})["id"].(string)
	assert.Equal(t, true, data["product_created"])

	status, body = s.do(t, s.token, fiber.MethodPost, "/api/v1/transactions", fiber.Map{
		"type": "export", "sku": "W-1", "quantity": 15,
	})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.EqualValues(t, 10, body["current"])
	assert.EqualValues(t, 15, body["requested"])
	assert.Equal(t, "W-1", body["sku"])

	status, body = s.do(t, s.token, fiber.MethodPost, "/api/v1/transactions", fiber.Map{
		"type": "transfer", "sku": "W-1", "quantity": 1,
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, service.ErrInvalidType.Error(), body["error"])

	status, body = s.do(t, s.token, fiber.MethodPut, "/api/v1/transactions/"+txID, fiber.Map{"quantity": 4})
	require.Equal(t, fiber.StatusOK, status, body)

	status, body = s.do(t, s.token, fiber.MethodGet, "/api/v1/transactions?type=import", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, body = s.do(t, s.token, fiber.MethodGet, "/api/v1/transactions/"+txID, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 4, body["quantity"])

	status, _ = s.do(t, s.token, fiber.MethodGet, "/api/v1/transactions/not-a-uuid", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, s.token, fiber.MethodDelete, "/api/v1/transactions/"+txID, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = s.do(t, s.token, fiber.MethodDelete, "/api/v1/transactions/"+txID, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = s.do(t, s.token, fiber.MethodGet, "/api/v1/history?action=delete_transaction", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, body = s.do(t, s.token, fiber.MethodPost, "/api/v1/ledger/reconcile", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["data"])
}

func TestBatchEndpointReportsFailures(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, s.token, fiber.MethodPost, "/api/v1/transactions/batch", fiber.Map{
		"items": []fiber.Map{
			{"type": "import", "sku": "B-1", "product_name": "Bolt", "quantity": 5},
			{"type": "export", "sku": "B-1", "quantity": 50},
		},
	})
	assert.Equal(t, fiber.StatusMultiStatus, status)
	assert.EqualValues(t, 1, body["succeeded_count"])
	assert.EqualValues(t, 1, body["failed_count"])

	status, _ = s.do(t, s.token, fiber.MethodPost, "/api/v1/transactions/batch", fiber.Map{"items": []fiber.Map{}})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestImportExcel(t *testing.T) {
	s := newTestServer(t)

	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]interface{}{"SKU", "Name", "Quantity"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]interface{}{"N-1", "Nut", 12}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A3", &[]interface{}{"N-1", "Nut", 3}))
	xlsx, err := wb.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", "movements.xlsx")
	require.NoError(t, err)
	_, err = part.Write(xlsx.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("type", "import"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/transactions/import-excel", &form)
	req.Header.Set(fiber.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.token)
	status, body := s.send(t, req)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 2, body["succeeded_count"])

	status, body = s.do(t, s.token, fiber.MethodGet, "/api/v1/inventory/stats", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 15, body["total_quantity"])

	req = httptest.NewRequest(fiber.MethodGet, "/api/v1/inventory/export", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.token)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get(fiber.HeaderContentType))
}

func TestProductEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, s.token, fiber.MethodPost, "/api/v1/products", fiber.Map{
		"name": "Gear", "sku": "G-1", "cost": "1.50", "retail_price": "2.00", "opening_quantity": 6,
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	product := body["data"].(map[string]interface{})
	assert.EqualValues(t, 6, product["quantity"])
	id := product["id"].(string)

	status, body = s.do(t, s.token, fiber.MethodPost, "/api/v1/products", fiber.Map{"name": "Gear", "sku": "G-1"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "G-1", body["sku"])

	status, body = s.do(t, s.token, fiber.MethodPost, "/api/v1/products", fiber.Map{"sku": "X-1"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.NotEmpty(t, body["fields"])

	status, body = s.do(t, s.token, fiber.MethodPost, "/api/v1/products/resolve", fiber.Map{"sku": "G-1"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["created"])
	status, _ = s.do(t, s.token, fiber.MethodPost, "/api/v1/products/resolve", fiber.Map{"name": "Sprocket"})
	assert.Equal(t, fiber.StatusCreated, status)

	status, _ = s.do(t, s.token, fiber.MethodDelete, "/api/v1/products/"+id, nil)
	assert.Equal(t, fiber.StatusConflict, status)

	status, body = s.do(t, s.token, fiber.MethodGet, "/api/v1/products?search=gea", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])
}

func TestPrivilegesAreEnforced(t *testing.T) {
	s := newTestServer(t)

	admin, err := s.roles.FindByCode(context.Background(), model.RoleAdmin)
	require.NoError(t, err)
	status, body := s.do(t, s.token, fiber.MethodPost, "/api/v1/users", fiber.Map{
		"email": "clerk@example.com", "password": "secret1", "full_name": "Clerk", "role_id": admin.ID,
	})
	require.Equal(t, fiber.StatusCreated, status, body)

	clerk := s.login(t, "clerk@example.com", "secret1")

	status, body = s.do(t, clerk, fiber.MethodPost, "/api/v1/transactions", fiber.Map{
		"type": "import", "sku": "C-1", "quantity": 2,
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	txID := body["data"].(map[string]interface{})["transaction"].(map[string]interface{})["id"].(string)

	status, _ = s.do(t, clerk, fiber.MethodDelete, "/api/v1/transactions/"+txID, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = s.do(t, clerk, fiber.MethodPost, "/api/v1/ledger/reconcile", nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	// A fresh admin login ends the earlier admin session.
	s.login(t, "admin@example.com", "admin123")
	status, _ = s.do(t, s.token, fiber.MethodGet, "/api/v1/transactions", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
