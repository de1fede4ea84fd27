package batch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"medchain-backend/internal/audit"
	"medchain-backend/internal/auth"
	"medchain-backend/internal/config"
	"medchain-backend/internal/httpx"
	"medchain-backend/internal/ledger"
	"medchain-backend/internal/ledger/ledgertest"
	"medchain-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cfg = &config.Config{JWTSecret: strings.Repeat("b", 32)}

func setup(t *testing.T) (*fiber.App, *ledger.Service, *audit.MemoryRecorder) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := ledger.NewService(ledgertest.NewMemStore(), ledger.Options{Logger: logger, VerificationSecret: "v"})
	rec := &audit.MemoryRecorder{}

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler})
	api := app.Group("/api")
	api.Post("/batches/verify", VerifyBatchHandler(svc))
	api.Get("/supply-chain/batch/:id", HistoryHandler(svc))

	protected := api.Group("", auth.JWTMiddleware(cfg))
	protected.Get("/batches", ListBatchesHandler(svc))
	protected.Get("/batches/count", CountBatchesHandler(svc))
	protected.Post("/batches", auth.RequireRole(models.RoleManufacturer), CreateBatchHandler(svc, rec))
	protected.Get("/batches/:id", GetBatchHandler(svc))
	protected.Get("/batches/:id/quantities", QuantitiesHandler(svc))
	protected.Get("/batches/:id/history", HistoryHandler(svc))
	protected.Post("/batches/:id/sales", auth.RequireRole(models.RoleRetailer), RecordSaleHandler(svc, rec))
	protected.Post("/batches/:id/recall", auth.RequireRole(models.RoleManufacturer), RecallHandler(svc, rec))
	return app, svc, rec
}

func token(t *testing.T, id string, role models.UserRole) string {
	t.Helper()
	tok, err := auth.GenerateToken(cfg.JWTSecret, &models.User{ID: id, Name: id, Role: role})
	require.NoError(t, err)
	return tok
}

func call(t *testing.T, app *fiber.App, method, path, tok string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestCreateBatchAndReadBack(t *testing.T) {
	app, _, rec := setup(t)
	mfr := token(t, "mfr-1", models.RoleManufacturer)

	status, body := call(t, app, "POST", "/api/batches", mfr, map[string]any{
		"medicineName":      "Paracetamol",
		"expiryDate":        "2028-06-30",
		"totalCartons":      2,
		"boxesPerCarton":    10,
		"smallBoxesPerBox":  5,
		"stripsPerSmallBox": 10,
	})
	require.Equal(t, http.StatusCreated, status)
	assert.EqualValues(t, 10000, body["totalMedicineCount"])
	assert.EqualValues(t, 10, body["tabletsPerStrip"])
	id := body["batchId"].(string)
	require.Len(t, rec.Entries(), 1)

	status, body = call(t, app, "GET", "/api/batches/"+id+"/quantities", mfr, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 20, body["totalBigBoxes"])

	status, body = call(t, app, "GET", "/api/batches/"+id+"/history", mfr, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["history"], 1)
	assert.Equal(t, false, body["supplyChainComplete"])

	status, body = call(t, app, "GET", "/api/batches/count?manufacturerId=mfr-1", mfr, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, body = call(t, app, "POST", "/api/batches/verify", "", map[string]any{"batchId": id})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "found", body["status"])

	status, body = call(t, app, "POST", "/api/batches/verify", "", map[string]any{"batchId": "fake"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["status"])

	status, _ = call(t, app, "GET", "/api/batches/missing", mfr, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateBatchLegacyFields(t *testing.T) {
	app, _, _ := setup(t)
	mfr := token(t, "mfr-1", models.RoleManufacturer)

	status, body := call(t, app, "POST", "/api/batches", mfr, map[string]any{
		"medicineName":      "Cetirizine",
		"expiryDate":        "2028-06-30T00:00:00Z",
		"bigCartonCount":    3,
		"bigBoxPerCarton":   4,
		"smallBoxPerBigBox": 2,
		"stripsPerSmallBox": 5,
		"tabletsPerStrip":   6,
	})
	require.Equal(t, http.StatusCreated, status)
	assert.EqualValues(t, 3, body["totalCartons"])
	assert.EqualValues(t, 3*4*2*5*6, body["totalMedicineCount"])
}

func TestCreateBatchErrors(t *testing.T) {
	app, _, _ := setup(t)
	mfr := token(t, "mfr-1", models.RoleManufacturer)

	status, _ := call(t, app, "POST", "/api/batches", token(t, "w", models.RoleWholesaler), map[string]any{
		"medicineName": "X", "expiryDate": "2028-01-01", "totalCartons": 1,
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := call(t, app, "POST", "/api/batches", mfr, map[string]any{
		"medicineName": "X", "expiryDate": "2028-01-01", "totalCartons": 1, "boxesPerCarton": 1,
		"smallBoxesPerBox": 0, "stripsPerSmallBox": 1,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "invalid packaging hierarchy")

	status, _ = call(t, app, "POST", "/api/batches", mfr, map[string]any{
		"medicineName": "X", "expiryDate": "next year", "totalCartons": 1,
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, app, "POST", "/api/batches", mfr, map[string]any{"expiryDate": "2028-01-01"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]any{"MedicineName": "required"}, body["fields"])
}

func TestSaleAndRecall(t *testing.T) {
	app, svc, rec := setup(t)
	mfr := token(t, "mfr-1", models.RoleManufacturer)
	rt := token(t, "rt-1", models.RoleRetailer)

	_, body := call(t, app, "POST", "/api/batches", mfr, map[string]any{
		"medicineName": "Aspirin", "expiryDate": "2028-01-01", "totalCartons": 1,
		"boxesPerCarton": 1, "smallBoxesPerBox": 1, "stripsPerSmallBox": 2,
	})
	id := body["batchId"].(string)

	status, _ := call(t, app, "POST", "/api/batches/"+id+"/sales", rt, map[string]any{"units": 1})
	assert.Equal(t, http.StatusBadRequest, status)

	ctx := context.Background()
	_, err := svc.CreateDistribution(ctx, ledger.Actor{ID: "mfr-1", Role: models.RoleManufacturer}, ledger.CreateDistributionInput{
		BatchID: id, ReceiverID: "wh-1", ReceiverRole: models.RoleWholesaler, BigBoxCount: 1,
	})
	require.NoError(t, err)
	_, err = svc.CreateDistribution(ctx, ledger.Actor{ID: "wh-1", Role: models.RoleWholesaler}, ledger.CreateDistributionInput{
		BatchID: id, ReceiverID: "rt-1", ReceiverRole: models.RoleRetailer, BigBoxCount: 1,
	})
	require.NoError(t, err)

	status, body = call(t, app, "POST", "/api/batches/"+id+"/sales", rt, map[string]any{"units": 15})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 5, body["remainingMedicineCount"])

	status, body = call(t, app, "POST", "/api/batches/"+id+"/sales", rt, map[string]any{"units": 6})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.EqualValues(t, 5, body["available"])

	status, _ = call(t, app, "POST", "/api/batches/"+id+"/recall", token(t, "mfr-2", models.RoleManufacturer), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = call(t, app, "POST", "/api/batches/"+id+"/recall", mfr, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "recalled", body["status"])

	status, _ = call(t, app, "POST", "/api/batches/"+id+"/sales", rt, map[string]any{"units": 1})
	assert.Equal(t, http.StatusConflict, status)

	assert.Len(t, rec.Entries(), 3)
}

func TestListBatchesDefaultsToOwnForManufacturer(t *testing.T) {
	app, _, _ := setup(t)
	for _, id := range []string{"mfr-1", "mfr-2"} {
		status, _ := call(t, app, "POST", "/api/batches", token(t, id, models.RoleManufacturer), map[string]any{
			"medicineName": "Zinc", "expiryDate": "2028-01-01", "totalCartons": 1,
			"boxesPerCarton": 1, "smallBoxesPerBox": 1, "stripsPerSmallBox": 1,
		})
		require.Equal(t, http.StatusCreated, status)
	}

	req := httptest.NewRequest("GET", "/api/batches", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "mfr-1", models.RoleManufacturer))
	resp, err := app.Test(req)
	require.NoError(t, err)
	var list []models.Batch
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "mfr-1", list[0].ManufacturerID)

	req = httptest.NewRequest("GET", "/api/batches", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, "admin", models.RoleAdmin))
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 2)
}

func TestPublicHistoryNeedsNoToken(t *testing.T) {
	app, _, _ := setup(t)
	mfr := token(t, "mfr-1", models.RoleManufacturer)

	_, body := call(t, app, "POST", "/api/batches", mfr, map[string]any{
		"medicineName": "Zinc", "expiryDate": "2028-01-01", "totalCartons": 1,
		"boxesPerCarton": 1, "smallBoxesPerBox": 1, "stripsPerSmallBox": 1,
	})
	id := body["batchId"].(string)

	status, body := call(t, app, "GET", "/api/supply-chain/batch/"+id, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, body["batchId"])
	assert.Len(t, body["history"], 1)

	status, _ = call(t, app, "GET", "/api/supply-chain/batch/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, app, "GET", "/api/batches/"+id+"/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
