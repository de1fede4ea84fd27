package report

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"medchain-backend/internal/auth"
	"medchain-backend/internal/config"
	"medchain-backend/internal/httpx"
	"medchain-backend/internal/ledger"
	"medchain-backend/internal/ledger/ledgertest"
	"medchain-backend/internal/models"
	"medchain-backend/internal/packaging"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func seeded(t *testing.T) (*ledger.Service, string) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := ledger.NewService(ledgertest.NewMemStore(), ledger.Options{Logger: logger, VerificationSecret: "report"})
	ctx := context.Background()

	mfr := ledger.Actor{ID: "mfr-1", Name: "Acme Pharma", Role: models.RoleManufacturer}
	b, err := svc.CreateBatch(ctx, mfr, ledger.CreateBatchInput{
		MedicineName: "Ibuprofen",
		ExpiryDate:   time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC),
		TotalCartons: 1,
		Hierarchy:    packaging.Hierarchy{BoxesPerCarton: 4, SmallBoxesPerBox: 2, StripsPerSmallBox: 3, TabletsPerStrip: 10},
	})
	require.NoError(t, err)

	for _, receiver := range []string{"wh-1", "wh-2"} {
		_, err := svc.CreateDistribution(ctx, mfr, ledger.CreateDistributionInput{
			BatchID:      b.BatchID,
			ReceiverID:   receiver,
			ReceiverRole: models.RoleWholesaler,
			BigBoxCount:  2,
		})
		require.NoError(t, err)
	}
	return svc, b.BatchID
}

func TestBatchWorkbook(t *testing.T) {
	svc, batchID := seeded(t)

	f, err := BatchWorkbook(context.Background(), svc, batchID)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, DistributionsSheet}, f.GetSheetList())

	v, err := f.GetCellValue(SummarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Ibuprofen", v)
	v, err = f.GetCellValue(SummarySheet, "B8")
	require.NoError(t, err)
	assert.Equal(t, "4", v)

	rows, err := f.GetRows(DistributionsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, distributionHeaders, rows[0])
	assert.ElementsMatch(t, []string{"wh-1", "wh-2"}, []string{rows[1][3], rows[2][3]})
	for _, row := range rows[1:] {
		assert.Equal(t, "2", row[5])
		assert.Equal(t, "created", row[6])
	}
}

func TestBatchWorkbookMissingBatch(t *testing.T) {
	svc, _ := seeded(t)
	_, err := BatchWorkbook(context.Background(), svc, "nope")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestBatchReportHandler(t *testing.T) {
	svc, batchID := seeded(t)
	cfg := &config.Config{JWTSecret: strings.Repeat("r", 32)}

	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler})
	app.Get("/api/batches/:id/report.xlsx", auth.JWTMiddleware(cfg), BatchReportHandler(svc))

	get := func(id string, role models.UserRole) *http.Response {
		tok, err := auth.GenerateToken(cfg.JWTSecret, &models.User{ID: id, Role: role})
		require.NoError(t, err)
		req := httptest.NewRequest("GET", "/api/batches/"+batchID+"/report.xlsx", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	resp := get("mfr-1", models.RoleManufacturer)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, contentType, resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(DistributionsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	assert.Equal(t, http.StatusForbidden, get("mfr-2", models.RoleManufacturer).StatusCode)
	assert.Equal(t, http.StatusOK, get("admin", models.RoleAdmin).StatusCode)
}
