package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seventic/ops-api/internal/middleware"
	"github.com/seventic/ops-api/internal/models"
	"github.com/seventic/ops-api/internal/service"
	"github.com/seventic/ops-api/pkg/response"
)

type fakeDashboardService struct {
	result *service.DashboardResult
	err    error

	gotViewer  service.Viewer
	gotView    service.View
	gotFilter  models.RequestFilter
	gotSpecial service.SpecialFilters
	gotRefresh bool
}

func (f *fakeDashboardService) Load(_ context.Context, viewer service.Viewer, view service.View, filter models.RequestFilter, special service.SpecialFilters, refresh bool) (*service.DashboardResult, error) {
	f.gotViewer = viewer
	f.gotView = view
	f.gotFilter = filter
	f.gotSpecial = special
	f.gotRefresh = refresh
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newDashboardTestRouter(svc dashboardService, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.WithResponseMeta())
	router.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextUserKey, claims)
		}
		c.Next()
	})
	router.GET("/dashboard/requests", NewDashboardHandler(svc).Load)
	return router
}

func sdrClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "sdr-1", Role: models.RoleSDR}
}

func TestDashboardHandlerLoad(t *testing.T) {
	svc := &fakeDashboardService{result: &service.DashboardResult{
		View:        service.ViewAll,
		Requests:    []models.Request{{ID: "r1", Title: "Demande"}},
		Counters:    service.RequestCounters{All: 1},
		GeneratedAt: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
	}}
	router := newDashboardTestRouter(svc, sdrClaims())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/requests?view=all", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.Viewer{ID: "sdr-1", Role: models.RoleSDR}, svc.gotViewer)
	assert.Equal(t, service.ViewAll, svc.gotView)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data)
	require.NotNil(t, envelope.Meta)
	assert.Equal(t, false, envelope.Meta["cache_hit"])
}

func TestDashboardHandlerRequiresAuth(t *testing.T) {
	router := newDashboardTestRouter(&fakeDashboardService{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/requests", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDashboardHandlerUnknownViewFallsBackToAll(t *testing.T) {
	svc := &fakeDashboardService{result: &service.DashboardResult{View: service.ViewAll}}
	router := newDashboardTestRouter(svc, sdrClaims())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/requests?view=archived", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ViewAll, svc.gotView)
}

func TestDashboardHandlerParsesFilters(t *testing.T) {
	svc := &fakeDashboardService{result: &service.DashboardResult{View: service.ViewToAssign}}
	router := newDashboardTestRouter(svc, sdrClaims())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/requests?view=to_assign&types=email,linkedin&mission_id=m-1&created_by=u-9&unassigned_only=true&since=2024-06-01T00:00:00Z&refresh=true", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ViewToAssign, svc.gotView)
	assert.Equal(t, []models.RequestType{models.RequestTypeEmail, models.RequestTypeLinkedin}, svc.gotFilter.Types)
	assert.Equal(t, "m-1", svc.gotFilter.MissionID)
	require.NotNil(t, svc.gotFilter.Since)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), svc.gotFilter.Since.UTC())
	assert.Equal(t, service.SpecialFilters{CreatedBy: "u-9", UnassignedOnly: true}, svc.gotSpecial)
	assert.True(t, svc.gotRefresh)
}

func TestDashboardHandlerRejectsUnknownType(t *testing.T) {
	svc := &fakeDashboardService{}
	router := newDashboardTestRouter(svc, sdrClaims())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/requests?types=fax", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboardHandlerRejectsBadSince(t *testing.T) {
	router := newDashboardTestRouter(&fakeDashboardService{}, sdrClaims())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/requests?since=yesterday", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboardHandlerCacheHitMeta(t *testing.T) {
	svc := &fakeDashboardService{result: &service.DashboardResult{View: service.ViewAll, CacheHit: true}}
	router := newDashboardTestRouter(svc, sdrClaims())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/requests", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Meta)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}
