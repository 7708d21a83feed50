package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"normative/internal/release"
	"normative/internal/rules"
	"normative/internal/transport/http/mocks"
	"normative/pkg/domain"
	domainerrors "normative/pkg/domain-errors"
)

//go:generate mockgen -source=handlers_rules.go -destination=mocks/rules-mocks.go -package=mocks

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHandler(ctrl *gomock.Controller) (*RulesHandler, *mocks.MockRuleResolver, *mocks.MockReleaseSource, *mocks.MockCache) {
	resolver := mocks.NewMockRuleResolver(ctrl)
	releases := mocks.NewMockReleaseSource(ctrl)
	cache := mocks.NewMockCache(ctrl)
	return NewRulesHandler(resolver, releases, cache, testLogger()), resolver, releases, cache
}

func publishedRule(concept string) *rules.RegulatoryRule {
	return &rules.RegulatoryRule{
		ID:            domain.NewRuleID(),
		ConceptSlug:   concept,
		Value:         "25",
		ValueType:     rules.ValuePercent,
		RiskTier:      rules.TierT0,
		Status:        rules.StatusPublished,
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRulesHandler_HandleResolve_HappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler, resolver, releases, cache := testHandler(ctrl)

	rule := publishedRule("pdv-opca-stopa")
	rel := &release.RuleRelease{
		ID:          domain.NewReleaseID(),
		Version:     "1.2.0",
		ContentHash: "abc123",
		RuleIDs:     []domain.RuleID{rule.ID},
	}

	cache.EXPECT().
		Get(gomock.Any(), "rules:resolve:pdv-opca-stopa:2025-06-15").
		Return("", false).
		Times(1)
	releases.EXPECT().LatestVerified(gomock.Any()).Return(rel, nil).Times(1)
	resolver.EXPECT().
		EffectiveRule(gomock.Any(), "pdv-opca-stopa", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)).
		Return(rule, nil).
		Times(1)
	cache.EXPECT().
		Set(gomock.Any(), "rules:resolve:pdv-opca-stopa:2025-06-15", gomock.Any(), resolveCacheTTL).
		Times(1)

	req := httptest.NewRequest("GET", "/rules/resolve?concept=pdv-opca-stopa&date=2025-06-15", nil)
	w := httptest.NewRecorder()
	handler.HandleResolve(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ResolveResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "pdv-opca-stopa", resp.Concept)
	assert.Equal(t, "25", resp.Value)
	assert.Equal(t, "percent", resp.ValueType)
	assert.Equal(t, "2025-01-01", resp.EffectiveFrom)
	assert.Nil(t, resp.EffectiveUntil)
	assert.Equal(t, "1.2.0", resp.ReleaseVersion)
	assert.Equal(t, "abc123", resp.ContentHash)
}

func TestRulesHandler_HandleResolve_CacheHitSkipsStores(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler, _, _, cache := testHandler(ctrl)

	cached := `{"concept":"pdv-opca-stopa","value":"25","valueType":"percent","effectiveFrom":"2025-01-01","releaseVersion":"1.2.0","contentHash":"abc123"}`
	cache.EXPECT().
		Get(gomock.Any(), "rules:resolve:pdv-opca-stopa:2025-06-15").
		Return(cached, true).
		Times(1)

	req := httptest.NewRequest("GET", "/rules/resolve?concept=pdv-opca-stopa&date=2025-06-15", nil)
	w := httptest.NewRecorder()
	handler.HandleResolve(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, cached, w.Body.String())
}

func TestRulesHandler_HandleResolve_MissingConcept(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler, _, _, _ := testHandler(ctrl)

	req := httptest.NewRequest("GET", "/rules/resolve", nil)
	w := httptest.NewRecorder()
	handler.HandleResolve(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "invalid_input", body["error"])
}

func TestRulesHandler_HandleResolve_MalformedDate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler, _, _, _ := testHandler(ctrl)

	req := httptest.NewRequest("GET", "/rules/resolve?concept=pdv-opca-stopa&date=15.06.2025", nil)
	w := httptest.NewRecorder()
	handler.HandleResolve(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRulesHandler_HandleResolve_IntegrityFailureIsOpaque(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler, _, releases, cache := testHandler(ctrl)

	cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", false).Times(1)
	releases.EXPECT().
		LatestVerified(gomock.Any()).
		Return(nil, domainerrors.New(domainerrors.CodeIntegrity, "content hash mismatch: do not serve")).
		Times(1)

	req := httptest.NewRequest("GET", "/rules/resolve?concept=pdv-opca-stopa&date=2025-06-15", nil)
	w := httptest.NewRecorder()
	handler.HandleResolve(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "integrity_violation", body["error"])
	_, leaked := body["error_description"]
	assert.False(t, leaked, "integrity details must not reach clients")
}

func TestRulesHandler_HandleResolve_RuleOutsideRelease(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler, resolver, releases, cache := testHandler(ctrl)

	rule := publishedRule("pdv-snizena-stopa")
	rel := &release.RuleRelease{
		ID:          domain.NewReleaseID(),
		Version:     "1.2.0",
		ContentHash: "abc123",
		RuleIDs:     []domain.RuleID{domain.NewRuleID()},
	}

	cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", false).Times(1)
	releases.EXPECT().LatestVerified(gomock.Any()).Return(rel, nil).Times(1)
	resolver.EXPECT().EffectiveRule(gomock.Any(), "pdv-snizena-stopa", gomock.Any()).Return(rule, nil).Times(1)

	req := httptest.NewRequest("GET", "/rules/resolve?concept=pdv-snizena-stopa&date=2025-06-15", nil)
	w := httptest.NewRecorder()
	handler.HandleResolve(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRulesHandler_HandleResolve_NoEffectiveRule(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler, resolver, releases, cache := testHandler(ctrl)

	rel := &release.RuleRelease{ID: domain.NewReleaseID(), Version: "1.2.0"}

	cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", false).Times(1)
	releases.EXPECT().LatestVerified(gomock.Any()).Return(rel, nil).Times(1)
	resolver.EXPECT().
		EffectiveRule(gomock.Any(), "rok-prijave", gomock.Any()).
		Return(nil, domainerrors.New(domainerrors.CodeNotFound, "no published rule covers the date")).
		Times(1)

	req := httptest.NewRequest("GET", "/rules/resolve?concept=rok-prijave&date=2025-06-15", nil)
	w := httptest.NewRecorder()
	handler.HandleResolve(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_EchoesRequestID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler, _, _, _ := testHandler(ctrl)
	router := NewRouter(handler, Healthz(nil))

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-Id"))
}

func TestRouter_HealthzReportsFailedCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler, _, _, _ := testHandler(ctrl)
	checks := map[string]func() error{
		"postgres": func() error { return errors.New("connection refused") },
	}
	router := NewRouter(handler, Healthz(checks))

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
