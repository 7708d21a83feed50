package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"normative/internal/release"
	"normative/internal/rules"
	"normative/pkg/domain"
	domainerrors "normative/pkg/domain-errors"
	"normative/pkg/platform/httputil"
	"normative/pkg/requestcontext"
)

// RuleResolver resolves the published rule effective for a concept on a date.
type RuleResolver interface {
	EffectiveRule(ctx context.Context, conceptSlug string, date time.Time) (*rules.RegulatoryRule, error)
}

// ReleaseSource supplies the latest release, hash-verified. A release whose
// content hash fails verification is never served.
type ReleaseSource interface {
	LatestVerified(ctx context.Context) (*release.RuleRelease, error)
}

// Cache fronts resolution responses. Lookups that miss or fail fall through
// to the stores.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

const resolveCacheTTL = 5 * time.Minute

// RulesHandler serves the read-only release consumption API.
type RulesHandler struct {
	rules    RuleResolver
	releases ReleaseSource
	cache    Cache
	logger   *slog.Logger
}

// NewRulesHandler constructs the handler with its dependencies.
func NewRulesHandler(rules RuleResolver, releases ReleaseSource, cache Cache, logger *slog.Logger) *RulesHandler {
	return &RulesHandler{rules: rules, releases: releases, cache: cache, logger: logger}
}

// Register mounts the rule endpoints on the router.
func (h *RulesHandler) Register(r chi.Router) {
	r.Get("/rules/resolve", h.HandleResolve)
}

// ResolveResponse is the wire shape of one resolved rule.
type ResolveResponse struct {
	Concept        string  `json:"concept"`
	Value          string  `json:"value"`
	ValueType      string  `json:"valueType"`
	EffectiveFrom  string  `json:"effectiveFrom"`
	EffectiveUntil *string `json:"effectiveUntil,omitempty"`
	ReleaseVersion string  `json:"releaseVersion"`
	ContentHash    string  `json:"contentHash"`
}

// HandleResolve handles GET /rules/resolve?concept=&date= requests.
func (h *RulesHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	concept := r.URL.Query().Get("concept")
	if concept == "" {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeInvalidInput, "concept query parameter is required"))
		return
	}
	date := requestcontext.Now(ctx)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httputil.WriteError(w, domainerrors.New(domainerrors.CodeInvalidInput, "date must be yyyy-mm-dd"))
			return
		}
		date = parsed
	}

	cacheKey := "rules:resolve:" + concept + ":" + date.UTC().Format("2006-01-02")
	if cached, ok := h.cache.Get(ctx, cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(cached))
		return
	}

	rel, err := h.releases.LatestVerified(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "release verification failed",
			"request_id", requestID,
			"concept", concept,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	rule, err := h.rules.EffectiveRule(ctx, concept, date)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !containsRule(rel.RuleIDs, rule) {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeNotFound,
			"concept is not part of the current release"))
		return
	}

	resp := ResolveResponse{
		Concept:        rule.ConceptSlug,
		Value:          rule.Value,
		ValueType:      string(rule.ValueType),
		EffectiveFrom:  rule.EffectiveFrom.UTC().Format("2006-01-02"),
		ReleaseVersion: rel.Version,
		ContentHash:    rel.ContentHash,
	}
	if rule.EffectiveUntil != nil {
		until := rule.EffectiveUntil.UTC().Format("2006-01-02")
		resp.EffectiveUntil = &until
	}

	if raw, err := json.Marshal(resp); err == nil {
		h.cache.Set(ctx, cacheKey, string(raw), resolveCacheTTL)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func containsRule(ids []domain.RuleID, rule *rules.RegulatoryRule) bool {
	for _, id := range ids {
		if id == rule.ID {
			return true
		}
	}
	return false
}
