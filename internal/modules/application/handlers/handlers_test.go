package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/cession/internal/domain"
	"github.com/aristath/cession/internal/modules/application"
	"github.com/aristath/cession/internal/modules/inuring"
	"github.com/aristath/cession/internal/modules/runs"
)

// memoryRunStore keeps runs in memory
type memoryRunStore struct {
	created []*runs.Run
	err     error
}

func (m *memoryRunStore) Create(run *runs.Run) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	run.ID = "run-1"
	m.created = append(m.created, run)
	return run.ID, nil
}

func setupRouter(store RunStore) chi.Router {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	service := application.NewService(inuring.NewEngine(logger), 2, logger)
	handler := NewHandler(service, store, logger)

	router := chi.NewRouter()
	router.Route("/api", handler.RegisterRoutes)
	return router
}

func post(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	switch b := body.(type) {
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func rescalingProgram() *domain.Program {
	return &domain.Program{
		Name: "Property",
		Structures: []domain.Structure{
			{
				Name:       "QS_50",
				Type:       domain.QuotaShare,
				Order:      1,
				ClaimBasis: domain.RiskAttaching,
				Sections:   []domain.Section{{CessionPct: domain.Float(0.5)}},
			},
			{
				Name:        "XOL",
				Type:        domain.ExcessOfLoss,
				Order:       2,
				Predecessor: "QS_50",
				ClaimBasis:  domain.RiskAttaching,
				Sections:    []domain.Section{{Attachment: domain.Float(1_000_000), Limit: domain.Float(2_000_000)}},
			},
		},
	}
}

func TestHandleApplyProgram(t *testing.T) {
	router := setupRouter(&memoryRunStore{})

	w := post(t, router, "/api/programs/apply", ApplyProgramRequest{
		Policy:  &domain.Policy{ID: "P-1", Exposure: 10_000_000},
		Program: rescalingProgram(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result domain.PolicyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "P-1", result.PolicyID)
	assert.InDelta(t, 6_000_000, result.CededToReinsurer, 1e-6)
	assert.InDelta(t, 4_000_000, result.RetainedByCedant, 1e-6)
	require.Len(t, result.Structures, 2)
	require.NotNil(t, result.Structures[1].Rescaling)
	assert.InDelta(t, 500_000, result.Structures[1].Rescaling.RescaledAttachment, 1e-6)
}

func TestHandleApplyProgram_Errors(t *testing.T) {
	router := setupRouter(&memoryRunStore{})

	badPct := rescalingProgram()
	badPct.Structures[0].Sections[0].CessionPct = domain.Float(1.5)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"malformed body", "{not json", http.StatusBadRequest},
		{"missing program", ApplyProgramRequest{Policy: &domain.Policy{ID: "P-1"}}, http.StatusBadRequest},
		{
			"invalid cession pct",
			ApplyProgramRequest{Policy: &domain.Policy{ID: "P-1", Exposure: 100}, Program: badPct},
			http.StatusUnprocessableEntity,
		},
		{
			"unknown participation type",
			`{"policy":{"policy_id":"P-1","exposure":100},"program":{"structures":[{"name":"S","type_of_participation":"surplus"}]}}`,
			http.StatusUnprocessableEntity,
		},
		{
			"negative exposure",
			ApplyProgramRequest{Policy: &domain.Policy{ID: "P-1", Exposure: -1}, Program: rescalingProgram()},
			http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, router, "/api/programs/apply", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandleApplyBordereau(t *testing.T) {
	store := &memoryRunStore{}
	router := setupRouter(store)

	w := post(t, router, "/api/bordereau/apply", ApplyBordereauRequest{
		Bordereau: domain.Bordereau{
			{ID: "P-1", Exposure: 10_000_000},
			{ID: "P-2", Exposure: 1_000_000},
		},
		Program: rescalingProgram(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp BordereauResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "P-1", resp.Rows[0].ID)
	assert.Equal(t, "P-2", resp.Rows[1].ID)
	assert.InDelta(t, 500_000, resp.Rows[1].CededToReinsurer, 1e-6)
	assert.Equal(t, 2, resp.Totals.PolicyCount)
	assert.InDelta(t, 11_000_000, resp.Totals.Exposure, 1e-6)

	require.Len(t, store.created, 1)
	assert.Equal(t, runs.KindProgram, store.created[0].Kind)
	assert.Equal(t, "Property", store.created[0].ProgramName)
}

func TestHandleApplyBordereau_StoreFailure(t *testing.T) {
	router := setupRouter(&memoryRunStore{err: errors.New("disk full")})

	w := post(t, router, "/api/bordereau/apply", ApplyBordereauRequest{
		Bordereau: domain.Bordereau{{ID: "P-1", Exposure: 100}},
		Program:   rescalingProgram(),
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func treatyBook() domain.TreatyBook {
	year := func(name, from, to string, pct float64) *domain.Program {
		return &domain.Program{
			Name: name,
			Structures: []domain.Structure{{
				Name:       "QS",
				Type:       domain.QuotaShare,
				ClaimBasis: domain.LossOccurring,
				Effective:  domain.MustParseDate(from),
				Expiry:     domain.MustParseDate(to),
				Sections:   []domain.Section{{CessionPct: domain.Float(pct)}},
			}},
		}
	}
	return domain.TreatyBook{
		"2024": year("2024", "2024-01-01", "2024-12-31", 0.2),
		"2025": year("2025", "2025-01-01", "2025-12-31", 0.4),
	}
}

func TestHandleApplyTreaty(t *testing.T) {
	router := setupRouter(&memoryRunStore{})

	w := post(t, router, "/api/treaties/apply", ApplyTreatyRequest{
		Policy:          &domain.Policy{ID: "P-1", Exposure: 1_000, Inception: domain.MustParseDate("2024-03-01")},
		TreatyBook:      treatyBook(),
		CalculationDate: domain.MustParseDate("2025-06-15"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result domain.PolicyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "2025", result.SelectedTreatyYear)
	assert.Equal(t, domain.LossOccurring, result.ClaimBasis)
	assert.Equal(t, domain.CoverageCovered, result.CoverageStatus)
	assert.InDelta(t, 400, result.CededToReinsurer, 1e-9)
	assert.Equal(t, "2025-06-15", result.CalculationDate.String())
}

func TestHandleApplyTreaty_NoTreatyFound(t *testing.T) {
	router := setupRouter(&memoryRunStore{})

	w := post(t, router, "/api/treaties/apply", ApplyTreatyRequest{
		Policy:          &domain.Policy{ID: "P-1", Exposure: 1_000},
		TreatyBook:      treatyBook(),
		CalculationDate: domain.MustParseDate("2030-01-01"),
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result domain.PolicyResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, domain.CoverageNoTreatyFound, result.CoverageStatus)
	assert.Equal(t, 1_000.0, result.RetainedByCedant)
	assert.Zero(t, result.CededToReinsurer)
}

func TestHandleApplyTreaty_EmptyBook(t *testing.T) {
	router := setupRouter(&memoryRunStore{})

	w := post(t, router, "/api/treaties/apply", ApplyTreatyRequest{
		Policy:     &domain.Policy{ID: "P-1", Exposure: 1_000},
		TreatyBook: domain.TreatyBook{},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "treaty book"))
}

func TestHandleApplyTreatyBordereau(t *testing.T) {
	store := &memoryRunStore{}
	router := setupRouter(store)

	w := post(t, router, "/api/treaties/bordereau", ApplyTreatyBordereauRequest{
		Bordereau:       domain.Bordereau{{ID: "P-1", Exposure: 1_000}, {ID: "P-2", Exposure: 2_000}},
		TreatyBook:      treatyBook(),
		CalculationDate: domain.MustParseDate("2024-06-30"),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp BordereauResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Empty(t, resp.Rows)
	for _, r := range resp.Results {
		assert.Equal(t, "2024", r.SelectedTreatyYear)
	}
	assert.InDelta(t, 600, resp.Totals.CededToReinsurer, 1e-9)

	require.Len(t, store.created, 1)
	assert.Equal(t, runs.KindTreatyBook, store.created[0].Kind)
	assert.Equal(t, domain.LossOccurring, store.created[0].ClaimBasis)
	assert.Equal(t, "2024-06-30", store.created[0].CalculationDate.String())
}

func TestRegisterRoutes(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	handler := NewHandler(application.NewService(inuring.NewEngine(logger), 1, logger), &memoryRunStore{}, logger)

	router := chi.NewRouter()
	assert.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	})
}
