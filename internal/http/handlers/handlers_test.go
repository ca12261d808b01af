package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/gameweek"
	"server/internal/middleware"
	"server/internal/providers/billing"
	"server/internal/quota"
)

type memUsers struct {
	byID map[string]*domain.User
}

func newMemUsers(users ...*domain.User) *memUsers {
	m := &memUsers{byID: make(map[string]*domain.User)}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, user *domain.User) error {
	for _, u := range m.byID {
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUsers) SetPremium(_ context.Context, id string) error {
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsPremium = true
	return nil
}

type stubStats struct {
	fixtures []domain.Fixture
	err      error
}

func (s *stubStats) FetchMatchContext(_ context.Context, homeID, awayID int) domain.MatchContext {
	return domain.MatchContext{
		Home: domain.TeamStats{ID: homeID, Name: "Arsenal", RecentForm: []domain.FormResult{domain.FormWin, domain.FormWin}},
		Away: domain.TeamStats{ID: awayID, Name: "Chelsea", RecentForm: []domain.FormResult{domain.FormLoss, domain.FormDraw}},
	}
}

func (s *stubStats) FetchUpcoming(_ context.Context, n int) ([]domain.Fixture, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.fixtures) > n {
		return s.fixtures[:n], nil
	}
	return s.fixtures, nil
}

type stubPredictor struct {
	predict func(domain.MatchContext) (*domain.Prediction, error)
}

func (s *stubPredictor) Predict(_ context.Context, mctx domain.MatchContext) (*domain.Prediction, error) {
	return s.predict(mctx)
}

func fixedPrediction(p domain.Prediction) *stubPredictor {
	return &stubPredictor{predict: func(domain.MatchContext) (*domain.Prediction, error) {
		cp := p
		return &cp, nil
	}}
}

type stubBiller struct {
	url   string
	event billing.Event
	err   error
}

func (s *stubBiller) CheckoutURL(context.Context, string, string) (string, error) {
	return s.url, s.err
}

func (s *stubBiller) ParseEvent([]byte, string) (billing.Event, error) {
	return s.event, s.err
}

func newTestApp(users domain.UserRepository, opts ...func(*App)) *App {
	ledger := quota.NewMemoryLedger(time.Minute)
	app := App{
		Logger: zerolog.Nop(),
		Users:  users,
		Ledger: ledger,
		Gate:   quota.NewGate(users, ledger),
		Stats:  &stubStats{},
		Predictor: fixedPrediction(domain.Prediction{
			Score:      "2-1",
			WinChances: domain.WinChances{Home: 50, Draw: 30, Away: 20},
			BTTSPct:    60,
			Provider:   "form",
		}),
		Gameweeks: gameweek.NewCalculator(gameweek.DefaultConfig(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))),
		JWTSecret: "test-secret",
		Now:       func() time.Time { return time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC) },
	}
	for _, opt := range opts {
		opt(&app)
	}
	return NewApp(app)
}

func authedRequest(method, target, userID string, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if userID != "" {
		r = r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
	}
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestRegisterLoginMe(t *testing.T) {
	users := newMemUsers()
	app := newTestApp(users)

	rec := httptest.NewRecorder()
	app.Register(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(`{"email":" Fan@Example.COM ","password":"secret123"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Register status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if token, _ := decodeBody(t, rec)["token"].(string); token == "" {
		t.Fatalf("Register returned empty token")
	}

	// The email is stored canonicalized, so login with a different casing works.
	rec = httptest.NewRecorder()
	app.Login(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"fan@example.com","password":"secret123"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("Login status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	claims, err := middleware.VerifyJWT("test-secret", token)
	if err != nil {
		t.Fatalf("VerifyJWT() error = %v", err)
	}

	rec = httptest.NewRecorder()
	app.Me(rec, authedRequest(http.MethodGet, "/v1/me", claims.Subject, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("Me status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got, _ := decodeBody(t, rec)["email"].(string); got != "fan@example.com" {
		t.Fatalf("Me email = %q, want %q", got, "fan@example.com")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Email: "taken@example.com"})
	app := newTestApp(users)

	rec := httptest.NewRecorder()
	app.Register(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(`{"email":"taken@example.com","password":"pw"}`)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("Register status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if got, _ := decodeBody(t, rec)["reason"].(string); got != "email_taken" {
		t.Fatalf("reason = %q, want %q", got, "email_taken")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	users := newMemUsers()
	app := newTestApp(users)

	rec := httptest.NewRecorder()
	app.Register(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(`{"email":"a@b.com","password":"right"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Register status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	app.Login(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"email":"a@b.com","password":"wrong"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Login status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestFreePredictionConsumesWeeklySlot(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Email: "a@b.com"})
	app := newTestApp(users)

	rec := httptest.NewRecorder()
	app.FreePrediction(rec, authedRequest(http.MethodPost, "/v1/predictions/free", "u1", `{"home_team":33,"away_team":34}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("first FreePrediction status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["gameweek"] != "GW3" {
		t.Fatalf("gameweek = %v, want GW3", body["gameweek"])
	}
	if body["score"] != "2-1" {
		t.Fatalf("score = %v, want 2-1", body["score"])
	}

	rec = httptest.NewRecorder()
	app.FreePrediction(rec, authedRequest(http.MethodPost, "/v1/predictions/free", "u1", `{"home_team":33,"away_team":34}`))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("second FreePrediction status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if got, _ := decodeBody(t, rec)["reason"].(string); got != quota.ReasonQuotaExhausted {
		t.Fatalf("reason = %q, want %q", got, quota.ReasonQuotaExhausted)
	}
}

func TestFreePredictionPremiumBypassesQuota(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Email: "a@b.com", IsPremium: true})
	app := newTestApp(users)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		app.FreePrediction(rec, authedRequest(http.MethodPost, "/v1/predictions/free", "u1", `{"home_team":33,"away_team":34}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}
}

func TestFreePredictionReleasesSlotOnFailure(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Email: "a@b.com"})
	failing := &stubPredictor{predict: func(domain.MatchContext) (*domain.Prediction, error) {
		return nil, domain.ErrProviderFailure
	}}
	app := newTestApp(users, func(a *App) { a.Predictor = failing })

	rec := httptest.NewRecorder()
	app.FreePrediction(rec, authedRequest(http.MethodPost, "/v1/predictions/free", "u1", `{"home_team":33,"away_team":34}`))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("failed FreePrediction status = %d, want %d", rec.Code, http.StatusBadGateway)
	}

	// The reservation must be gone so the retry succeeds within the same week.
	app.Predictor = fixedPrediction(domain.Prediction{Score: "1-0", WinChances: domain.WinChances{Home: 60, Draw: 25, Away: 15}})
	rec = httptest.NewRecorder()
	app.FreePrediction(rec, authedRequest(http.MethodPost, "/v1/predictions/free", "u1", `{"home_team":33,"away_team":34}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("retry FreePrediction status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestFreePredictionRateLimited(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Email: "a@b.com"})
	limited := &stubPredictor{predict: func(domain.MatchContext) (*domain.Prediction, error) {
		return nil, domain.ErrProviderRateLimit
	}}
	app := newTestApp(users, func(a *App) { a.Predictor = limited })

	rec := httptest.NewRecorder()
	app.FreePrediction(rec, authedRequest(http.MethodPost, "/v1/predictions/free", "u1", `{"home_team":33,"away_team":34}`))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestFreePredictionValidation(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Email: "a@b.com"})
	app := newTestApp(users)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"garbage", `not json`, http.StatusBadRequest},
		{"missing teams", `{}`, http.StatusBadRequest},
		{"same team", `{"home_team":33,"away_team":33}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.FreePrediction(rec, authedRequest(http.MethodPost, "/v1/predictions/free", "u1", tt.body))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestFreePredictionUnknownUser(t *testing.T) {
	app := newTestApp(newMemUsers())

	rec := httptest.NewRecorder()
	app.FreePrediction(rec, authedRequest(http.MethodPost, "/v1/predictions/free", "ghost", `{"home_team":33,"away_team":34}`))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestWeeklyBestRequiresPremium(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Email: "a@b.com"})
	app := newTestApp(users)

	rec := httptest.NewRecorder()
	app.WeeklyBest(rec, authedRequest(http.MethodPost, "/v1/predictions/weekly", "u1", `{"fixtures":[{"home_team":33,"away_team":34}]}`))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if got, _ := decodeBody(t, rec)["reason"].(string); got != "premium_required" {
		t.Fatalf("reason = %q, want %q", got, "premium_required")
	}
}

func TestWeeklyBestPicksStrongestSignal(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Email: "a@b.com", IsPremium: true})
	// Home id 50 gets a decisive prediction, everything else a coin flip.
	picker := &stubPredictor{predict: func(mctx domain.MatchContext) (*domain.Prediction, error) {
		if mctx.Home.ID == 50 {
			return &domain.Prediction{Score: "3-0", WinChances: domain.WinChances{Home: 80, Draw: 15, Away: 5}, BTTSPct: 20}, nil
		}
		return &domain.Prediction{Score: "1-1", WinChances: domain.WinChances{Home: 35, Draw: 30, Away: 35}, BTTSPct: 50}, nil
	}}
	app := newTestApp(users, func(a *App) { a.Predictor = picker })

	body := `{"fixtures":[{"home_team":33,"away_team":34},{"home_team":50,"away_team":51},{"home_team":40,"away_team":41}]}`
	rec := httptest.NewRecorder()
	app.WeeklyBest(rec, authedRequest(http.MethodPost, "/v1/predictions/weekly", "u1", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var out struct {
		Fixture struct {
			HomeTeam int `json:"home_team"`
		} `json:"fixture"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Fixture.HomeTeam != 50 {
		t.Fatalf("best fixture home = %d, want 50", out.Fixture.HomeTeam)
	}
	if want := 80*1.5 + 20*0.5; out.Confidence != want {
		t.Fatalf("confidence = %v, want %v", out.Confidence, want)
	}
}

func TestWeeklyBestSkipsFailedFixtures(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Email: "a@b.com", IsPremium: true})
	flaky := &stubPredictor{predict: func(mctx domain.MatchContext) (*domain.Prediction, error) {
		if mctx.Home.ID == 33 {
			return nil, errors.New("model unavailable")
		}
		return &domain.Prediction{Score: "2-0", WinChances: domain.WinChances{Home: 70, Draw: 20, Away: 10}, BTTSPct: 30}, nil
	}}
	app := newTestApp(users, func(a *App) { a.Predictor = flaky })

	body := `{"fixtures":[{"home_team":33,"away_team":34},{"home_team":40,"away_team":41}]}`
	rec := httptest.NewRecorder()
	app.WeeklyBest(rec, authedRequest(http.MethodPost, "/v1/predictions/weekly", "u1", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestFixtures(t *testing.T) {
	users := newMemUsers()
	upcoming := []domain.Fixture{{ID: 1, HomeID: 33, HomeName: "Arsenal", AwayID: 34, AwayName: "Chelsea"}}
	app := newTestApp(users, func(a *App) { a.Stats = &stubStats{fixtures: upcoming} })

	rec := httptest.NewRecorder()
	app.Fixtures(rec, httptest.NewRequest(http.MethodGet, "/v1/fixtures", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var out struct {
		Fixtures []domain.Fixture `json:"fixtures"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Fixtures) != 1 || out.Fixtures[0].HomeName != "Arsenal" {
		t.Fatalf("fixtures = %+v", out.Fixtures)
	}
}

func TestBillingWebhookPromotesUser(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Email: "a@b.com"})
	app := newTestApp(users, func(a *App) {
		a.Biller = &stubBiller{event: billing.Event{Type: billing.EventCheckoutCompleted, UserID: "u1"}}
	})

	rec := httptest.NewRecorder()
	app.BillingWebhook(rec, httptest.NewRequest(http.MethodPost, "/v1/billing/webhook", bytes.NewReader([]byte(`{}`))))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	u, err := users.GetByID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !u.IsPremium {
		t.Fatalf("user not promoted to premium")
	}
}

func TestBillingWebhookIgnoresOtherEvents(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Email: "a@b.com"})
	app := newTestApp(users, func(a *App) {
		a.Biller = &stubBiller{event: billing.Event{Type: "invoice.paid", UserID: "u1"}}
	})

	rec := httptest.NewRecorder()
	app.BillingWebhook(rec, httptest.NewRequest(http.MethodPost, "/v1/billing/webhook", bytes.NewReader([]byte(`{}`))))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	u, _ := users.GetByID(context.Background(), "u1")
	if u.IsPremium {
		t.Fatalf("user promoted on unrelated event")
	}
}

func TestBillingCheckout(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Email: "a@b.com"})
	app := newTestApp(users, func(a *App) {
		a.Biller = &stubBiller{url: "https://checkout.stripe.com/pay/cs_test"}
	})

	rec := httptest.NewRecorder()
	app.BillingCheckout(rec, authedRequest(http.MethodPost, "/v1/billing/checkout", "u1", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got, _ := decodeBody(t, rec)["url"].(string); got != "https://checkout.stripe.com/pay/cs_test" {
		t.Fatalf("url = %q", got)
	}
}

func TestBillingCheckoutUnconfigured(t *testing.T) {
	users := newMemUsers(&domain.User{ID: "u1", Email: "a@b.com"})
	app := newTestApp(users)

	rec := httptest.NewRecorder()
	app.BillingCheckout(rec, authedRequest(http.MethodPost, "/v1/billing/checkout", "u1", ""))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
