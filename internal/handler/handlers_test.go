package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/config"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/domain"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/repository"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/services/call"
	"github.com/Arseniidemydov/Relo-Radar-Dialer/internal/session"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUpdater struct {
	mu       sync.Mutex
	calls    []string
	programs []string
	err      error
}

func (s *stubUpdater) UpdateCallTwiml(ctx context.Context, callSid, twimlDoc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, callSid)
	s.programs = append(s.programs, twimlDoc)
	return s.err
}

type stubTokenIssuer struct {
	token string
	err   error
}

func (s *stubTokenIssuer) CreateVoiceAccessToken(identity string, ttl time.Duration) (string, error) {
	return s.token, s.err
}

type testEnv struct {
	router   *mux.Router
	registry *session.MemoryRegistry
	updater  *stubUpdater
	leadRepo repository.LeadRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.DialerConfig{
		ServerURL:       "https://dialer.example.com",
		TwilioCallerID:  "+15550001111",
		VoiceflowNumber: "+15552223333",
		AgentIdentity:   "agent",
	}

	registry := session.NewMemoryRegistry()
	updater := &stubUpdater{}
	service := call.NewService(cfg, registry, updater, nil, nil)
	leadRepo := repository.NewMemoryLeadRepository()

	router := mux.NewRouter()
	NewTwilioHandler(cfg, &stubTokenIssuer{token: "signed-jwt"}, service).SetupTwilioRoutes(router)
	NewLeadsHandler(leadRepo, service).SetupLeadsRoutes(router)

	return &testEnv{
		router:   router,
		registry: registry,
		updater:  updater,
		leadRepo: leadRepo,
	}
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postJSON(t *testing.T, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestGetTokenReturnsSignedToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/twilio/token", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "signed-jwt", resp["token"])
	assert.Equal(t, "agent", resp["identity"])
}

func TestVoiceWebhookBuildsDialProgram(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postForm(t, "/twilio/voice", url.Values{
		"To":     {"+41761112233"},
		"leadId": {"L1"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "+41761112233")
	assert.Contains(t, body, "/twilio/status?leadId=L1")
}

func TestVoiceWebhookWithoutDestination(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postForm(t, "/twilio/voice", url.Values{"leadId": {"L1"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No phone number provided.")
}

func TestStatusCallbackRegistersSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postForm(t, "/twilio/status?leadId=L1", url.Values{
		"CallSid":        {"CA1"},
		"CallStatus":     {"ringing"},
		"SequenceNumber": {"2"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	sess, err := env.registry.Get(context.Background(), "L1")
	require.NoError(t, err)
	assert.Equal(t, "CA1", sess.CallLegID)
	assert.Equal(t, session.StateRinging, sess.State)
}

func TestStatusCallbackTerminalRemovesSession(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.registry.Upsert(context.Background(), "L1", "CA1", session.StateAnswered, 1))

	rec := env.postForm(t, "/twilio/status?leadId=L1", url.Values{
		"CallSid":    {"CA1"},
		"CallStatus": {"completed"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := env.registry.Get(context.Background(), "L1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestDropVoicemailEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.registry.Upsert(context.Background(), "L1", "CA1", session.StateAnswered, 1))

	rec := env.postJSON(t, "/leads/drop-voicemail", domain.DropVoicemailRequest{
		LeadID:    "L1",
		LeadName:  "Jane",
		LeadPhone: "+41761112233",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.DropVoicemailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	env.updater.mu.Lock()
	defer env.updater.mu.Unlock()
	require.Len(t, env.updater.calls, 1)
	assert.Equal(t, "CA1", env.updater.calls[0])
	assert.Contains(t, env.updater.programs[0], "+15552223333")
}

func TestDropVoicemailWithoutActiveCall(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON(t, "/leads/drop-voicemail", domain.DropVoicemailRequest{LeadID: "L1"})

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "No active call found for this lead", resp["error"])
}

func TestDropVoicemailWithoutLeadID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON(t, "/leads/drop-voicemail", map[string]string{})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Missing leadId", resp["error"])
}

func TestDialStatusAnswersWithHangup(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postForm(t, "/leads/dial-status?name=Jane", url.Values{
		"DialCallStatus": {"completed"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Hangup")
}

func TestTransferStatusAlwaysAcknowledges(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postForm(t, "/leads/transfer-status?leadPhone=%2B41761112233", url.Values{
		"CallSid": {"CA-transfer"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Missing CallSid is logged, never rejected
	rec = env.postForm(t, "/leads/transfer-status", url.Values{})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListAndCreateLeads(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON(t, "/leads", domain.CreateLeadRequest{
		Name:  "Jane Doe",
		Phone: "+41761112233",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/leads", nil)
	listRec := httptest.NewRecorder()
	env.router.ServeHTTP(listRec, req)

	require.Equal(t, http.StatusOK, listRec.Code)
	var leads []domain.Lead
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &leads))
	require.Len(t, leads, 2)
	assert.Equal(t, "Jane Doe", leads[0].Name)
}

func TestCreateLeadRequiresNameAndPhone(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON(t, "/leads", domain.CreateLeadRequest{Name: "Jane Doe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportLeadsFromCSVBody(t *testing.T) {
	env := newTestEnv(t)

	csv := strings.Join([]string{
		"Name,Phone number,notes,status",
		"Jane Doe,+41761112233,warm,Not contacted",
		"John Roe,+41762223344,,Contacted",
	}, "\n")

	req := httptest.NewRequest(http.MethodPost, "/leads/import", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result domain.ImportLeadsResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
}

func TestImportLeadsRejectsMalformedCSV(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/leads/import", strings.NewReader("no,useful\ncolumns,here"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSMiddlewareShortCircuitsPreflight(t *testing.T) {
	wrapped := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/leads", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRootAndPing(t *testing.T) {
	hm := &HandlerManager{config: &config.DialerConfig{}}
	router := mux.NewRouter()
	router.HandleFunc("/", hm.handleRoot).Methods("GET")
	router.HandleFunc("/ping", hm.handlePing).Methods("GET")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var ping map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ping))
	assert.Equal(t, "ok", ping["status"])
	assert.NotEmpty(t, ping["timestamp"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Relo Radar Dialer")
}
