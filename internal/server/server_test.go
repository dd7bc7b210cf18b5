package server

import (
	"MedsetuPortal/internal/config"
	"MedsetuPortal/internal/entities"
	"MedsetuPortal/internal/events"
	"MedsetuPortal/internal/medsetu"
	"MedsetuPortal/internal/medsetu/medsetutest"
	"MedsetuPortal/internal/screens"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type recorder struct {
	mu     sync.Mutex
	events []events.LookupEvent
}

func (r *recorder) Publish(e events.LookupEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Close() error { return nil }

func (r *recorder) Events() []events.LookupEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.LookupEvent(nil), r.events...)
}

// gatedAPI holds /api/map calls until release is closed.
type gatedAPI struct {
	*medsetu.Client
	release chan struct{}
}

func (g gatedAPI) Map(ctx context.Context, code string) ([]entities.MappedDiagnosis, error) {
	<-g.release
	return g.Client.Map(ctx, code)
}

// slowListsAPI holds the directory fetches until release is closed.
type slowListsAPI struct {
	*medsetu.Client
	release chan struct{}
}

func (s slowListsAPI) Doctors(ctx context.Context) ([]entities.Doctor, error) {
	<-s.release
	return s.Client.Doctors(ctx)
}

func (s slowListsAPI) Patients(ctx context.Context) ([]entities.Patient, error) {
	<-s.release
	return s.Client.Patients(ctx)
}

type browser struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
}

func (b *browser) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)

	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		b.cookies = cookies
	}
	return rec
}

func (b *browser) get(path string) string {
	b.t.Helper()
	rec := b.do(http.MethodGet, path, nil)
	require.Equal(b.t, http.StatusOK, rec.Code, rec.Body.String())
	return rec.Body.String()
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	return b.do(http.MethodPost, path, form)
}

func seed(up *medsetutest.Upstream) {
	up.SetDoctors(
		entities.Doctor{ID: "1", Name: "Dr. Rao", Specialty: "Ayurveda"},
		entities.Doctor{ID: "2", Name: "Dr. Sen", Specialty: "Siddha"},
	)
	up.SetPatients(
		entities.Patient{
			ID: "10", Name: "Asha Verma", Age: 42, DoctorID: "1", Symptoms: []string{"itching", "redness"},
			Visit: entities.Visit{Date: "2024-03-01", Diagnosis: entities.Diagnosis{System: "NAMASTE", Code: "NAM-D-102", Description: "Vicharchika"}},
		},
		entities.Patient{
			ID: "11", Name: "Ravi Kumar", Age: 35, DoctorID: "99",
			Visit: entities.Visit{Date: "2024-03-02", Diagnosis: entities.Diagnosis{System: "ICD-11", Code: "FA20.0", Description: "Osteoarthritis of hip"}},
		},
	)
	up.SetMapping("FA20.0", entities.MappedDiagnosis{Code: "NAM-D-102", Term: "Dermatitis"})
	up.SetMapping("NAM-D-102", entities.MappedDiagnosis{Code: "EA80", Term: "Atopic eczema"})
}

func newTestServer(t *testing.T, api func(up *medsetutest.Upstream) screens.API, renderWait time.Duration) (*browser, *medsetutest.Upstream, *recorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	up := medsetutest.New()
	t.Cleanup(up.Close)
	seed(up)

	cfg := &config.Config{
		Port:       ":0",
		RenderWait: renderWait,
		SessionTTL: time.Minute,
		API:        config.APIConfig{BaseURL: up.URL(), Timeout: 5 * time.Second},
	}

	var client screens.API = medsetu.New(up.URL(), cfg.API.Timeout)
	if api != nil {
		client = api(up)
	}

	rec := &recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := New(cfg, client, rec, logger)
	require.NoError(t, err)

	return &browser{t: t, handler: srv.Handler()}, up, rec
}

func TestShell_Navigation(t *testing.T) {
	b, _, _ := newTestServer(t, nil, time.Second)

	body := b.get("/")
	assert.Contains(t, body, "Code Translator")
	assert.Contains(t, body, "Patient Records")
	assert.Contains(t, body, "Doctor Directory")
	assert.Contains(t, body, `href="/" class="nav-links activated"`)
	assert.NotContains(t, body, `href="/doctors" class="nav-links activated"`)

	body = b.get("/doctors")
	assert.Contains(t, body, `href="/doctors" class="nav-links activated"`)
	assert.NotContains(t, body, `href="/" class="nav-links activated"`)
}

func TestShell_SessionCookieIssuedOnFirstLookup(t *testing.T) {
	b, _, _ := newTestServer(t, nil, time.Second)

	rec := b.do(http.MethodGet, "/", nil)
	assert.Empty(t, rec.Result().Cookies())

	rec = b.post("/", url.Values{"code": {"FA20.0"}})
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, "medsetu_session", rec.Result().Cookies()[0].Name)

	rec = b.do(http.MethodGet, "/", nil)
	assert.Empty(t, rec.Result().Cookies())
	assert.Contains(t, rec.Body.String(), "Dermatitis")
}

func TestShell_RequestID(t *testing.T) {
	b, _, _ := newTestServer(t, nil, time.Second)

	rec := b.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestShell_StaticAndNotFound(t *testing.T) {
	b, _, _ := newTestServer(t, nil, time.Second)

	rec := b.do(http.MethodGet, "/static/app.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".nav-links")

	rec = b.do(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found.")
}

func TestTranslator_EmptyInputMakesNoRequest(t *testing.T) {
	b, up, rec := newTestServer(t, nil, time.Second)

	resp := b.post("/", url.Values{"code": {"   "}})
	require.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, "/", resp.Header().Get("Location"))

	body := b.get("/")
	assert.Contains(t, body, screens.MsgEmptyCode)
	assert.Zero(t, up.Calls("/api/map"))
	assert.Empty(t, rec.Events())
}

func TestTranslator_SingleCandidateIsNotNumbered(t *testing.T) {
	b, up, rec := newTestServer(t, nil, time.Second)

	resp := b.post("/", url.Values{"code": {"FA20.0"}})
	require.Equal(t, http.StatusSeeOther, resp.Code)

	body := b.get("/")
	assert.Contains(t, body, `Translation for <span class="code-highlight">FA20.0</span>`)
	assert.Contains(t, body, "NAM-D-102")
	assert.Contains(t, body, "Dermatitis")
	assert.Equal(t, 1, strings.Count(body, `class="result-item-wrapper"`))
	assert.NotContains(t, body, "Option 1")
	assert.NotContains(t, body, `class="error-box"`)
	assert.Equal(t, []string{"FA20.0"}, up.MapCodes())

	evts := rec.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, events.OutcomeSuccess, evts[0].Outcome)
	assert.Equal(t, events.ScreenTranslator, evts[0].Screen)
}

func TestTranslator_MultipleCandidatesAreNumbered(t *testing.T) {
	b, up, _ := newTestServer(t, nil, time.Second)
	up.SetMapping("NAM-D-200",
		entities.MappedDiagnosis{Code: "EA80", Term: "Atopic eczema"},
		entities.MappedDiagnosis{Code: "EA85", Term: "Contact dermatitis"},
		entities.MappedDiagnosis{Code: "EA90", Term: "Psoriasis"},
	)

	b.post("/", url.Values{"code": {"NAM-D-200"}})
	body := b.get("/")

	assert.Equal(t, 3, strings.Count(body, `class="result-item-wrapper"`))
	assert.Contains(t, body, "Option 1")
	assert.Contains(t, body, "Option 2")
	assert.Contains(t, body, "Option 3")
	assert.NotContains(t, body, "Option 4")
}

func TestTranslator_EmptyResultShowsNothing(t *testing.T) {
	b, up, _ := newTestServer(t, nil, time.Second)
	up.SetMapping("ZZ99")

	b.post("/", url.Values{"code": {"ZZ99"}})
	body := b.get("/")

	assert.NotContains(t, body, `class="result-box"`)
	assert.NotContains(t, body, `class="error-box"`)
}

func TestTranslator_ServerErrorMessage(t *testing.T) {
	b, up, _ := newTestServer(t, nil, time.Second)
	up.Fail("/api/map", http.StatusBadGateway, "terminology service down")

	b.post("/", url.Values{"code": {"FA20.0"}})
	body := b.get("/")

	assert.Contains(t, body, `<div class="error-box">terminology service down</div>`)
	assert.NotContains(t, body, `class="result-box"`)
}

func TestTranslator_SubmittingRendersProgress(t *testing.T) {
	release := make(chan struct{})
	b, _, _ := newTestServer(t, func(up *medsetutest.Upstream) screens.API {
		return gatedAPI{Client: medsetu.New(up.URL(), 5*time.Second), release: release}
	}, 10*time.Millisecond)

	b.post("/", url.Values{"code": {"FA20.0"}})
	body := b.get("/")
	assert.Contains(t, body, "Searching...")
	assert.Contains(t, body, `http-equiv="refresh"`)

	close(release)
	require.Eventually(t, func() bool {
		return strings.Contains(b.get("/"), "Dermatitis")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTranslator_EmptySubmitKeepsResults(t *testing.T) {
	b, _, _ := newTestServer(t, nil, time.Second)

	b.post("/", url.Values{"code": {"FA20.0"}})
	b.post("/", url.Values{"code": {""}})

	body := b.get("/")
	assert.Contains(t, body, screens.MsgEmptyCode)
	assert.Contains(t, body, "Dermatitis")
}

func TestTranslator_SessionsAreIndependent(t *testing.T) {
	a, _, _ := newTestServer(t, nil, time.Second)
	other := &browser{t: t, handler: a.handler}

	a.post("/", url.Values{"code": {"FA20.0"}})
	assert.Contains(t, a.get("/"), "Dermatitis")
	assert.NotContains(t, other.get("/"), "Dermatitis")
}

func TestPatients_List(t *testing.T) {
	b, up, _ := newTestServer(t, nil, time.Second)

	body := b.get("/patients")
	assert.Contains(t, body, "Patient Records (2)")
	assert.Contains(t, body, "Asha Verma")
	assert.Contains(t, body, "Ravi Kumar")
	assert.Contains(t, body, "Select a patient from the list to view their details.")
	assert.Equal(t, 1, up.Calls("/api/patients"))
	assert.Equal(t, 1, up.Calls("/api/doctors"))
	assert.Zero(t, up.Calls("/api/map"))
}

func TestPatients_LoadingPlaceholder(t *testing.T) {
	release := make(chan struct{})
	b, up, _ := newTestServer(t, func(up *medsetutest.Upstream) screens.API {
		return slowListsAPI{Client: medsetu.New(up.URL(), 5*time.Second), release: release}
	}, 10*time.Millisecond)

	body := b.get("/patients")
	assert.Contains(t, body, "Loading Patient Records...")
	assert.Contains(t, body, `http-equiv="refresh"`)
	assert.NotContains(t, body, "patient-list-item")

	body = b.get("/patients/10")
	assert.Contains(t, body, "Loading Patient Records...")

	close(release)
	require.Eventually(t, func() bool {
		return strings.Contains(b.get("/patients?wait=1"), "Patient Records (2)")
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, up.Calls("/api/patients"))
	assert.Equal(t, 1, up.Calls("/api/doctors"))
	assert.NotContains(t, b.get("/patients?wait=1"), `http-equiv="refresh"`)
}

func TestPatients_EitherFetchFailing(t *testing.T) {
	for _, path := range []string{"/api/patients", "/api/doctors"} {
		t.Run(path, func(t *testing.T) {
			b, up, _ := newTestServer(t, nil, time.Second)
			up.Fail(path, http.StatusInternalServerError, "")

			body := b.get("/patients")
			assert.Equal(t, 1, strings.Count(body, `class="error-box"`))
			assert.Contains(t, body, screens.MsgDirectoryFailed)
			assert.NotContains(t, body, "patient-list-item")
			assert.NotContains(t, body, "Asha Verma")
		})
	}
}

func TestPatients_SelectTriggersOneLookup(t *testing.T) {
	b, up, rec := newTestServer(t, nil, time.Second)
	b.get("/patients")

	resp := b.post("/patients/10/select", nil)
	require.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, "/patients/10", resp.Header().Get("Location"))

	body := b.get("/patients/10")
	assert.Contains(t, body, `class="patient-list-item selected">Asha Verma`)
	assert.Contains(t, body, "Handled by: <strong>Dr. Rao</strong> (Ayurveda)")
	assert.Contains(t, body, "itching, redness")
	assert.Contains(t, body, "Vicharchika")
	assert.Contains(t, body, "EA80")
	assert.Contains(t, body, "Atopic eczema")
	assert.NotContains(t, body, "Translating code...")

	b.get("/patients/10")
	assert.Equal(t, []string{"NAM-D-102"}, up.MapCodes())

	evts := rec.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, events.ScreenPatients, evts[0].Screen)
	assert.Equal(t, "NAM-D-102", evts[0].Code)
}

func TestPatients_ReselectRetries(t *testing.T) {
	b, up, _ := newTestServer(t, nil, time.Second)
	b.get("/patients")

	b.post("/patients/10/select", nil)
	b.post("/patients/10/select", nil)
	assert.Equal(t, []string{"NAM-D-102", "NAM-D-102"}, up.MapCodes())
}

func TestPatients_UnmatchedDoctorAndNoSymptoms(t *testing.T) {
	b, _, _ := newTestServer(t, nil, time.Second)

	body := b.get("/patients/11")
	assert.Contains(t, body, "Ravi Kumar")
	assert.NotContains(t, body, "Handled by:")
	assert.Contains(t, body, "<strong>Symptoms:</strong> N/A")
	assert.Contains(t, body, "NAM-D-102")
	assert.Contains(t, body, "Dermatitis")
}

func TestPatients_MappingTransitionsFromLoading(t *testing.T) {
	release := make(chan struct{})
	b, up, _ := newTestServer(t, func(up *medsetutest.Upstream) screens.API {
		return gatedAPI{Client: medsetu.New(up.URL(), 5*time.Second), release: release}
	}, 10*time.Millisecond)

	b.get("/patients")
	b.post("/patients/10/select", nil)

	body := b.get("/patients/10")
	assert.Contains(t, body, "Translating code...")
	assert.Contains(t, body, `http-equiv="refresh"`)

	close(release)
	require.Eventually(t, func() bool {
		return strings.Contains(b.get("/patients/10"), "Atopic eczema")
	}, 2*time.Second, 10*time.Millisecond)

	body = b.get("/patients/10")
	assert.NotContains(t, body, "Translating code...")
	assert.NotContains(t, body, `http-equiv="refresh"`)
	assert.Equal(t, []string{"NAM-D-102"}, up.MapCodes())
}

func TestPatients_MappingFailure(t *testing.T) {
	b, up, _ := newTestServer(t, nil, time.Second)
	up.Fail("/api/map", http.StatusNotFound, "No mapping found for code NAM-D-102")

	body := b.get("/patients/10")
	assert.Contains(t, body, "Error: No mapping found for code NAM-D-102")
}

func TestPatients_UnknownPatient(t *testing.T) {
	b, _, _ := newTestServer(t, nil, time.Second)
	b.get("/patients")

	rec := b.do(http.MethodGet, "/patients/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Patient not found.")

	rec = b.post("/patients/404/select", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDoctors(t *testing.T) {
	b, _, _ := newTestServer(t, nil, time.Second)

	body := b.get("/doctors")
	assert.Equal(t, 2, strings.Count(body, `class="doctor-card"`))
	assert.Contains(t, body, "Dr. Rao")
	assert.Contains(t, body, "Siddha")
}

func TestDoctors_LoadingPlaceholder(t *testing.T) {
	release := make(chan struct{})
	b, up, _ := newTestServer(t, func(up *medsetutest.Upstream) screens.API {
		return slowListsAPI{Client: medsetu.New(up.URL(), 5*time.Second), release: release}
	}, 10*time.Millisecond)

	start := time.Now()
	body := b.get("/doctors")
	assert.True(t, time.Since(start) < time.Second)
	assert.Contains(t, body, "Loading Directory...")
	assert.Contains(t, body, `http-equiv="refresh"`)
	assert.NotContains(t, body, `class="doctor-card"`)

	close(release)
	require.Eventually(t, func() bool {
		return strings.Contains(b.get("/doctors?wait=1"), "Dr. Rao")
	}, 2*time.Second, 10*time.Millisecond)

	body = b.get("/doctors?wait=1")
	assert.NotContains(t, body, "Loading Directory...")
	assert.NotContains(t, body, `http-equiv="refresh"`)
	assert.Equal(t, 1, up.Calls("/api/doctors"))
}

func TestDoctors_Failure(t *testing.T) {
	b, up, _ := newTestServer(t, nil, time.Second)
	up.Fail("/api/doctors", http.StatusInternalServerError, "")

	body := b.get("/doctors")
	assert.Contains(t, body, screens.MsgDoctorsFailed)
	assert.NotContains(t, body, `class="doctor-card"`)
}
