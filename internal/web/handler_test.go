package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mtanaka/courseforge/internal/gatherings"
	"github.com/mtanaka/courseforge/internal/gatherings/storage/sqlite"
	"github.com/mtanaka/courseforge/internal/platform/webtoken"
)

var handlerTestSecret = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	handler http.Handler
	service *gatherings.Service
	tokens  *webtoken.Manager
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	service, err := gatherings.NewService(store, store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	tokens, err := webtoken.NewManager(handlerTestSecret)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	handler, err := NewHandler(service, tokens)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return testEnv{handler: handler, service: service, tokens: tokens}
}

func (env testEnv) adminCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, err := env.tokens.IssueSession("admin-1")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return &http.Cookie{Name: sessionCookieName, Value: token}
}

func (env testEnv) postForm(t *testing.T, path string, form url.Values, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if admin {
		req.AddCookie(env.adminCookie(t))
	}
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	return rr
}

func (env testEnv) get(t *testing.T, path string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if admin {
		req.AddCookie(env.adminCookie(t))
	}
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	return rr
}

func (env testEnv) actionToken(t *testing.T, action string) string {
	t.Helper()
	token, err := env.tokens.IssueAction(action)
	if err != nil {
		t.Fatalf("issue action token: %v", err)
	}
	return token
}

func TestRootRedirectsToGatherings(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rr := env.get(t, "/", false)
	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusFound)
	}
	if got := rr.Header().Get("Location"); got != gatherings.StudentURL {
		t.Fatalf("location = %q, want %q", got, gatherings.StudentURL)
	}
}

func TestStudentListingHidesDrafts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := t.Context()
	draft, err := env.service.Create(ctx)
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	draft.Title = "Secret Draft"
	if err := env.service.Update(ctx, draft); err != nil {
		t.Fatalf("update draft: %v", err)
	}
	published, err := env.service.Create(ctx)
	if err != nil {
		t.Fatalf("create published: %v", err)
	}
	published.Title = "Open Office Hours"
	published.IsDraft = false
	if err := env.service.Update(ctx, published); err != nil {
		t.Fatalf("publish: %v", err)
	}

	rr := env.get(t, "/gatherings", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Open Office Hours") {
		t.Fatalf("published gathering missing: %s", body)
	}
	if strings.Contains(body, "Secret Draft") {
		t.Fatalf("draft leaked to students: %s", body)
	}
}

func TestDashboardRequiresAdmin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if rr := env.get(t, "/dashboard/gatherings", false); rr.Code != http.StatusForbidden {
		t.Fatalf("anonymous status = %d, want %d", rr.Code, http.StatusForbidden)
	}
	rr := env.get(t, "/dashboard/gatherings", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "/dashboard/gatherings/add") {
		t.Fatalf("dashboard missing add form: %s", rr.Body.String())
	}
}

func TestAddCreatesDraftAndRedirectsToEditor(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	form := url.Values{"xsrf_token": {env.actionToken(t, actionAdd)}}
	rr := env.postForm(t, "/dashboard/gatherings/add", form, true)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusSeeOther)
	}
	location := rr.Header().Get("Location")
	if !strings.HasPrefix(location, "/dashboard/gatherings/edit?key=") {
		t.Fatalf("location = %q, want editor redirect", location)
	}

	items, err := env.service.List(t.Context())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || !items[0].IsDraft || items[0].Title != gatherings.DefaultTitle {
		t.Fatalf("items = %+v, want one default draft", items)
	}
}

func TestAddRejectsBadToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	form := url.Values{"xsrf_token": {"garbage"}}
	if rr := env.postForm(t, "/dashboard/gatherings/add", form, true); rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestAddRejectsTokenForOtherAction(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	form := url.Values{"xsrf_token": {env.actionToken(t, actionDelete)}}
	if rr := env.postForm(t, "/dashboard/gatherings/add", form, true); rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestEditSubmitUpdatesGathering(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	gathering, err := env.service.Create(t.Context())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	form := url.Values{
		"xsrf_token": {env.actionToken(t, actionPut)},
		"key":        {gathering.ID},
		"title":      {"Study Group"},
		"html":       {"<p>bring notes</p>"},
		"start_time": {"2026-09-01T18:00"},
		"end_time":   {"2026-09-01T19:00"},
	}
	rr := env.postForm(t, "/dashboard/gatherings/edit", form, true)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusSeeOther, rr.Body.String())
	}

	updated, err := env.service.Get(t.Context(), gathering.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.Title != "Study Group" || updated.HTML != "<p>bring notes</p>" {
		t.Fatalf("updated = %+v", updated)
	}
	if got := updated.StartTime.UTC().Format(formTimeLayout); got != "2026-09-01T18:00" {
		t.Fatalf("start = %q", got)
	}
}

func TestStatusPublishRecordsNews(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	gathering, err := env.service.Create(t.Context())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	form := url.Values{
		"xsrf_token": {env.actionToken(t, actionStatus)},
		"key":        {gathering.ID},
		"set_draft":  {"0"},
	}
	if rr := env.postForm(t, "/dashboard/gatherings/status", form, true); rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusSeeOther)
	}

	items, err := env.service.News(t.Context(), 10)
	if err != nil {
		t.Fatalf("news: %v", err)
	}
	if len(items) != 1 || items[0].ResourceKey != gatherings.ResourceKey(gathering.ID) {
		t.Fatalf("news = %+v, want one item for gathering", items)
	}
}

func TestDeleteRemovesGathering(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	gathering, err := env.service.Create(t.Context())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	form := url.Values{
		"xsrf_token": {env.actionToken(t, actionDelete)},
		"key":        {gathering.ID},
	}
	if rr := env.postForm(t, "/dashboard/gatherings/delete", form, true); rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusSeeOther)
	}
	items, err := env.service.List(t.Context())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("items = %d, want 0", len(items))
	}
}

func TestRESTItemRoundTrip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	gathering, err := env.service.Create(t.Context())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rr := env.get(t, "/rest/gatherings/item?key="+gathering.ID, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d: %s", rr.Code, rr.Body.String())
	}
	var envelope restEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Status != http.StatusOK || envelope.Message != "success" {
		t.Fatalf("envelope = %+v", envelope)
	}
	var payload restItemPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Gathering.Key != gathering.ID || payload.XSRFToken == "" {
		t.Fatalf("payload = %+v", payload)
	}

	putBody, err := json.Marshal(restPutRequest{
		Key:       gathering.ID,
		XSRFToken: payload.XSRFToken,
		Payload: restGathering{
			Title:     "Updated via REST",
			HTML:      "<p>rest</p>",
			StartTime: "2026-09-02T18:00:00Z",
			EndTime:   "2026-09-02T19:00:00Z",
			IsDraft:   false,
		},
	})
	if err != nil {
		t.Fatalf("marshal put: %v", err)
	}
	putReq := httptest.NewRequest(http.MethodPut, "/rest/gatherings/item", strings.NewReader(string(putBody)))
	putReq.AddCookie(env.adminCookie(t))
	putRR := httptest.NewRecorder()
	env.handler.ServeHTTP(putRR, putReq)
	if putRR.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", putRR.Code, putRR.Body.String())
	}

	updated, err := env.service.Get(t.Context(), gathering.ID)
	if err != nil {
		t.Fatalf("get updated: %v", err)
	}
	if updated.Title != "Updated via REST" || updated.IsDraft {
		t.Fatalf("updated = %+v", updated)
	}

	deleteToken := env.actionToken(t, actionDelete)
	deleteReq := httptest.NewRequest(http.MethodDelete,
		"/rest/gatherings/item?key="+gathering.ID+"&xsrf_token="+url.QueryEscape(deleteToken), nil)
	deleteReq.AddCookie(env.adminCookie(t))
	deleteRR := httptest.NewRecorder()
	env.handler.ServeHTTP(deleteRR, deleteReq)
	if deleteRR.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", deleteRR.Code, deleteRR.Body.String())
	}
}

func TestRESTItemForbiddenForStudents(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rr := env.get(t, "/rest/gatherings/item?key=missing", false)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
	var envelope restEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Status != http.StatusForbidden {
		t.Fatalf("envelope status = %d", envelope.Status)
	}
}

func TestRESTItemNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rr := env.get(t, "/rest/gatherings/item?key=missing", true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestSessionCookieWithBadSignatureIsAnonymous(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/dashboard/gatherings", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "not-a-token"})
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}
