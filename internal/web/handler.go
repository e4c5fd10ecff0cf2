package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mtanaka/courseforge/internal/gatherings"
	"github.com/mtanaka/courseforge/internal/gatherings/storage"
	"github.com/mtanaka/courseforge/internal/platform/timeouts"
	"github.com/mtanaka/courseforge/internal/platform/webtoken"
	"github.com/mtanaka/courseforge/internal/web/templates"
)

// Form action names bound into XSRF tokens. A token minted for one action
// never authorizes another.
const (
	actionAdd    = "gathering-add"
	actionPut    = "gathering-put"
	actionDelete = "gathering-delete"
	actionStatus = "gathering-status"
)

// formTimeLayout matches datetime-local input values.
const formTimeLayout = "2006-01-02T15:04"

// displayTimeLayout formats schedule times on rendered pages.
const displayTimeLayout = "2006-01-02 15:04"

// Handler serves the student listing, the admin dashboard, and the REST
// item endpoint.
type Handler struct {
	service *gatherings.Service
	tokens  *webtoken.Manager
}

// NewHandler builds the HTTP handler for the web service.
func NewHandler(service *gatherings.Service, tokens *webtoken.Manager) (http.Handler, error) {
	if service == nil {
		return nil, errors.New("gathering service is required")
	}
	if tokens == nil {
		return nil, errors.New("token manager is required")
	}
	h := &Handler{service: service, tokens: tokens}

	mux := http.NewServeMux()
	mux.HandleFunc("/gatherings", h.handleStudentGatherings)
	mux.HandleFunc("/dashboard/gatherings", h.handleDashboard)
	mux.HandleFunc("/dashboard/gatherings/add", h.handleAdd)
	mux.HandleFunc("/dashboard/gatherings/edit", h.handleEdit)
	mux.HandleFunc("/dashboard/gatherings/delete", h.handleDelete)
	mux.HandleFunc("/dashboard/gatherings/status", h.handleStatus)
	mux.HandleFunc("/rest/gatherings/item", h.handleRESTItem)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, gatherings.StudentURL, http.StatusFound)
	})

	return withSession(tokens, withRequestTimeout(withTracing(mux))), nil
}

// withRequestTimeout bounds the work done for one request, including its
// storage calls.
func withRequestTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Request)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withTracing opens one span per request on the global tracer provider.
func withTracing(next http.Handler) http.Handler {
	tracer := otel.Tracer("courseforge/web")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleStudentGatherings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	loc, lang := resolveLocalizer(r)
	items, err := h.service.ListVisible(r.Context())
	if err != nil {
		h.renderError(w, r, http.StatusInternalServerError, "error.not_found")
		log.Printf("list gatherings: %v", err)
		return
	}
	views := make([]templates.GatheringView, 0, len(items))
	for _, item := range items {
		views = append(views, gatheringView(item))
	}
	meta := PageMeta{
		Title:       loc.Sprintf("gatherings.title"),
		Description: loc.Sprintf("gatherings.meta_description"),
		Canonical:   canonicalURL(r, gatherings.StudentURL),
		Lang:        lang,
	}
	if err := renderPage(r.Context(), w, http.StatusOK, meta, templates.StudentGatherings(loc, views)); err != nil {
		log.Printf("render gatherings page: %v", err)
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if !gatherings.CanEdit(r.Context()) {
		h.renderError(w, r, http.StatusForbidden, "error.forbidden")
		return
	}
	loc, lang := resolveLocalizer(r)
	items, err := h.service.List(r.Context())
	if err != nil {
		h.renderError(w, r, http.StatusInternalServerError, "error.not_found")
		log.Printf("list gatherings: %v", err)
		return
	}

	view := templates.DashboardView{Items: make([]templates.GatheringView, 0, len(items))}
	for _, item := range items {
		view.Items = append(view.Items, gatheringView(item))
	}
	var tokenErr error
	if view.AddToken, tokenErr = h.tokens.IssueAction(actionAdd); tokenErr == nil {
		if view.DeleteToken, tokenErr = h.tokens.IssueAction(actionDelete); tokenErr == nil {
			view.StatusToken, tokenErr = h.tokens.IssueAction(actionStatus)
		}
	}
	if tokenErr != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		log.Printf("issue dashboard tokens: %v", tokenErr)
		return
	}

	meta := PageMeta{
		Title: loc.Sprintf("dashboard.title"),
		Lang:  lang,
	}
	if err := renderPage(r.Context(), w, http.StatusOK, meta, templates.DashboardGatherings(loc, view)); err != nil {
		log.Printf("render dashboard page: %v", err)
	}
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if !gatherings.CanAdd(r.Context()) {
		h.renderError(w, r, http.StatusForbidden, "error.forbidden")
		return
	}
	if err := h.tokens.VerifyAction(r.PostFormValue("xsrf_token"), actionAdd); err != nil {
		h.renderError(w, r, http.StatusForbidden, "error.forbidden")
		return
	}
	gathering, err := h.service.Create(r.Context())
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		log.Printf("create gathering: %v", err)
		return
	}
	http.Redirect(w, r, "/dashboard/gatherings/edit?key="+gathering.ID, http.StatusSeeOther)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleEditForm(w, r)
	case http.MethodPost:
		h.handleEditSubmit(w, r)
	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleEditForm(w http.ResponseWriter, r *http.Request) {
	if !gatherings.CanEdit(r.Context()) {
		h.renderError(w, r, http.StatusForbidden, "error.forbidden")
		return
	}
	loc, lang := resolveLocalizer(r)
	gathering, err := h.service.Get(r.Context(), r.URL.Query().Get("key"))
	if err != nil {
		h.renderNotFoundOrError(w, r, err)
		return
	}
	putToken, err := h.tokens.IssueAction(actionPut)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		log.Printf("issue edit token: %v", err)
		return
	}
	view := templates.EditorView{
		Item:       gatheringView(gathering),
		StartValue: gathering.StartTime.UTC().Format(formTimeLayout),
		EndValue:   gathering.EndTime.UTC().Format(formTimeLayout),
		PutToken:   putToken,
	}
	meta := PageMeta{
		Title: loc.Sprintf("editor.title"),
		Lang:  lang,
	}
	if err := renderPage(r.Context(), w, http.StatusOK, meta, templates.GatheringEditor(loc, view)); err != nil {
		log.Printf("render editor page: %v", err)
	}
}

func (h *Handler) handleEditSubmit(w http.ResponseWriter, r *http.Request) {
	if !gatherings.CanEdit(r.Context()) {
		h.renderError(w, r, http.StatusForbidden, "error.forbidden")
		return
	}
	if err := h.tokens.VerifyAction(r.PostFormValue("xsrf_token"), actionPut); err != nil {
		h.renderError(w, r, http.StatusForbidden, "error.forbidden")
		return
	}
	gathering, err := h.service.Get(r.Context(), r.PostFormValue("key"))
	if err != nil {
		h.renderNotFoundOrError(w, r, err)
		return
	}
	if err := applyFormFields(&gathering, r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.Update(r.Context(), gathering); err != nil {
		h.renderNotFoundOrError(w, r, err)
		return
	}
	http.Redirect(w, r, "/dashboard/gatherings", http.StatusSeeOther)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if !gatherings.CanDelete(r.Context()) {
		h.renderError(w, r, http.StatusForbidden, "error.forbidden")
		return
	}
	if err := h.tokens.VerifyAction(r.PostFormValue("xsrf_token"), actionDelete); err != nil {
		h.renderError(w, r, http.StatusForbidden, "error.forbidden")
		return
	}
	if err := h.service.Delete(r.Context(), r.PostFormValue("key")); err != nil {
		h.renderNotFoundOrError(w, r, err)
		return
	}
	http.Redirect(w, r, "/dashboard/gatherings", http.StatusSeeOther)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if !gatherings.CanEdit(r.Context()) {
		h.renderError(w, r, http.StatusForbidden, "error.forbidden")
		return
	}
	if err := h.tokens.VerifyAction(r.PostFormValue("xsrf_token"), actionStatus); err != nil {
		h.renderError(w, r, http.StatusForbidden, "error.forbidden")
		return
	}
	isDraft := r.PostFormValue("set_draft") == "1"
	if err := h.service.SetDraftStatus(r.Context(), r.PostFormValue("key"), isDraft); err != nil {
		h.renderNotFoundOrError(w, r, err)
		return
	}
	http.Redirect(w, r, "/dashboard/gatherings", http.StatusSeeOther)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, statusCode int, key string) {
	loc, lang := resolveLocalizer(r)
	meta := PageMeta{Lang: lang}
	if err := renderPage(r.Context(), w, statusCode, meta, templates.ErrorMessage(loc, key)); err != nil {
		log.Printf("render error page: %v", err)
	}
}

func (h *Handler) renderNotFoundOrError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		h.renderError(w, r, http.StatusNotFound, "error.not_found")
		return
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	log.Printf("gathering request failed: %v", err)
}

func applyFormFields(gathering *storage.Gathering, r *http.Request) error {
	if title := strings.TrimSpace(r.PostFormValue("title")); title != "" {
		gathering.Title = title
	}
	gathering.HTML = r.PostFormValue("html")
	if raw := strings.TrimSpace(r.PostFormValue("start_time")); raw != "" {
		start, err := time.ParseInLocation(formTimeLayout, raw, time.UTC)
		if err != nil {
			return errors.New("invalid start time")
		}
		gathering.StartTime = start
	}
	if raw := strings.TrimSpace(r.PostFormValue("end_time")); raw != "" {
		end, err := time.ParseInLocation(formTimeLayout, raw, time.UTC)
		if err != nil {
			return errors.New("invalid end time")
		}
		gathering.EndTime = end
	}
	return nil
}

func gatheringView(gathering storage.Gathering) templates.GatheringView {
	return templates.GatheringView{
		ID:       gathering.ID,
		Title:    gathering.Title,
		BodyHTML: gathering.HTML,
		Starts:   gathering.StartTime.UTC().Format(displayTimeLayout),
		Ends:     gathering.EndTime.UTC().Format(displayTimeLayout),
		IsDraft:  gathering.IsDraft,
	}
}

func canonicalURL(r *http.Request, path string) string {
	scheme := "https"
	if r != nil && r.TLS == nil {
		scheme = "http"
	}
	host := ""
	if r != nil {
		host = r.Host
	}
	if host == "" {
		return path
	}
	return scheme + "://" + host + path
}

// restEnvelope is the JSON wrapper for the item endpoint.
type restEnvelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// restGathering is the wire form of one gathering on the item endpoint.
type restGathering struct {
	Key       string `json:"key"`
	Title     string `json:"title"`
	HTML      string `json:"html"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsDraft   bool   `json:"is_draft"`
}

// restItemPayload is the GET payload: the gathering plus a token the caller
// echoes back on PUT and DELETE.
type restItemPayload struct {
	Gathering restGathering `json:"gathering"`
	XSRFToken string        `json:"xsrf_token"`
}

// restPutRequest is the PUT body for the item endpoint.
type restPutRequest struct {
	Key       string        `json:"key"`
	XSRFToken string        `json:"xsrf_token"`
	Payload   restGathering `json:"payload"`
}

func (h *Handler) handleRESTItem(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleRESTGet(w, r)
	case http.MethodPut:
		h.handleRESTPut(w, r)
	case http.MethodDelete:
		h.handleRESTDelete(w, r)
	default:
		writeEnvelope(w, restEnvelope{Status: http.StatusMethodNotAllowed, Message: "method not allowed"})
	}
}

func (h *Handler) handleRESTGet(w http.ResponseWriter, r *http.Request) {
	if !gatherings.CanEdit(r.Context()) {
		writeEnvelope(w, restEnvelope{Status: http.StatusForbidden, Message: "access denied"})
		return
	}
	gathering, err := h.service.Get(r.Context(), r.URL.Query().Get("key"))
	if err != nil {
		writeRESTError(w, err)
		return
	}
	token, err := h.tokens.IssueAction(actionPut)
	if err != nil {
		writeEnvelope(w, restEnvelope{Status: http.StatusInternalServerError, Message: "internal error"})
		log.Printf("issue rest token: %v", err)
		return
	}
	payload, err := json.Marshal(restItemPayload{
		Gathering: restGatheringFromStorage(gathering),
		XSRFToken: token,
	})
	if err != nil {
		writeEnvelope(w, restEnvelope{Status: http.StatusInternalServerError, Message: "internal error"})
		return
	}
	writeEnvelope(w, restEnvelope{Status: http.StatusOK, Message: "success", Payload: payload})
}

func (h *Handler) handleRESTPut(w http.ResponseWriter, r *http.Request) {
	if !gatherings.CanEdit(r.Context()) {
		writeEnvelope(w, restEnvelope{Status: http.StatusForbidden, Message: "access denied"})
		return
	}
	var req restPutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, restEnvelope{Status: http.StatusBadRequest, Message: "malformed request"})
		return
	}
	if err := h.tokens.VerifyAction(req.XSRFToken, actionPut); err != nil {
		writeEnvelope(w, restEnvelope{Status: http.StatusForbidden, Message: "bad xsrf token"})
		return
	}
	gathering, err := h.service.Get(r.Context(), req.Key)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	if err := applyRESTFields(&gathering, req.Payload); err != nil {
		writeEnvelope(w, restEnvelope{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}
	if err := h.service.Update(r.Context(), gathering); err != nil {
		writeRESTError(w, err)
		return
	}
	writeEnvelope(w, restEnvelope{Status: http.StatusOK, Message: "saved"})
}

func (h *Handler) handleRESTDelete(w http.ResponseWriter, r *http.Request) {
	if !gatherings.CanDelete(r.Context()) {
		writeEnvelope(w, restEnvelope{Status: http.StatusForbidden, Message: "access denied"})
		return
	}
	if err := h.tokens.VerifyAction(r.URL.Query().Get("xsrf_token"), actionDelete); err != nil {
		writeEnvelope(w, restEnvelope{Status: http.StatusForbidden, Message: "bad xsrf token"})
		return
	}
	if err := h.service.Delete(r.Context(), r.URL.Query().Get("key")); err != nil {
		writeRESTError(w, err)
		return
	}
	writeEnvelope(w, restEnvelope{Status: http.StatusOK, Message: "deleted"})
}

func applyRESTFields(gathering *storage.Gathering, payload restGathering) error {
	if title := strings.TrimSpace(payload.Title); title != "" {
		gathering.Title = title
	}
	gathering.HTML = payload.HTML
	if payload.StartTime != "" {
		start, err := time.Parse(time.RFC3339, payload.StartTime)
		if err != nil {
			return errors.New("invalid start time")
		}
		gathering.StartTime = start.UTC()
	}
	if payload.EndTime != "" {
		end, err := time.Parse(time.RFC3339, payload.EndTime)
		if err != nil {
			return errors.New("invalid end time")
		}
		gathering.EndTime = end.UTC()
	}
	gathering.IsDraft = payload.IsDraft
	return nil
}

func restGatheringFromStorage(gathering storage.Gathering) restGathering {
	return restGathering{
		Key:       gathering.ID,
		Title:     gathering.Title,
		HTML:      gathering.HTML,
		StartTime: gathering.StartTime.UTC().Format(time.RFC3339),
		EndTime:   gathering.EndTime.UTC().Format(time.RFC3339),
		IsDraft:   gathering.IsDraft,
	}
}

func writeRESTError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeEnvelope(w, restEnvelope{Status: http.StatusNotFound, Message: "not found"})
		return
	}
	writeEnvelope(w, restEnvelope{Status: http.StatusInternalServerError, Message: "internal error"})
	log.Printf("rest gathering request failed: %v", err)
}

func writeEnvelope(w http.ResponseWriter, envelope restEnvelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(envelope.Status)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		log.Printf("encode rest envelope: %v", err)
	}
}
