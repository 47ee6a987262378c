package mixptrack

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/mixptrack/horosafe"
	"github.com/hazyhaar/mixptrack/shield"
)

// RegisterHTTP mounts the admin API on r:
//
//	GET  /pages               attached pages and their counters
//	POST /pages               attach a page, body {"id", "url", "mode", "referrer"}
//	POST /pages/{id}/scan     run a pass now
//	POST /pages/{id}/send     fire data-mixp-send elements, body {"name": "..."}
//	GET  /journal             journaled calls, ?page_id=&limit=
func (t *Tracker) RegisterHTTP(r chi.Router) {
	r.Get("/pages", t.handlePages)
	r.Post("/pages", t.handleAttach)
	r.Post("/pages/{id}/scan", t.handleScan)
	r.Post("/pages/{id}/send", t.handleSend)
	r.Get("/journal", t.handleJournal)
}

func (t *Tracker) handlePages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, t.Sessions())
}

func (t *Tracker) handleAttach(w http.ResponseWriter, r *http.Request) {
	var pc PageConfig
	if err := json.NewDecoder(r.Body).Decode(&pc); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := horosafe.ValidateIdentifier(pc.ID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch pc.Mode {
	case "":
		pc.Mode = ModeAuto
	case ModeStatic, ModeBrowser, ModeAuto:
	default:
		http.Error(w, "mode must be static, browser or auto", http.StatusBadRequest)
		return
	}
	if !t.cfg.HTTP.AllowPrivate {
		if err := horosafe.ValidateURL(pc.URL); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if err := t.AttachPage(r.Context(), pc); err != nil {
		t.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "attached", "page_id": pc.ID})
}

func (t *Tracker) handleScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := t.Scan(r.Context(), id)
	if err != nil {
		t.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page_id": id, "bound": n})
}

func (t *Tracker) handleSend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "body must be {\"name\": \"...\"}", http.StatusBadRequest)
		return
	}
	n, err := t.Send(r.Context(), id, req.Name)
	if err != nil && n == 0 {
		t.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page_id": id, "name": req.Name, "sent": n})
}

func (t *Tracker) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	t.mu.Lock()
	hasJournal := t.journal != nil
	t.mu.Unlock()
	if !hasJournal {
		http.Error(w, "no journal configured", http.StatusServiceUnavailable)
		return
	}
	calls, err := t.Recent(r.Context(), r.URL.Query().Get("page_id"), limit)
	if err != nil {
		t.writeError(w, r, err)
		return
	}
	if calls == nil {
		calls = []Call{}
	}
	writeJSON(w, http.StatusOK, calls)
}

func (t *Tracker) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnknownPage):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, ErrAlreadyAttached):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	shield.GetLogger(r.Context()).Error("mixptrack: request failed", "error", err)
	http.Error(w, err.Error(), http.StatusBadGateway)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
