package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MimeLyc/torznab-title-mapper/internal/mapping"
	"github.com/MimeLyc/torznab-title-mapper/internal/service"
	"github.com/MimeLyc/torznab-title-mapper/pkg/icron"
	"github.com/MimeLyc/torznab-title-mapper/pkg/log"
)

const reloadedMessage = "Mappings reloaded and updated with seriesIds."

func (s *Server) handleTorznab(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	log.Debug("Received query params: %v", params)

	resp, err := s.proxy.Handle(r.Context(), params)
	if err != nil {
		writeProxyError(w, err)
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = service.FeedContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Body)
}

// writeProxyError answers Torznab clients in plain text.
func writeProxyError(w http.ResponseWriter, err error) {
	status := service.StatusCode(err)

	msg := "Proxy Error"
	var proxyErr *service.ProxyError
	if errors.As(err, &proxyErr) {
		switch proxyErr.Type {
		case service.ErrMappingNotFound:
			msg = proxyErr.Message
		case service.ErrMissingParameter:
			msg = "Bad Request: " + proxyErr.Message
		default:
			msg = "Proxy Error: " + proxyErr.Message
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func (s *Server) handleReloadMappings(w http.ResponseWriter, r *http.Request) {
	// the reply does not depend on the outcome; failures are logged by the reconciler
	if _, err := s.reconciler.Reload(r.Context(), service.TriggerReload); err != nil {
		log.Warn("Reload finished with error: %v", err)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(reloadedMessage))
}

type mappingResponse struct {
	CanonicalTitle string   `json:"canonical_title"`
	SourceTitle    string   `json:"source_title"`
	Aliases        []string `json:"aliases"`
	CatalogID      *int64   `json:"catalog_id"`
	SourceLanguage string   `json:"source_language"`
}

func (s *Server) handleListMappings(w http.ResponseWriter, r *http.Request) {
	all := s.mappings.All()
	ret := make([]mappingResponse, 0, len(all))
	for _, m := range all {
		ret = append(ret, mappingResponse{
			CanonicalTitle: m.CanonicalTitle,
			SourceTitle:    m.SourceTitle,
			Aliases:        m.Aliases,
			CatalogID:      m.CatalogID,
			SourceLanguage: mapping.DetectLanguage(m.SourceTitle).String(),
		})
	}
	writeJSON(w, http.StatusOK, ret)
}

type scheduleResponse struct {
	Cron          string     `json:"cron"`
	Next          *time.Time `json:"next,omitempty"`
	Last          *time.Time `json:"last,omitempty"`
	TimeUntilNext string     `json:"time_until_next,omitempty"`
}

type statusResponse struct {
	Mappings   int                   `json:"mappings"`
	Unresolved int                   `json:"unresolved"`
	Schedule   scheduleResponse      `json:"schedule"`
	LastRun    *mapping.ReconcileRun `json:"last_run,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	all := s.mappings.All()
	resp := statusResponse{
		Mappings: len(all),
		Schedule: scheduleResponse{Cron: s.reconciler.CronExpr()},
	}
	for _, m := range all {
		if !m.HasCatalogID() {
			resp.Unresolved++
		}
	}

	if expr := s.reconciler.CronExpr(); expr != "" {
		info, err := icron.GetTriggerInfo(expr, s.now())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Schedule.Next = &info.Next
		if !info.Last.IsZero() {
			resp.Schedule.Last = &info.Last
		}
		resp.Schedule.TimeUntilNext = info.TimeUntilNext.Round(time.Second).String()
	}

	if run, ok := s.reconciler.LastRun(); ok {
		resp.LastRun = &run
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReconcileRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.reconciler.RecentRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
