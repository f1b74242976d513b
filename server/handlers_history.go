package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"ad_copy_planner/history"
	"ad_copy_planner/publisher"
)

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	entries := s.history.List(tenantFrom(r.Context()))
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Delete(tenantFrom(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	entry, err := s.history.Get(tenantFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="variations-%s.csv"`, entry.ID))
	if err := publisher.WriteVariationsCSV(w, entry); err != nil {
		log.Error().Err(err).Str("entry", entry.ID).Msg("failed to write history csv")
	}
}
