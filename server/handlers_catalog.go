package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"ad_copy_planner/catalog"
	"ad_copy_planner/publisher"
)

// planView 在计划记录上附带填写进度。
type planView struct {
	catalog.Plan
	Progress int `json:"progress"`
}

func viewOf(p catalog.Plan) planView {
	return planView{Plan: p, Progress: p.Progress()}
}

func (s *Server) handleAdvertiserList(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.ListAdvertisers(r.Context(), tenantFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []catalog.Advertiser{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"advertisers": list})
}

func (s *Server) handleAdvertiserGet(w http.ResponseWriter, r *http.Request) {
	adv, err := s.catalog.GetAdvertiser(r.Context(), tenantFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, adv)
}

// handleAdvertiserSave 处理 POST（新建）与 PUT /{id}（更新）。
func (s *Server) handleAdvertiserSave(w http.ResponseWriter, r *http.Request) {
	var adv catalog.Advertiser
	if err := decodeJSON(r, &adv); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	adv.ID = r.PathValue("id")
	adv.TenantID = tenantFrom(r.Context())
	saved, err := s.catalog.SaveAdvertiser(r.Context(), adv)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	status := http.StatusOK
	if adv.ID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

func (s *Server) handleAdvertiserDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteAdvertiser(r.Context(), tenantFrom(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlanList(w http.ResponseWriter, r *http.Request) {
	plans, err := s.catalog.ListPlans(r.Context(), tenantFrom(r.Context()), r.URL.Query().Get("advertiser_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		views = append(views, viewOf(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": views})
}

func (s *Server) handlePlanGet(w http.ResponseWriter, r *http.Request) {
	plan, err := s.catalog.GetPlan(r.Context(), tenantFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(plan))
}

func (s *Server) handlePlanSave(w http.ResponseWriter, r *http.Request) {
	var plan catalog.Plan
	if err := decodeJSON(r, &plan); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tenant := tenantFrom(r.Context())
	plan.ID = r.PathValue("id")
	plan.TenantID = tenant
	// 计划必须挂在本租户的广告主下。
	if plan.AdvertiserID != "" {
		if _, err := s.catalog.GetAdvertiser(r.Context(), tenant, plan.AdvertiserID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	saved, err := s.catalog.SavePlan(r.Context(), plan)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	status := http.StatusOK
	if plan.ID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, viewOf(saved))
}

func (s *Server) handlePlanDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeletePlan(r.Context(), tenantFrom(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlanExport(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	plan, err := s.catalog.GetPlan(r.Context(), tenant, r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	adv, err := s.catalog.GetAdvertiser(r.Context(), tenant, plan.AdvertiserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	html, err := publisher.RenderPlanHTML(plan, adv)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(html)); err != nil {
		log.Warn().Err(err).Str("plan", plan.ID).Msg("failed to write plan export")
	}
}
