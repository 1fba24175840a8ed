package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/producao/internal/production"
)

func (s *server) handleBomList(w http.ResponseWriter, r *http.Request) {
	boms, err := s.store.ListBoms(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]production.BomAPIRecord, 0, len(boms))
	for _, b := range boms {
		out = append(out, production.BomToAPI(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleBomGet(w http.ResponseWriter, r *http.Request) {
	bom, err := s.store.GetBom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, production.BomToAPI(bom))
}

func (s *server) handleBomLatest(w http.ResponseWriter, r *http.Request) {
	bom, err := s.store.LatestBomForProduct(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, production.BomToAPI(bom))
}

func (s *server) handleBomCreate(w http.ResponseWriter, r *http.Request) {
	var rec production.BomAPIRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}

	mapped, err := production.MapBom(rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := production.ValidateBom(mapped.BomDefinition); err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.store.CreateBom(r.Context(), mapped.BomDefinition)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, production.BomToAPI(created))
}

// handleBomTotals computes the totals of a posted BOM without storing it.
func (s *server) handleBomTotals(w http.ResponseWriter, r *http.Request) {
	var rec production.BomAPIRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}

	mapped, err := production.MapBom(rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, production.TotalsToAPI(mapped.Totals()))
}

func (s *server) handleBomUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var rec production.BomAPIRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.writeError(w, r, err)
		return
	}

	existing, err := s.store.GetBom(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	def, err := production.ApplyBomPatch(existing.BomDefinition, rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !rec.MarginAchieved.Set {
		// recomputed from the patched lines on read
		def.MarginAchieved = 0
	}
	if err := production.ValidateBom(def); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.store.UpdateBom(r.Context(), id, def)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, production.BomToAPI(updated))
}

func (s *server) handleBomDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteBom(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
