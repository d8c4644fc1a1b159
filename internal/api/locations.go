package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/noolite-core/internal/bulb"
)

// locationView is one entry of GET /locations/.
type locationView struct {
	Name         string      `json:"name"`
	BulbsListURL string      `json:"bulbs_list_url"`
	Bulbs        []bulb.Bulb `json:"bulbs"`
}

// handleListLocations groups bulbs by location, in order of first
// appearance.
func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	groups, err := s.registry.ByLocation(r.Context())
	if err != nil {
		s.logger.Error("failed to group bulbs by location", "error", err)
		writeInternalError(w, "failed to list locations")
		return
	}

	views := make([]locationView, 0, len(groups))
	for _, g := range groups {
		views = append(views, locationView{
			Name:         g.Name,
			BulbsListURL: "/location/" + url.PathEscape(g.Name) + "/bulbs",
			Bulbs:        g.Bulbs,
		})
	}
	writeSuccess(w, views)
}

// handleLocationBulbs returns the bulbs in one location.
func (s *Server) handleLocationBulbs(w http.ResponseWriter, r *http.Request) {
	location, err := url.PathUnescape(chi.URLParam(r, "location"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, ReasonBadRequest, "invalid location")
		return
	}

	bulbs, err := s.registry.InLocation(r.Context(), location)
	if err != nil {
		s.logger.Error("failed to list bulbs in location", "location", location, "error", err)
		writeInternalError(w, "failed to list bulbs")
		return
	}
	writeSuccess(w, bulbs)
}
