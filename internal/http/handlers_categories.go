package http

import (
	"net/http"

	"caixinha/internal/auth"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserIDFromContext(r.Context())
	cats, err := s.ledger.ListCategories(r.Context(), user, parseCategoryListOptions(r.URL.Query()))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	NewJSONResponse().Body(toCategoriesJSON(cats)).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserIDFromContext(r.Context())
	raw, err := decodeObject(w, r)
	if err != nil {
		Detail(http.StatusBadRequest, err.Error()).Write(w)
		return
	}
	name, _, errs := parseCategoryName(raw, true)
	if len(errs) > 0 {
		FieldErrors(errs).Write(w)
		return
	}

	c, err := s.ledger.CreateCategory(r.Context(), user, name)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(toCategoryJSON(c)).Write(w)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserIDFromContext(r.Context())
	id, ok := parseID(r)
	if !ok {
		NotFound().Write(w)
		return
	}
	c, err := s.ledger.GetCategory(r.Context(), user, id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	NewJSONResponse().Body(toCategoryJSON(c)).Write(w)
}

// handleRenameCategory serves PUT and PATCH; name is the only writable field,
// required on PUT.
func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserIDFromContext(r.Context())
	id, ok := parseID(r)
	if !ok {
		NotFound().Write(w)
		return
	}
	raw, err := decodeObject(w, r)
	if err != nil {
		Detail(http.StatusBadRequest, err.Error()).Write(w)
		return
	}
	name, present, errs := parseCategoryName(raw, r.Method == http.MethodPut)
	if len(errs) > 0 {
		FieldErrors(errs).Write(w)
		return
	}
	if !present {
		s.handleGetCategory(w, r)
		return
	}

	c, err := s.ledger.RenameCategory(r.Context(), user, id, name)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	s.invalidateSummaries(user)
	NewJSONResponse().Body(toCategoryJSON(c)).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserIDFromContext(r.Context())
	id, ok := parseID(r)
	if !ok {
		NotFound().Write(w)
		return
	}
	res, err := s.ledger.DeleteCategory(r.Context(), user, id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if res.WasGlobal {
		s.invalidateSummaries("")
	} else {
		s.invalidateSummaries(user)
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
