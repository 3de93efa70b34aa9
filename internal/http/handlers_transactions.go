package http

import (
	"net/http"

	"caixinha/internal/auth"
)

// handleListTransactions returns a plain array, or a {count, results} page
// when limit or offset is given.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserIDFromContext(r.Context())
	filter, paged, errs := parseTransactionFilter(r.URL.Query())
	if len(errs) > 0 {
		FieldErrors(errs).Write(w)
		return
	}

	page, err := s.ledger.ListTransactions(r.Context(), user, filter)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if paged {
		NewJSONResponse().Body(transactionPageJSON{
			Count:   page.Count,
			Results: toTransactionsJSON(page.Results),
		}).Write(w)
		return
	}
	NewJSONResponse().Body(toTransactionsJSON(page.Results)).Write(w)
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserIDFromContext(r.Context())
	q := r.URL.Query()
	filter, _, errs := parseTransactionFilter(q)
	if len(errs) > 0 {
		FieldErrors(errs).Write(w)
		return
	}

	txs, err := s.ledger.RecentTransactions(r.Context(), user, filter, parseRecentLimit(q))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	NewJSONResponse().Body(toTransactionsJSON(txs)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserIDFromContext(r.Context())
	raw, err := decodeObject(w, r)
	if err != nil {
		Detail(http.StatusBadRequest, err.Error()).Write(w)
		return
	}
	patch, errs := parseTransactionFields(raw, true)
	if len(errs) > 0 {
		FieldErrors(errs).Write(w)
		return
	}

	tx, err := s.ledger.CreateTransaction(r.Context(), user, inputFromPatch(patch))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	s.invalidateSummaries(user)
	NewJSONResponse().Status(http.StatusCreated).Body(toTransactionJSON(tx)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserIDFromContext(r.Context())
	id, ok := parseID(r)
	if !ok {
		NotFound().Write(w)
		return
	}
	tx, err := s.ledger.GetTransaction(r.Context(), user, id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	NewJSONResponse().Body(toTransactionJSON(tx)).Write(w)
}

func (s *Server) handleReplaceTransaction(w http.ResponseWriter, r *http.Request) {
	s.updateTransaction(w, r, true)
}

func (s *Server) handlePatchTransaction(w http.ResponseWriter, r *http.Request) {
	s.updateTransaction(w, r, false)
}

// updateTransaction applies PUT (type, amount and date required) or PATCH.
// An absent category keeps the current one; an explicit null rebinds to the
// fallback.
func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request, replace bool) {
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
	patch, errs := parseTransactionFields(raw, replace)
	if len(errs) > 0 {
		FieldErrors(errs).Write(w)
		return
	}

	tx, err := s.ledger.UpdateTransaction(r.Context(), user, id, patch)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	s.invalidateSummaries(user)
	NewJSONResponse().Body(toTransactionJSON(tx)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserIDFromContext(r.Context())
	id, ok := parseID(r)
	if !ok {
		NotFound().Write(w)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), user, id); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	s.invalidateSummaries(user)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleSummary serves the monthly overview. A missing or malformed month
// selects the current one.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserIDFromContext(r.Context())
	year, month := parseSummaryMonth(r.URL.Query(), s.now())
	key := summaryKey(user, year, month)

	if s.summaryTTL > 0 {
		if cached, ok := s.summaries.Get(key); ok {
			NewJSONResponse().Header("X-Cache", "HIT").Body(toSummaryJSON(cached)).Write(w)
			return
		}
	}

	summary, err := s.ledger.Summarize(r.Context(), user, year, month)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if s.summaryTTL > 0 {
		s.summaries.Set(key, summary)
	}
	NewJSONResponse().Header("X-Cache", "MISS").Body(toSummaryJSON(summary)).Write(w)
}

