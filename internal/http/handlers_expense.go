package http

import (
	"net/http"

	"fintrack/internal/core"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	dr, err := parseDateRange(r, s.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	txs, err := s.ledger.ListTransactions(r.Context(), dr)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// decodeTransaction reads a transaction body; server-derived fields are
// ignored.
func decodeTransaction(w http.ResponseWriter, r *http.Request) (core.Transaction, error) {
	var tx core.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = 0
	tx.CategoryName, tx.CategoryIcon, tx.CategoryColor = "", "", ""
	return tx, nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	tx, err := decodeTransaction(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	created, err := s.ledger.CreateTransaction(r.Context(), tx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	tx, err := decodeTransaction(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	tx.ID = id
	updated, err := s.ledger.UpdateTransaction(r.Context(), tx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody{OK: true})
}

func (s *Server) handleStatsSummary(w http.ResponseWriter, r *http.Request) {
	dr, err := parseDateRange(r, s.now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sum, err := s.ledger.Summary(r.Context(), dr)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var c core.Category
	if err := decodeJSON(w, r, &c); err != nil {
		writeServiceError(w, r, err)
		return
	}
	c.ID = 0
	created, err := s.ledger.CreateCategory(r.Context(), c)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var c core.Category
	if err := decodeJSON(w, r, &c); err != nil {
		writeServiceError(w, r, err)
		return
	}
	c.ID = id
	updated, err := s.ledger.UpdateCategory(r.Context(), c)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := s.ledger.DeleteCategory(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody{OK: true})
}
