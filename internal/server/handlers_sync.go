package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/binarjoin/syncengine/internal/utils"
	"github.com/binarjoin/syncengine/models"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created, token, err := h.auth.Register(r.Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, ErrLoginAlreadyExists):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, ErrInvalidCredentials):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.log.Err(err).Msg("register failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, http.StatusOK, created)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	stored, token, err := h.auth.Login(r.Context(), user)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		h.log.Err(err).Msg("login failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) fullBackup(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	data, err := h.records.FullBackup(r.Context(), userID)
	if err != nil {
		h.log.Err(err).Int64("userID", userID).Msg("full backup failed")
		writeJSON(w, http.StatusInternalServerError, models.FullBackupResponse{
			Success: false,
			Error:   "backup unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, models.FullBackupResponse{Success: true, Data: data})
}

func (h *Handler) batch(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	results, err := h.records.ApplyBatch(r.Context(), userID, req.Operations)
	if err != nil {
		h.log.Err(err).Int64("userID", userID).Msg("batch apply failed")
		writeJSON(w, http.StatusInternalServerError, models.BatchResponse{
			Success: false,
			Error:   "batch apply failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, models.BatchResponse{Success: true, Results: results})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
