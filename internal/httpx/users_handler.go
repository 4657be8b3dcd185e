package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-stock-orders/internal/orders"
)

// UsersHandler is read-only; accounts are managed outside this service.
type UsersHandler struct {
	Users *orders.UserService
	Log   zerolog.Logger
}

func (h *UsersHandler) Register(r chi.Router) {
	r.Get("/users", h.listUsers)
	r.Get("/users/{id}", h.getUser)
}

func (h *UsersHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	out, err := h.Users.List(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *UsersHandler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.Users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
