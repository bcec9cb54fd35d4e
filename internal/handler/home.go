package handler

import "net/http"

// Home renders the landing page.
func (h *BaseHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "home.html", page{Title: "Galvan AI"})
}
