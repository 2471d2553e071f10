/*
render.go - Response writing and domain error translation

PURPOSE:
  Maps domain errors onto the HTTP error taxonomy:

    FieldErrors (validation)   400  {"field": ["message", ...]}
    PermissionError (role)     403  {"detail": "..."}
    ErrNotFound / out of scope 404  {"detail": "Not found."}
    ErrInUse (delete blocked)  409  {"detail": "..."}
    anything else              500  {"detail": "Internal server error."}

  Out-of-scope rows surface as 404, never 403: the scoping rules must not
  leak the existence of rows the actor cannot see.

SEE ALSO:
  - tracker/service.go: The error taxonomy's producers
  - hierarchy/errors.go: FieldErrors
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warp/initiative-engine/hierarchy"
	"github.com/warp/initiative-engine/orgdata"
	"github.com/warp/initiative-engine/tracker"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// writeError translates a domain error into its HTTP form.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if fields, ok := hierarchy.AsFieldErrors(err); ok {
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}

	var permErr *tracker.PermissionError
	switch {
	case errors.As(err, &permErr):
		writeDetail(w, http.StatusForbidden, permErr.Detail)
	case errors.Is(err, tracker.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, tracker.ErrInUse):
		writeDetail(w, http.StatusConflict, "Cannot delete: this entry is still referenced by other records.")
	case errors.Is(err, orgdata.ErrDuplicateName):
		fields := hierarchy.FieldErrors{}
		fields.Add("name", "An entry with this name already exists.")
		writeJSON(w, http.StatusBadRequest, fields)
	default:
		h.log.WithError(err).Error("unhandled error")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
	}
}
