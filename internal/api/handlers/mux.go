package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// pathParam reads a gorilla/mux path variable, isolated to its own file so
// the rest of the package only depends on net/http.
func pathParam(r *http.Request, name string) (string, bool) {
	v, ok := mux.Vars(r)[name]
	return v, ok && v != ""
}
