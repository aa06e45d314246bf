package middleware

import (
	"net/http"

	"github.com/driftline/matchmaker/internal/httputil"
)

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}
