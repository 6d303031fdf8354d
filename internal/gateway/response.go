package gateway

import (
	"net/http"

	"github.com/tidwall/gjson"
)

// WriteBackendResponse relays an upstream answer with the upstream status.
// An empty body becomes JSON null, a JSON body is sent verbatim as JSON and
// anything else keeps its own content type, or text/plain if it had none.
func WriteBackendResponse(w http.ResponseWriter, res *BackendResponse) {
	switch {
	case len(res.Body) == 0:
		// net/http discards the body on 204 and 304, so null never reaches
		// the wire for those.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(res.StatusCode)
		_, _ = w.Write([]byte("null"))
	case gjson.ValidBytes(res.Body):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(res.StatusCode)
		_, _ = w.Write(res.Body)
	default:
		contentType := res.ContentType
		if contentType == "" {
			contentType = "text/plain"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(res.StatusCode)
		_, _ = w.Write(res.Body)
	}
}
