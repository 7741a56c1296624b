package httpmw

import (
	"encoding/json"
	"net/http"

	"github.com/edgekit/isr/isr"
)

// RevalidateRequest is the request body accepted by RevalidateHandler.
// Exactly one of Path or Tag must be set.
type RevalidateRequest struct {
	Path string `json:"path,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

// RevalidateResponse is the response body written by RevalidateHandler.
type RevalidateResponse struct {
	Revalidated int `json:"revalidated"`
}

// RevalidateHandler exposes on-demand invalidation as an HTTP endpoint.
//
// It accepts POST requests with a JSON body naming either a path or a tag:
//
//	POST /isr/revalidate
//	{"path": "/blog/hello-world"}
//	{"tag": "blog"}
//
// Responses: 200 with the number of invalidated entries, 401 when the guard
// rejects the credentials, 405 for other methods, 400 for malformed bodies,
// 502 when the underlying store fails.
func RevalidateHandler(engine *isr.Engine, guard Guard) http.Handler {
	if guard == nil {
		guard = AllowAll{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := guard.Authorize(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req RevalidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed body", http.StatusBadRequest)
			return
		}
		if (req.Path == "") == (req.Tag == "") {
			http.Error(w, "exactly one of path or tag required", http.StatusBadRequest)
			return
		}

		var (
			n   int
			err error
		)
		if req.Path != "" {
			if err = engine.RevalidatePath(r.Context(), req.Path); err == nil {
				n = 1
			}
		} else {
			n, err = engine.RevalidateTag(r.Context(), req.Tag)
		}
		if err != nil {
			http.Error(w, "revalidation failed", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(RevalidateResponse{Revalidated: n})
	})
}
