package httpmw

import (
	"context"
	"net/http"

	"github.com/edgekit/isr/isr"
)

// RenderFunc turns next into the engine's render function. Each render
// replays the request against next with a capture-only response writer; the
// render-pass marker set by the engine rides along in the request headers,
// so a handler that loops back through the middleware falls through cleanly.
func RenderFunc(next http.Handler) isr.RenderFunc {
	return func(ctx context.Context, req *isr.Request) (*isr.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.Path, nil)
		if err != nil {
			return nil, err
		}
		if req.Header != nil {
			httpReq.Header = req.Header.Clone()
		}

		rec := newRecorder()
		next.ServeHTTP(rec, httpReq)

		return &isr.Response{
			Status: rec.status,
			Header: rec.header,
			Body:   rec.body.Bytes(),
		}, nil
	}
}

// Middleware intercepts requests through the engine. Cached and freshly
// rendered responses are written directly; requests the engine declines
// (non-GET/HEAD, unmatched paths, internal render passes) fall through to
// next. A failed synchronous render answers 502.
func Middleware(engine *isr.Engine) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp, err := engine.Handle(r.Context(), &isr.Request{
				Method: r.Method,
				Path:   r.URL.Path,
				Header: r.Header,
			})
			if err != nil {
				http.Error(w, "render failed", http.StatusBadGateway)
				return
			}
			if resp == nil {
				next.ServeHTTP(w, r)
				return
			}

			for k, vv := range resp.Header {
				for _, v := range vv {
					w.Header().Add(k, v)
				}
			}
			w.WriteHeader(resp.Status)
			if r.Method != http.MethodHead {
				_, _ = w.Write(resp.Body)
			}
		})
	}
}

// Wrap builds an engine whose render function replays requests against next
// and returns next wrapped in the interception middleware. cfg.Render is
// supplied by Wrap and must be nil.
func Wrap(cfg isr.Config, next http.Handler) (http.Handler, error) {
	if next == nil {
		return nil, ErrNilHandler
	}
	cfg.Render = RenderFunc(next)
	engine, err := isr.New(cfg)
	if err != nil {
		return nil, err
	}
	return Middleware(engine)(next), nil
}
