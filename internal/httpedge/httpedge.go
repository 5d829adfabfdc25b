// Package httpedge exposes the MessageDispatcher over a minimal REST
// edge: one handler per route, decoding a JSON body into a dispatch
// payload map and writing back the dispatcher's JSON response envelope.
//
// Grounded in the teacher's cmd/amanmcp/cmd/serve.go (the net/http
// listener wiring around the MCP server) adapted to front
// internal/dispatch instead.
package httpedge

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/Aman-CERP/vectorfs/internal/dispatch"
)

// RouteBinding pairs an HTTP method+pattern with the dispatcher
// (verb, path) it should forward to.
type RouteBinding struct {
	Method       string
	Pattern      string
	DispatchVerb dispatch.Verb
	DispatchPath string
}

// Server is a thin net/http front end over a Dispatcher.
type Server struct {
	mux        *http.ServeMux
	dispatcher *dispatch.Dispatcher
}

// New builds a Server wired to dispatcher, registering one handler per
// binding in bindings.
func New(dispatcher *dispatch.Dispatcher, bindings []RouteBinding) *Server {
	s := &Server{mux: http.NewServeMux(), dispatcher: dispatcher}
	for _, b := range bindings {
		s.mux.HandleFunc(b.Pattern, s.handler(b))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handler(binding RouteBinding) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != binding.Method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var payload map[string]any
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				writeEnvelope(w, dispatch.Response{RequestID: "", Success: false, Error: "invalid JSON body"})
				return
			}
		}
		if payload == nil {
			payload = make(map[string]any)
		}

		req := dispatch.Request{
			Verb:      binding.DispatchVerb,
			Path:      binding.DispatchPath,
			RequestID: uuid.NewString(),
			UserID:    r.Header.Get("X-User-Id"),
			Payload:   payload,
		}

		resp := s.dispatcher.Dispatch(r.Context(), req)
		writeEnvelope(w, resp)
	}
}

func writeEnvelope(w http.ResponseWriter, resp dispatch.Response) {
	w.Header().Set("Content-Type", "application/json")
	if !resp.Success {
		w.WriteHeader(http.StatusBadRequest)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
