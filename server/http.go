package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mnehpets/onerpc/endpoint"
	"github.com/mnehpets/onerpc/jsonrpc"
)

// rpcParams captures the raw request body. Decoding is left to the codec
// since decode errors are reported differently from endpoint errors.
type rpcParams struct {
	ContentType string `header:"Content-Type"`
	Body        []byte `body:"" maxLength:"0"`
}

// methodsParams filters the method listing by name prefix.
type methodsParams struct {
	Prefix string `query:"prefix"`
	Pretty bool   `query:"pretty"`
}

// HTTPHandler serves one request per POST body. The Content-Type selects the
// codec; requests without one use the default codec.
//
// Undecodable bodies are answered with 400 and faults with 500. Every other
// outcome, including RPC errors, is a 200 carrying the encoded response.
func (s *Server) HTTPHandler(processors ...endpoint.Processor) http.Handler {
	return endpoint.Handler(s.rpcEndpoint, s.chain(processors)...)
}

// MethodsHandler serves the sorted method list as a JSON array. The prefix
// query parameter filters it and pretty indents it.
func (s *Server) MethodsHandler(processors ...endpoint.Processor) http.Handler {
	return endpoint.Handler(s.methodsEndpoint, s.chain(processors)...)
}

func (s *Server) chain(processors []endpoint.Processor) []endpoint.Processor {
	return append([]endpoint.Processor{endpoint.ProcessorFunc(s.prepare)}, processors...)
}

// prepare attaches the server logger and caps the body size.
func (s *Server) prepare(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	r = r.WithContext(s.logger.WithContext(r.Context()))
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}
	return next(w, r)
}

func (s *Server) rpcEndpoint(w http.ResponseWriter, r *http.Request, params rpcParams) (endpoint.Renderer, error) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		return nil, endpoint.Error(http.StatusMethodNotAllowed, "JSON-RPC requires POST method", nil)
	}

	codec := s.codec
	if params.ContentType != "" {
		c, ok := jsonrpc.CodecByContentType(params.ContentType)
		if !ok {
			return nil, endpoint.Error(http.StatusUnsupportedMediaType, "unsupported Content-Type "+params.ContentType, nil)
		}
		codec = c
	}

	out, err := s.HandleWith(r.Context(), codec, params.Body)
	if err != nil {
		var decodeErr *jsonrpc.DecodeError
		if errors.As(err, &decodeErr) {
			return nil, endpoint.Error(http.StatusBadRequest, "malformed request", err)
		}
		return nil, endpoint.Error(http.StatusInternalServerError, "", err)
	}
	return &endpoint.BytesRenderer{ContentType: codec.ContentType(), Body: out}, nil
}

func (s *Server) methodsEndpoint(w http.ResponseWriter, r *http.Request, params methodsParams) (endpoint.Renderer, error) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		return nil, endpoint.Error(http.StatusMethodNotAllowed, "", nil)
	}
	names := []string{}
	for _, name := range s.registry.Methods() {
		if strings.HasPrefix(name, params.Prefix) {
			names = append(names, name)
		}
	}
	jr := &endpoint.JSONRenderer{Value: names}
	if params.Pretty {
		jr.Indent = "  "
	}
	return jr, nil
}

// Routes returns a mux serving HTTPHandler at rpcPath, MethodsHandler at
// rpcPath+"/methods" and, when wsPath is not empty, WebSocketHandler at
// wsPath. processors run before the RPC and methods endpoints.
func (s *Server) Routes(rpcPath, wsPath string, processors ...endpoint.Processor) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(rpcPath, s.HTTPHandler(processors...))
	mux.Handle(strings.TrimSuffix(rpcPath, "/")+"/methods", s.MethodsHandler(processors...))
	if wsPath != "" {
		mux.Handle(wsPath, s.WebSocketHandler(nil))
	}
	return mux
}
