package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/ryanmoran/gitdocs/internal"
	"github.com/ryanmoran/gitdocs/internal/store"
)

type Server struct {
	server   *http.Server
	listener net.Listener
	port     int
	writer   internal.Writer
}

// NewServer creates and starts an HTTP server exposing the document store on
// the given address. The server starts immediately in a background goroutine.
// Returns a Server handle or an error if the TCP listener cannot be created.
func NewServer(s *store.Store, addr string, w internal.Writer) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return Server{}, fmt.Errorf("failed to create TCP listener on %q: %w\nAnother process may be using the address", addr, err)
	}

	h := handler{store: s, writer: w}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /latest", h.latest)
	mux.HandleFunc("GET /docs/{version}", h.object)
	mux.HandleFunc("GET /docs/{version}/{path...}", h.object)
	mux.HandleFunc("GET /files/{version}", h.files)
	mux.HandleFunc("GET /files/{version}/{prefix...}", h.files)
	mux.HandleFunc("POST /docs", h.write)

	server := &http.Server{
		Handler: mux,
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			w.Warningf("server error: %v", err)
		}
	}()

	_, portString, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		return Server{}, fmt.Errorf("failed to split listener host/port: %w", err)
	}

	port, err := strconv.ParseInt(portString, 10, 64)
	if err != nil {
		return Server{}, fmt.Errorf("failed to parse listener port: %w", err)
	}

	return Server{
		server:   server,
		listener: listener,
		port:     int(port),
		writer:   w,
	}, nil
}

// Port returns the TCP port number that the server is listening on.
func (s Server) Port() int {
	return s.port
}

// Close stops the HTTP server and closes the TCP listener.
func (s Server) Close() error {
	err := s.server.Close()
	if err != nil {
		return err
	}

	return s.listener.Close()
}

type handler struct {
	store  *store.Store
	writer internal.Writer
}

func (h handler) latest(w http.ResponseWriter, r *http.Request) {
	h.writer.Printf("%s %s\n", r.Method, r.URL.Path)

	version, err := h.store.Latest(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"version": version})
}

func (h handler) object(w http.ResponseWriter, r *http.Request) {
	h.writer.Printf("%s %s\n", r.Method, r.URL.Path)

	doc, ok, err := h.store.Object(r.Context(), r.PathValue("version"), r.PathValue("path"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !ok {
		h.respondJSON(w, http.StatusNotFound, errorBody("no document at path"))
		return
	}

	h.respondJSON(w, http.StatusOK, doc)
}

func (h handler) files(w http.ResponseWriter, r *http.Request) {
	h.writer.Printf("%s %s\n", r.Method, r.URL.Path)

	files, err := h.store.Files(r.Context(), r.PathValue("version"), r.PathValue("prefix"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, files)
}

type writeRequest struct {
	ParentVersion string                    `json:"parentVersion"`
	UpdateBranch  string                    `json:"updateBranch,omitempty"`
	Path          string                    `json:"path"`
	Files         map[string]store.Document `json:"files"`
}

func (h handler) write(w http.ResponseWriter, r *http.Request) {
	h.writer.Printf("%s %s\n", r.Method, r.URL.Path)

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("failed to decode request body: %s", err)))
		return
	}

	hash, err := h.store.Write(r.Context(), store.WriteRequest{
		ParentVersion: req.ParentVersion,
		UpdateBranch:  req.UpdateBranch,
		Path:          req.Path,
		Files:         req.Files,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"commitHash": hash})
}

// respondError maps the store's error taxonomy onto HTTP statuses: not-found
// versions and branches are 404s, merge conflicts 409s, unusable repository
// content 422s, and remote failures 502s.
func (h handler) respondError(w http.ResponseWriter, err error) {
	var (
		invalidRequest   store.InvalidRequestError
		versionNotFound  store.VersionNotFoundError
		branchNotFound   store.UpdateBranchNotFoundError
		mergeConflict    store.MergeConflictError
		malformed        store.MalformedDocumentError
		pathConflict     store.PathConflictError
		remote           store.RemoteUnavailableError
		pushVerification store.PushVerificationFailedError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &invalidRequest):
		status = http.StatusBadRequest
	case errors.As(err, &versionNotFound), errors.As(err, &branchNotFound):
		status = http.StatusNotFound
	case errors.As(err, &mergeConflict):
		status = http.StatusConflict
	case errors.As(err, &malformed), errors.As(err, &pathConflict):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &remote), errors.As(err, &pushVerification):
		status = http.StatusBadGateway
	}

	h.writer.Warningf("request failed (%d): %v", status, err)
	h.respondJSON(w, status, errorBody(err.Error()))
}

func (h handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.writer.Warningf("failed to encode response: %v", err)
	}
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}
