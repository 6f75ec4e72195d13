// Package server exposes an open document package read-only over HTTP.
//
// The API is a small JSON surface over the package's part table and
// relationship collections:
//
//	GET /parts           list all parts
//	GET /parts/{name}    a part's content stream, under its content type
//	GET /rels            the package root relationship collection
//	GET /rels/{name}     a part's relationship collection
//
// Part names appear in paths without their leading slash, so the part
// /xl/workbook.xml is served at /parts/xl/workbook.xml.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opcbox/opcbox/pkg/opc"
	"github.com/opcbox/opcbox/pkg/partname"
	"github.com/opcbox/opcbox/pkg/rels"
)

// Server serves one open package. Set the public fields and call Run, or use
// Handler directly in tests. Do not change any fields after calling Run.
type Server struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// Package is the package to serve. Run panics if it is nil. The server
	// never mutates it.
	Package *opc.Package

	// Logger receives request logging. Defaults to log.Default().
	Logger *log.Logger
}

// partInfo is the JSON shape of one part in a listing.
type partInfo struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
}

// relInfo is the JSON shape of one relationship.
type relInfo struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Target     string `json:"target"`
	TargetMode string `json:"target_mode"`
}

// Run listens on Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.Logger == nil {
		s.Logger = log.Default()
	}
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.Logger.Info("serving package", "addr", s.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/parts", s.listParts)
	r.Get("/parts/*", s.getPart)
	r.Get("/rels", s.rootRels)
	r.Get("/rels/*", s.partRels)

	return r
}

func (s *Server) listParts(w http.ResponseWriter, r *http.Request) {
	parts := s.Package.Parts()
	out := make([]partInfo, 0, len(parts))
	for _, p := range parts {
		out = append(out, partInfo{Name: p.Name().String(), ContentType: p.ContentType()})
	}
	writeJSON(w, out)
}

func (s *Server) getPart(w http.ResponseWriter, r *http.Request) {
	part, ok := s.lookup(w, r)
	if !ok {
		return
	}
	content, err := part.Content()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", part.ContentType())
	w.Write(content)
}

func (s *Server) rootRels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, relList(s.Package.Relationships()))
}

func (s *Server) partRels(w http.ResponseWriter, r *http.Request) {
	part, ok := s.lookup(w, r)
	if !ok {
		return
	}
	c, err := part.Relationships()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, relList(c))
}

// lookup resolves the wildcard tail of the route to a part, writing the
// error response itself on a miss.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*opc.Part, bool) {
	name, err := partname.Parse("/" + chi.URLParam(r, "*"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	part := s.Package.Part(name)
	if part == nil {
		http.Error(w, "no such part", http.StatusNotFound)
		return nil, false
	}
	return part, true
}

func relList(c *rels.Collection) []relInfo {
	all := c.All()
	out := make([]relInfo, 0, len(all))
	for _, rel := range all {
		out = append(out, relInfo{
			ID:         rel.ID(),
			Type:       rel.Type(),
			Target:     rel.Target(),
			TargetMode: rel.Mode().String(),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
