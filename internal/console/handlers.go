package console

import (
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/danielledeleo/wikiforge/internal/store"
)

type dashboardView struct {
	Uptime         string `json:"uptime"`
	PageCount      int    `json:"page_count"`
	TemplateCount  int    `json:"template_count"`
	RedirectCount  int    `json:"redirect_count"`
	TemplateDigest string `json:"template_digest"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	pageCount := 0
	s.Store.Iterate(func(string, store.ContentModel) bool {
		pageCount++
		return true
	})

	writeJSON(w, dashboardView{
		Uptime:         time.Since(s.started).Round(time.Second).String(),
		PageCount:      pageCount,
		TemplateCount:  len(s.Store.TemplateBodies()),
		RedirectCount:  len(s.Store.Redirects()),
		TemplateDigest: s.Store.TemplateDigest(),
	})
}

type pageSummary struct {
	Title string `json:"title"`
	Model string `json:"model"`
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	var out []pageSummary
	s.Store.Iterate(func(title string, model store.ContentModel) bool {
		out = append(out, pageSummary{Title: title, Model: model.String()})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	writeJSON(w, out)
}

type pageView struct {
	Title        string `json:"title"`
	NamespaceID  int    `json:"namespace_id"`
	ContentModel string `json:"content_model"`
	Body         string `json:"body"`
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	title := mux.Vars(r)["title"]
	p, ok := s.Store.GetPageResolveRedirect(title)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, pageView{
		Title:        p.Title,
		NamespaceID:  p.NamespaceID,
		ContentModel: p.ContentModel.String(),
		Body:         p.Body,
	})
}

type templateView struct {
	Name           string `json:"name"`
	NeedsPreExpand bool   `json:"needs_pre_expand"`
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	bodies := s.Store.TemplateBodies()
	out := make([]templateView, 0, len(bodies))
	for name := range bodies {
		_, needsPreExpand, _ := s.Store.TemplateLookup(name)
		out = append(out, templateView{Name: name, NeedsPreExpand: needsPreExpand})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, out)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.diag.Recent())
}
