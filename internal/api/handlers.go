package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"marketplace/categorizer/internal/domain"
	"marketplace/categorizer/internal/service"
	"marketplace/categorizer/internal/state"
	"marketplace/categorizer/internal/taxonomy"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const defaultShortlistSize = 20

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type healthResponse struct {
	Status           string        `json:"status"`
	DataDir          string        `json:"data_dir"`
	MarketplacesFile string        `json:"marketplaces_file"`
	Marketplaces     int           `json:"marketplaces"`
	Oracle           string        `json:"oracle"`
	Stats            service.Stats `json:"stats"`
}

type marketplaceResponse struct {
	Name          string `json:"name"`
	TaxonomyFile  string `json:"taxonomy_file"`
	IDField       string `json:"id_field"`
	NameField     string `json:"name_field"`
	ChildrenField string `json:"children_field"`
	Available     bool   `json:"available"`
	Leaves        int    `json:"leaves"`
}

type shortlistResponse struct {
	Marketplace string           `json:"marketplace"`
	Query       string           `json:"query"`
	Candidates  []fuzzyCandidate `json:"candidates"`
}

// fuzzyCandidate always carries its 0-100 match, including zero.
type fuzzyCandidate struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	Depth int    `json:"depth"`
	Match int    `json:"match"`
}

func (s *Server) health(c *gin.Context) {
	c.PureJSON(http.StatusOK, healthResponse{
		Status:           "ok",
		DataDir:          s.deps.Categorizer.DataDir,
		MarketplacesFile: s.deps.Categorizer.MarketplacesFile,
		Marketplaces:     len(s.deps.Resolver.Catalog().Marketplaces),
		Oracle:           s.deps.Resolver.OracleName(),
		Stats:            s.deps.Resolver.Stats(),
	})
}

func (s *Server) categorize(c *gin.Context) {
	opts, ok := bindOptions(c)
	if !ok {
		return
	}

	var product domain.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.PureJSON(http.StatusBadRequest, errorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	resp, err := s.deps.Resolver.Resolve(c.Request.Context(), product, opts)
	if err != nil {
		writeError(c, err)
		return
	}

	c.PureJSON(http.StatusOK, resp)
}

func (s *Server) listMarketplaces(c *gin.Context) {
	catalog := s.deps.Resolver.Catalog()

	out := make([]marketplaceResponse, 0, len(catalog.Marketplaces))
	for _, mp := range catalog.Marketplaces {
		entry := marketplaceResponse{
			Name:          mp.Name,
			TaxonomyFile:  mp.TaxonomyFile,
			IDField:       mp.FieldNames.ID,
			NameField:     mp.FieldNames.Name,
			ChildrenField: mp.FieldNames.Children,
			Available:     taxonomy.SourceExists(mp.TaxonomyFile),
		}
		if t, ok := catalog.Store.Taxonomy(mp.Name); ok {
			entry.Leaves = len(t.Leaves)
		}
		out = append(out, entry)
	}

	c.PureJSON(http.StatusOK, out)
}

func (s *Server) shortlist(c *gin.Context) {
	catalog := s.deps.Resolver.Catalog()

	mp, ok := catalog.Find(c.Param("name"))
	if !ok {
		c.PureJSON(http.StatusNotFound, errorResponse{Error: service.ErrUnknownMarketplace.Error(), Details: c.Param("name")})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.PureJSON(http.StatusBadRequest, errorResponse{Error: "query parameter q is required"})
		return
	}

	k := defaultShortlistSize
	if raw := c.Query("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.PureJSON(http.StatusBadRequest, errorResponse{Error: "k must be a positive integer", Details: raw})
			return
		}
		k = n
	}

	candidates, err := catalog.Shortlist(mp, query, k)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]fuzzyCandidate, len(candidates))
	for i, cand := range candidates {
		out[i] = fuzzyCandidate{ID: cand.ID, Name: cand.Name, Path: cand.Path, Depth: cand.Depth, Match: cand.Match}
	}

	c.PureJSON(http.StatusOK, shortlistResponse{Marketplace: mp.Name, Query: query, Candidates: out})
}

func (s *Server) reload(c *gin.Context) {
	if s.deps.Reload == nil {
		c.PureJSON(http.StatusServiceUnavailable, errorResponse{Error: "reload is not available"})
		return
	}
	if err := s.deps.Reload(c.Request.Context()); err != nil {
		log.Errorf("❌ Taxonomy reload failed: %v", err)
		c.PureJSON(http.StatusInternalServerError, errorResponse{Error: "reload failed", Details: err.Error()})
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"status":       "reloaded",
		"marketplaces": len(s.deps.Resolver.Catalog().Marketplaces),
	})
}

func (s *Server) enqueueJob(c *gin.Context) {
	if s.deps.Jobs == nil {
		c.PureJSON(http.StatusServiceUnavailable, errorResponse{Error: "batch jobs require redis"})
		return
	}

	opts, ok := bindOptions(c)
	if !ok {
		return
	}

	var product domain.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.PureJSON(http.StatusBadRequest, errorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	status, err := s.deps.Jobs.Enqueue(c.Request.Context(), product, opts)
	if err != nil {
		writeError(c, err)
		return
	}

	c.PureJSON(http.StatusAccepted, status)
}

func (s *Server) jobStatus(c *gin.Context) {
	if s.deps.Jobs == nil {
		c.PureJSON(http.StatusServiceUnavailable, errorResponse{Error: "batch jobs require redis"})
		return
	}

	status, err := s.deps.Jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.PureJSON(http.StatusOK, status)
}

func (s *Server) assignments(c *gin.Context) {
	if s.deps.Assignments == nil {
		c.PureJSON(http.StatusServiceUnavailable, errorResponse{Error: "assignment history requires a database"})
		return
	}

	assignments, err := s.deps.Assignments.GetAssignments(c.Request.Context(), c.Param("sku"))
	if err != nil {
		writeError(c, err)
		return
	}
	if len(assignments) == 0 {
		c.PureJSON(http.StatusNotFound, errorResponse{Error: "no assignments recorded", Details: c.Param("sku")})
		return
	}

	c.PureJSON(http.StatusOK, gin.H{"sku": c.Param("sku"), "categories": assignments})
}

func bindOptions(c *gin.Context) (service.Options, bool) {
	opts := service.Options{Marketplace: strings.TrimSpace(c.Query("marketplace"))}

	if raw := c.Query("include_confidence"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.PureJSON(http.StatusBadRequest, errorResponse{Error: "include_confidence must be a boolean", Details: raw})
			return opts, false
		}
		opts.IncludeConfidence = v
	}

	return opts, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidProduct):
		c.PureJSON(http.StatusBadRequest, errorResponse{Error: "invalid product", Details: err.Error()})
	case errors.Is(err, service.ErrUnknownMarketplace), errors.Is(err, state.ErrJobNotFound):
		c.PureJSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, taxonomy.ErrSourceNotFound):
		c.PureJSON(http.StatusConflict, errorResponse{Error: "taxonomy source not found", Details: err.Error()})
	default:
		log.Errorf("❌ Request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.PureJSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
