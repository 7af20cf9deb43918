package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/macrolens/shelfprice/internal/logger"
)

const (
	serviceName = "shelfprice"
	version     = "1.0.0"

	noMatchesMessage     = "No products found. Please try a different search term."
	sourcesFailedMessage = "No products found. Every queried store failed to respond."
)

// ProductSearcher runs aggregated searches
type ProductSearcher interface {
	Search(ctx context.Context, request *domain.SearchRequest) (*domain.SearchResult, error)
	Sources() []domain.SourceID
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	searcher ProductSearcher
}

// NewHandler creates a new HTTP handler
func NewHandler(searcher ProductSearcher) *Handler {
	return &Handler{searcher: searcher}
}

// SearchResponse is the body of a product search
type SearchResponse struct {
	Products      []domain.Product       `json:"products"`
	Count         int                    `json:"count"`
	FailedSources []domain.SourceFailure `json:"failed_sources,omitempty"`
	Message       string                 `json:"message,omitempty"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": version,
	})
}

// ListSources returns the stores a search can be restricted to
func (h *Handler) ListSources(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "product search is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": h.searcher.Sources()})
}

// SearchProducts handles aggregated product search requests
func (h *Handler) SearchProducts(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "product search is not configured"})
		return
	}

	var request domain.SearchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "search_term is required"})
		return
	}
	for i, name := range request.Sources {
		id, err := domain.ParseSourceID(string(name))
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		request.Sources[i] = id
	}

	result, err := h.searcher.Search(c.Request.Context(), &request)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		logger.Error().Err(err).Str("term", request.Term).Str("request_id", RequestID(c)).Msg("search failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "search failed"})
		return
	}

	c.JSON(http.StatusOK, newSearchResponse(result))
}

func newSearchResponse(result *domain.SearchResult) SearchResponse {
	resp := SearchResponse{
		Products:      result.Products,
		Count:         result.Count,
		FailedSources: result.Failures,
	}
	if resp.Products == nil {
		resp.Products = []domain.Product{}
	}
	if resp.Count == 0 {
		if len(resp.FailedSources) > 0 {
			resp.Message = sourcesFailedMessage
		} else {
			resp.Message = noMatchesMessage
		}
	}
	return resp
}
