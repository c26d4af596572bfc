package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/export"
	"github.com/screening-server/internal/service"
)

type instrumentSummary struct {
	ID              string `json:"id"`
	Version         string `json:"version"`
	Title           string `json:"title"`
	Items           int    `json:"items"`
	MaxTotal        int    `json:"max_total"`
	CollectIdentity bool   `json:"collect_identity"`
}

func (s *Server) handleListInstruments(c *gin.Context) {
	list := s.deps.Catalog.List()
	out := make([]instrumentSummary, 0, len(list))
	for _, inst := range list {
		out = append(out, instrumentSummary{
			ID:              inst.ID,
			Version:         inst.Version,
			Title:           inst.Title,
			Items:           inst.ItemCount(),
			MaxTotal:        inst.MaxTotal(),
			CollectIdentity: inst.CollectIdentity,
		})
	}
	c.JSON(http.StatusOK, gin.H{"instruments": out})
}

func (s *Server) handleGetInstrument(c *gin.Context) {
	inst, err := s.deps.Catalog.Get(c.Param("id"))
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"instrument": inst,
		"steps":      service.VisibleSteps(inst),
	})
}

func (s *Server) handleInstrumentHeader(c *gin.Context) {
	inst, err := s.deps.Catalog.Get(c.Param("id"))
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": export.Columns(inst)})
}

type scoreRequest struct {
	Answers domain.Responses `json:"answers"`
}

// handleScore scores an ad-hoc response set without a session.
func (s *Server) handleScore(c *gin.Context) {
	inst, err := s.deps.Catalog.Get(c.Param("id"))
	if err != nil {
		s.respondError(c, err, nil)
		return
	}

	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	store := domain.NewResponseStore(inst, nil, nil)
	for _, ord := range req.Answers.Ordinals() {
		if err := store.Set(ord, req.Answers[ord]); err != nil {
			s.respondError(c, err, nil)
			return
		}
	}

	result := service.Score(inst, store.Answers())
	c.JSON(http.StatusOK, gin.H{
		"result":    result,
		"progress":  result.ProgressPercent(),
		"narrative": service.ComposeNarrative(inst, result, nil),
	})
}

func (s *Server) handleGetSubmission(c *gin.Context) {
	rec, err := s.deps.Records.GetBySubmissionID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, export.ToDocument(rec))
}

func (s *Server) handleListSubmissions(c *gin.Context) {
	inst, err := s.deps.Catalog.Get(c.Param("id"))
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	recs, err := s.deps.Records.ListByInstrument(c.Request.Context(), inst.ID, limit, offset)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	docs := make([]export.Document, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, export.ToDocument(rec))
	}
	c.JSON(http.StatusOK, gin.H{"submissions": docs, "limit": limit, "offset": offset})
}
