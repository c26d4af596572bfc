package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/screening-server/internal/domain"
	"github.com/screening-server/internal/export"
	"github.com/screening-server/internal/service"
)

// sessionView is the renderable state of a session.
type sessionView struct {
	Session  domain.Session     `json:"session"`
	Steps    []domain.StepState `json:"steps"`
	Progress progress           `json:"progress"`
}

type progress struct {
	Answered int   `json:"answered"`
	Total    int   `json:"total"`
	Percent  int   `json:"percent"`
	Missing  []int `json:"missing_items"`
}

func (s *Server) view(sess domain.Session) (*sessionView, error) {
	inst, err := s.deps.Catalog.Get(sess.InstrumentID)
	if err != nil {
		return nil, err
	}
	steps, err := s.deps.Machine.Stepper(sess)
	if err != nil {
		return nil, err
	}
	result := service.Score(inst, sess.Answers)
	return &sessionView{
		Session: sess,
		Steps:   steps,
		Progress: progress{
			Answered: result.Answered,
			Total:    inst.ItemCount(),
			Percent:  result.ProgressPercent(),
			Missing:  result.MissingItems,
		},
	}, nil
}

func (s *Server) respondSession(c *gin.Context, code int, sess domain.Session) {
	v, err := s.view(sess)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	c.JSON(code, v)
}

func (s *Server) loadSession(c *gin.Context) (domain.Session, bool) {
	sess, err := s.deps.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err, nil)
		return domain.Session{}, false
	}
	return *sess, true
}

// replace stores next in place of prev. A changed id means the session was
// restarted, so the old entry is dropped.
func (s *Server) replace(c *gin.Context, prev, next domain.Session) error {
	ctx := c.Request.Context()
	if err := s.deps.Sessions.Save(ctx, &next); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	if next.ID != prev.ID {
		if err := s.deps.Sessions.Delete(ctx, prev.ID); err != nil {
			s.logger.WithError(err).WithField("session_id", prev.ID).Warn("Failed to drop replaced session")
		}
	}
	return nil
}

// mutate runs one state machine operation against the stored session. A
// refused operation leaves the store untouched unless it restarted the
// session, in which case the fresh session is stored and returned with the
// error.
func (s *Server) mutate(c *gin.Context, op func(domain.Session) (domain.Session, error)) {
	defer s.locks.lock(c.Param("id"))()

	sess, ok := s.loadSession(c)
	if !ok {
		return
	}

	out, opErr := op(sess)
	if opErr != nil {
		if out.ID == sess.ID {
			s.respondError(c, opErr, nil)
			return
		}
		if err := s.replace(c, sess, out); err != nil {
			s.respondError(c, err, nil)
			return
		}
		v, _ := s.view(out)
		s.respondError(c, opErr, v)
		return
	}

	if err := s.replace(c, sess, out); err != nil {
		s.respondError(c, err, nil)
		return
	}
	s.respondSession(c, http.StatusOK, out)
}

type createSessionRequest struct {
	InstrumentID string `json:"instrument_id" binding:"required"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	sess, err := s.deps.Machine.Start(req.InstrumentID)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	if err := s.deps.Sessions.Save(c.Request.Context(), &sess); err != nil {
		s.respondError(c, err, nil)
		return
	}
	c.Header("Location", "/api/v1/sessions/"+sess.ID)
	s.respondSession(c, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(c *gin.Context) {
	defer s.locks.lock(c.Param("id"))()

	sess, ok := s.loadSession(c)
	if !ok {
		return
	}
	out, reset, err := s.deps.Machine.Enforce(sess)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	if reset {
		if err := s.replace(c, sess, out); err != nil {
			s.respondError(c, err, nil)
			return
		}
	}
	s.respondSession(c, http.StatusOK, out)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.deps.Sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

type consentRequest struct {
	Agreed *bool `json:"agreed" binding:"required"`
}

func (s *Server) handleConsent(c *gin.Context) {
	var req consentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	s.mutate(c, func(sess domain.Session) (domain.Session, error) {
		return s.deps.Machine.SetConsent(sess, *req.Agreed)
	})
}

func (s *Server) handleIdentity(c *gin.Context) {
	var req domain.Identity
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	s.mutate(c, func(sess domain.Session) (domain.Session, error) {
		return s.deps.Machine.UpdateIdentity(sess, req)
	})
}

func ordinalParam(c *gin.Context) (int, bool) {
	ord, err := strconv.Atoi(c.Param("ordinal"))
	if err != nil {
		badRequest(c, "ordinal must be an integer")
		return 0, false
	}
	return ord, true
}

type answerRequest struct {
	Score *int `json:"score" binding:"required"`
}

func (s *Server) handleAnswer(c *gin.Context) {
	ord, ok := ordinalParam(c)
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	s.mutate(c, func(sess domain.Session) (domain.Session, error) {
		return s.deps.Machine.Answer(sess, ord, *req.Score)
	})
}

func (s *Server) handleClearAnswer(c *gin.Context) {
	ord, ok := ordinalParam(c)
	if !ok {
		return
	}
	s.mutate(c, func(sess domain.Session) (domain.Session, error) {
		return s.deps.Machine.ClearAnswer(sess, ord)
	})
}

func (s *Server) handleAnnotate(c *gin.Context) {
	ord, ok := ordinalParam(c)
	if !ok {
		return
	}
	var req domain.Annotation
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	s.mutate(c, func(sess domain.Session) (domain.Session, error) {
		return s.deps.Machine.Annotate(sess, ord, req)
	})
}

type supplementaryRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleSupplementary(c *gin.Context) {
	var req supplementaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	key := c.Param("key")
	s.mutate(c, func(sess domain.Session) (domain.Session, error) {
		return s.deps.Machine.AnswerSupplementary(sess, key, req.Value)
	})
}

func (s *Server) handleNext(c *gin.Context) {
	s.mutate(c, s.deps.Machine.Next)
}

func (s *Server) handleBack(c *gin.Context) {
	s.mutate(c, s.deps.Machine.Back)
}

func (s *Server) handleReset(c *gin.Context) {
	s.mutate(c, s.deps.Machine.Reset)
}

// handleResult finalizes the submission. Persistence problems are reported
// as a warning next to the result, never as a failed request.
func (s *Server) handleResult(c *gin.Context) {
	defer s.locks.lock(c.Param("id"))()

	sess, ok := s.loadSession(c)
	if !ok {
		return
	}

	out, outcome, err := s.deps.Submissions.Finalize(c.Request.Context(), sess)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	if out.PersistedSubmissionID != sess.PersistedSubmissionID {
		if err := s.deps.Sessions.Save(c.Request.Context(), &out); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"session_id":    out.ID,
				"submission_id": outcome.Record.SubmissionID,
			}).Error("Failed to store persisted submission id")
		}
	}

	body := gin.H{
		"result":        outcome.Result,
		"submission_id": outcome.Record.SubmissionID,
		"narrative":     outcome.Record.Result.Narrative,
		"record":        export.ToDocument(outcome.Record),
		"persisted":     outcome.Persisted,
		"skipped":       outcome.Skipped,
		"disabled":      outcome.Disabled,
	}
	if msg := outcome.WarningMessage(); msg != "" {
		body["warning"] = msg
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) assemble(c *gin.Context) (*domain.Instrument, *domain.ExportRecord, bool) {
	sess, ok := s.loadSession(c)
	if !ok {
		return nil, nil, false
	}
	inst, err := s.deps.Catalog.Get(sess.InstrumentID)
	if err != nil {
		s.respondError(c, err, nil)
		return nil, nil, false
	}
	rec, err := service.Assemble(inst, sess, nil)
	if err != nil {
		s.respondError(c, err, nil)
		return nil, nil, false
	}
	return inst, rec, true
}

func attachment(c *gin.Context, rec *domain.ExportRecord, ext string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.%s"`, rec.Instrument.ID, rec.SubmissionID, ext))
}

// handleExport downloads the respondent's own record as json, csv or the
// compact row.
func (s *Server) handleExport(c *gin.Context) {
	inst, rec, ok := s.assemble(c)
	if !ok {
		return
	}

	switch format := c.DefaultQuery("format", "json"); format {
	case "json":
		data, err := export.MarshalDocument(rec)
		if err != nil {
			s.respondError(c, err, nil)
			return
		}
		attachment(c, rec, "json")
		c.Data(http.StatusOK, "application/json; charset=utf-8", data)
	case "csv":
		row := export.ToWideRow(inst, rec)
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, row.Columns, row); err != nil {
			s.respondError(c, err, nil)
			return
		}
		attachment(c, rec, "csv")
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	case "compact":
		c.JSON(http.StatusOK, export.ToCompactRow(rec))
	default:
		badRequest(c, fmt.Sprintf("unknown export format %q", format))
	}
}

func (s *Server) handleReport(c *gin.Context) {
	_, rec, ok := s.assemble(c)
	if !ok {
		return
	}

	if c.Query("format") == "md" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(s.deps.Reports.Markdown(rec)))
		return
	}
	page, err := s.deps.Reports.HTML(rec)
	if err != nil {
		s.respondError(c, err, nil)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}
