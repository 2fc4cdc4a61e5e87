package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vjranagit/telemetry/pkg/ast"
	"github.com/vjranagit/telemetry/pkg/evaluator"
	"github.com/vjranagit/telemetry/pkg/function"
	"github.com/vjranagit/telemetry/pkg/interval"
	"github.com/vjranagit/telemetry/pkg/reducer"
	"github.com/vjranagit/telemetry/pkg/types"
)

// requesterHeader names the user a request acts for
const requesterHeader = "X-User"

const anonymous = "anonymous"

func requester(c *gin.Context) string {
	if user := strings.TrimSpace(c.GetHeader(requesterHeader)); user != "" {
		return user
	}
	return anonymous
}

func abort(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

// handleWrite stores raw sensor data
func (s *Server) handleWrite(c *gin.Context) {
	if s.deps.Store == nil {
		abort(c, http.StatusServiceUnavailable, errors.New("no storage configured"))
		return
	}

	var req types.WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	if err := s.deps.Store.Write(c.Request.Context(), &req); err != nil {
		s.logger.Error("write failed", "project", req.Project.String(), "error", err)
		abort(c, http.StatusInternalServerError, fmt.Errorf("write failed: %w", err))
		return
	}

	n := 0
	for _, series := range req.Series {
		n += len(series.Samples)
	}
	ingestedSamples.Add(float64(n))

	c.JSON(http.StatusOK, gin.H{"status": "success", "samples": n})
}

func (s *Server) handleFunctions(c *gin.Context) {
	if s.deps.Functions == nil {
		c.JSON(http.StatusOK, []function.Metadata{})
		return
	}
	c.JSON(http.StatusOK, s.deps.Functions.List())
}

func (s *Server) handleReducers(c *gin.Context) {
	if s.deps.Reducers == nil {
		c.JSON(http.StatusOK, []reducer.Metadata{})
		return
	}
	c.JSON(http.StatusOK, s.deps.Reducers.List())
}

// handleDefinitions lists the definitions the requester can resolve
func (s *Server) handleDefinitions(c *gin.Context) {
	out := []definitionJSON{}
	if s.deps.Resolver != nil {
		for _, reg := range s.deps.Resolver.Visible(requester(c)) {
			out = append(out, renderRegistration(reg))
		}
	}
	c.JSON(http.StatusOK, out)
}

// handleTelemetry draws the named definition:
//
//	GET /api/v1/telemetry/:name?project=owner/name&granularity=Day&start=2024-03-01&end=2024-03-07&params=bob,true
func (s *Server) handleTelemetry(c *gin.Context) {
	project, err := types.ParseProject(c.Query("project"))
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	iv, err := ParseInterval(c.DefaultQuery("granularity", "Day"), c.Query("start"), c.Query("end"), time.Now())
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	cmd, err := ast.NewDrawCommand(c.Param("name"), ParseParams(c.Query("params")), ast.Source{Text: c.Request.URL.RequestURI()})
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.evalTimeout)
	defer cancel()

	res, err := s.eval.Draw(ctx, cmd, evaluator.Context{
		Project:   project,
		Interval:  iv,
		Requester: requester(c),
	})
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, renderDraw(res))
}

// ParseParams splits a comma separated parameter list. An entry becomes a number
// constant only when it is finite and prints back as written, so "007" or "1e3"
// reach reducers unchanged as strings.
func ParseParams(raw string) []ast.Expression {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	params := make([]ast.Expression, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if n, err := types.ParseNumber(p); err == nil && n.IsFinite() && n.String() == p {
			params = append(params, ast.NumberConstant{Number: n})
			continue
		}
		params = append(params, ast.StringConstant{Text: p})
	}
	return params
}

// ParseInterval reads start and end as dates or RFC 3339 timestamps. A missing
// end means now; a missing start means six periods before end.
func ParseInterval(granularity, start, end string, now time.Time) (*interval.Interval, error) {
	kind, err := interval.ParseKind(granularity)
	if err != nil {
		return nil, err
	}

	endTime := now.UTC()
	if end != "" {
		if endTime, err = parseTime(end); err != nil {
			return nil, fmt.Errorf("invalid end: %w", err)
		}
	}

	var startTime time.Time
	if start != "" {
		if startTime, err = parseTime(start); err != nil {
			return nil, fmt.Errorf("invalid start: %w", err)
		}
	} else {
		switch kind {
		case types.Week:
			startTime = endTime.AddDate(0, 0, -42)
		case types.Month:
			startTime = time.Date(endTime.Year(), endTime.Month()-6, 1, 0, 0, 0, 0, time.UTC)
		default:
			startTime = endTime.AddDate(0, 0, -6)
		}
	}

	return interval.New(kind, startTime, endTime)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// statusFor maps an evaluation failure to an HTTP status
func statusFor(err error) int {
	var (
		resErr  *evaluator.ResolutionError
		evalErr *evaluator.Error
		funcErr *function.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.As(err, &resErr):
		return http.StatusNotFound
	case errors.As(err, &evalErr), errors.As(err, &funcErr),
		errors.Is(err, reducer.ErrParameter), errors.Is(err, reducer.ErrUnknownReducer):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
