// Package adminhttp is the thin HTTP admin surface named in §6: a
// front-end wrapper around whatever session layer compiles and runs
// RQL pipelines, not a reimplementation of execution itself. The
// teacher exposes its own HTTP surface with net/http's bare ServeMux
// (cmd/server/main.go); this package keeps the same handler-per-route
// shape but routes through labstack/echo, the HTTP framework the rest
// of the example pack reaches for.
package adminhttp

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"reifydb/internal/reifyerr"
)

// Frame is one pipeline statement's result batch, flattened to a
// JSON-friendly column-oriented shape for the wire — the HTTP analogue
// of a column.Columns batch.
type Frame struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Executor runs a batch of pipeline statements against an already
// authenticated identity, returning one Frame per statement. The
// engine that actually compiles and runs RQL pipelines (internal/
// volcano, internal/eval, internal/mutate wired together by a session
// layer) is injected here, the way the teacher's HTTP handlers call
// into engine.Execute/QueryCache rather than re-implementing execution
// inline in the handler.
type Executor interface {
	Execute(ctx context.Context, identity string, statements []string, params map[string]any) ([]Frame, error)
}

type statementRequest struct {
	Statements []string       `json:"statements"`
	Params     map[string]any `json:"params,omitempty"`
}

type statementResponse struct {
	Frames []Frame `json:"frames"`
}

// Server wraps an *echo.Echo router bound to one Executor.
type Server struct {
	echo     *echo.Echo
	executor Executor
}

func New(executor Executor) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	s := &Server{echo: e, executor: executor}
	e.GET("/health", s.handleHealth)

	v1 := e.Group("/v1", s.authenticate)
	v1.POST("/query", s.handleStatements)
	v1.POST("/command", s.handleStatements)
	v1.POST("/admin", s.handleStatements)

	return s
}

// ServeHTTP lets Server itself be handed to http.ListenAndServe or a
// net/http/httptest server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start runs the server's own listener at addr, blocking until it
// stops or errors.
func (s *Server) Start(addr string) error { return s.echo.Start(addr) }

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// authenticate extracts identity from "Authorization: Bearer <token>"
// or "X-Api-Key: <key>", per §6's identity extraction rule. It only
// requires that one of the two is present; validating the credential
// against a principal store is the injected Executor's concern, not
// this transport layer's.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity := ""
		if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			identity = strings.TrimPrefix(auth, "Bearer ")
		} else if key := c.Request().Header.Get("X-Api-Key"); key != "" {
			identity = key
		}
		if identity == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token or api key")
		}
		c.Set("identity", identity)
		return next(c)
	}
}

func (s *Server) handleStatements(c echo.Context) error {
	var req statementRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if len(req.Statements) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "statements must not be empty")
	}
	identity, _ := c.Get("identity").(string)

	frames, err := s.executor.Execute(c.Request().Context(), identity, req.Statements, req.Params)
	if err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, statementResponse{Frames: frames})
}

// translateError maps a reifyerr.Error's closed Kind taxonomy to an
// HTTP status, the generalized form of the teacher's handlers folding
// every engine error into a flat JSON {error} body regardless of cause.
func translateError(err error) error {
	kind, ok := reifyerr.KindOf(err)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	switch kind {
	case reifyerr.KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case reifyerr.KindAlreadyExists, reifyerr.KindConflict:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case reifyerr.KindConstraint, reifyerr.KindFormat:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case reifyerr.KindCancelled:
		return echo.NewHTTPError(http.StatusRequestTimeout, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
