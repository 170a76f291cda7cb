// Package blazetest runs an in-process FHIR server speaking the subset of the
// Blaze REST API the blaze client uses.
package blazetest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/miabis/miabis/internal/platform/fhir"
	"github.com/miabis/miabis/internal/platform/fhirstore"
)

// Server serves /fhir backed by a fhirstore.Memory.
type Server struct {
	Store *fhirstore.Memory

	srv      *httptest.Server
	mu       sync.Mutex
	failures []int
	requests int
}

type Option func(*echo.Echo)

// WithBasicAuth rejects requests without the given credentials.
func WithBasicAuth(username, password string) Option {
	return func(e *echo.Echo) {
		e.Use(middleware.BasicAuth(func(u, p string, _ echo.Context) (bool, error) {
			return u == username && p == password, nil
		}))
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{Store: fhirstore.NewMemory()}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.countAndFail)
	for _, opt := range opts {
		opt(e)
	}

	g := e.Group("/fhir")
	g.GET("/metadata", s.metadata)
	g.POST("/:type", s.create)
	g.GET("/:type", s.search)
	g.GET("/:type/:id", s.read)
	g.PUT("/:type/:id", s.update)
	g.DELETE("/:type/:id", s.delete)

	s.srv = httptest.NewServer(e)
	return s
}

// URL is the FHIR base URL of the server.
func (s *Server) URL() string { return s.srv.URL + "/fhir" }

func (s *Server) Close() { s.srv.Close() }

// FailNext makes the next len(statuses) requests fail with the given
// statuses, in order.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// Requests returns how many requests reached the server.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *Server) countAndFail(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		s.requests++
		status := 0
		if len(s.failures) > 0 {
			status, s.failures = s.failures[0], s.failures[1:]
		}
		s.mu.Unlock()
		if status != 0 {
			return c.JSON(status, fhir.NewOperationOutcome("error", "transient", "injected failure"))
		}
		return next(c)
	}
}

func decodeBody(c echo.Context) (map[string]interface{}, error) {
	var resource map[string]interface{}
	if err := json.NewDecoder(c.Request().Body).Decode(&resource); err != nil {
		return nil, err
	}
	return resource, nil
}

func (s *Server) create(c echo.Context) error {
	rt := c.Param("type")
	resource, err := decodeBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid JSON body"))
	}
	ctx := c.Request().Context()
	id, err := s.Store.Create(ctx, rt, resource)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	created, err := s.Store.Read(ctx, rt, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	c.Response().Header().Set("Location", s.URL()+"/"+rt+"/"+id+"/_history/1")
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) metadata(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"resourceType": "CapabilityStatement",
		"status":       "active",
		"kind":         "instance",
		"fhirVersion":  "4.0.1",
		"format":       []string{"json"},
	})
}

func (s *Server) read(c echo.Context) error {
	rt, id := c.Param("type"), c.Param("id")
	res, err := s.Store.Read(c.Request().Context(), rt, id)
	if errors.Is(err, fhir.ErrResourceNotFound) {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome(rt, id))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) update(c echo.Context) error {
	rt, id := c.Param("type"), c.Param("id")
	resource, err := decodeBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("invalid JSON body"))
	}
	if bodyID, _ := resource["id"].(string); bodyID != id {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("resource id does not match the URL"))
	}
	ctx := c.Request().Context()
	err = s.Store.Update(ctx, rt, id, resource)
	if errors.Is(err, fhir.ErrResourceNotFound) {
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome(rt, id))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	res, _ := s.Store.Read(ctx, rt, id)
	return c.JSON(http.StatusOK, res)
}

// delete answers 204 whether or not the resource existed, as Blaze does.
func (s *Server) delete(c echo.Context) error {
	err := s.Store.Delete(c.Request().Context(), c.Param("type"), c.Param("id"))
	if err != nil && !errors.Is(err, fhir.ErrResourceNotFound) {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) search(c echo.Context) error {
	rt := c.Param("type")
	params := c.QueryParams()
	count, _ := strconv.Atoi(params.Get("_count"))
	offset, _ := strconv.Atoi(params.Get("_offset"))
	if count <= 0 {
		count = 50
	}

	matches, err := s.Store.Search(c.Request().Context(), rt, params)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	total := len(matches)
	end := offset + count
	if offset > total {
		offset = total
	}
	if end > total {
		end = total
	}

	filters := url.Values{}
	for k, v := range params {
		if !fhir.IsControlParam(k) {
			filters[k] = v
		}
	}
	bundle := fhir.NewSearchBundleWithLinks(matches[offset:end], fhir.SearchBundleParams{
		BaseURL:  s.URL() + "/" + rt,
		QueryStr: filters.Encode(),
		Count:    count,
		Offset:   offset,
		Total:    total,
	})
	return c.JSON(http.StatusOK, bundle)
}
