// Copyright 2025 The EateryMap Authors
// SPDX-License-Identifier: Apache-2.0

package finder

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jcodagnone/eaterymap/render"
	"github.com/jcodagnone/eaterymap/search"
	"github.com/jcodagnone/eaterymap/shellcache"
	"github.com/jcodagnone/eaterymap/spatial"
	"github.com/jcodagnone/eaterymap/status"
	"github.com/jcodagnone/eaterymap/store"
	"github.com/jcodagnone/eaterymap/utils/textutils"
)

//go:embed web
var webFS embed.FS

// Web returns the page shell: index.html, style.css, app.js and icon.svg.
func Web() fs.FS {
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err)
	}

	return sub
}

// Server exposes a Service over HTTP.
type Server struct {
	service *Service
	cache   *shellcache.Cache
	origin  shellcache.Origin
}

// NewServer creates a server. cache may be nil to serve the shell from the
// network handlers only.
func NewServer(service *Service, cache *shellcache.Cache) *Server {
	return &Server{
		service: service,
		cache:   cache,
		origin:  shellcache.FSOrigin{FS: Web()},
	}
}

// Handler builds the gin engine.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	if s.cache != nil {
		r.Use(s.cache.Middleware())
	}

	for _, p := range shellcache.DefaultManifest {
		r.GET(p, s.asset)
	}

	if s.cache != nil {
		for _, p := range s.cache.Manifest() {
			if !shellcache.DefaultManifest.Contains(p) {
				r.GET(p, s.asset)
			}
		}
	}

	r.GET(shellcache.WorkerPath, s.worker)

	api := r.Group("/api")
	api.GET("/search", s.search)
	api.GET("/locate", s.locate)
	api.GET("/cache", s.cacheInfo)
	api.GET("/sessions", s.listSessions)
	api.GET("/sessions/:id/places", s.sessionPlaces)
	api.GET("/sessions/:id/cells", s.sessionCells)

	return r
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errc := make(chan error, 1)

	go func() {
		errc <- srv.ListenAndServe()
	}()

	log.Printf("🍽️  Listening on http://%s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Println("Shutting down server...")

		if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}

		return nil
	}
}

// asset serves a shell file from the network, that is, the embedded shell.
func (s *Server) asset(ctx *gin.Context) {
	a, err := s.origin.Fetch(ctx.Request.Context(), ctx.Request.URL.Path)
	if err != nil {
		ctx.String(http.StatusNotFound, "not found")

		return
	}

	ctx.Data(http.StatusOK, a.ContentType, a.Body)
}

func parseInput(ctx *gin.Context) (*SearchInput, error) {
	in := &SearchInput{
		Client:  ctx.Query("client"),
		Keyword: strings.TrimSpace(ctx.Query("keyword")),
		IP:      ctx.ClientIP(),
	}

	if in.Client == "" {
		in.Client = in.IP
	}

	in.Denied, _ = strconv.ParseBool(ctx.DefaultQuery("denied", "false"))

	lat, lng := ctx.Query("lat"), ctx.Query("lng")
	if lat != "" || lng != "" {
		p := spatial.Point{}

		var err error
		if p.Lat, err = strconv.ParseFloat(lat, 64); err != nil {
			return nil, fmt.Errorf("invalid lat: %q", lat)
		}

		if p.Lng, err = strconv.ParseFloat(lng, 64); err != nil {
			return nil, fmt.Errorf("invalid lng: %q", lng)
		}

		in.Position = &p
	}

	if c := ctx.Query("categories"); c != "" {
		in.Categories = textutils.NormalizeCategories(strings.Split(c, ","))
	}

	if r := ctx.Query("radius"); r != "" {
		v, err := strconv.ParseFloat(r, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid radius: %q", r)
		}

		in.Radius = v
	}

	return in, nil
}

type statusPayload struct {
	Text    string `json:"text,omitempty"`
	Visible bool   `json:"visible"`
}

type completePayload struct {
	SessionID string                    `json:"session_id"`
	Found     int                       `json:"found"`
	Defaulted bool                      `json:"defaulted"`
	Summary   []*search.CategorySummary `json:"categories,omitempty"`
	Errors    []string                  `json:"errors,omitempty"`
}

// markerPayload carries the escaped popup markup along with the marker.
type markerPayload struct {
	*render.Marker
	HTML string `json:"html"`
}

type sseEvent struct {
	name string
	data any
}

// search streams a session as Server-Sent Events: status, view, circle,
// origin, popup, hide, marker and complete. The stream ends when the status line hides.
func (s *Server) search(ctx *gin.Context) {
	in, err := parseInput(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	reqCtx := ctx.Request.Context()
	events := make(chan sseEvent, 64)

	send := func(e sseEvent) {
		select {
		case events <- e:
		case <-reqCtx.Done():
		}
	}

	// hiding is sent once the session is over, after the complete event
	display := status.DisplayFunc{
		Text: func(text string) {
			send(sseEvent{"status", statusPayload{Text: text, Visible: true}})
		},
	}

	onMap := func(e render.Event) {
		switch e.Kind {
		case render.EventView:
			send(sseEvent{"view", e.View})
		case render.EventCircle:
			send(sseEvent{"circle", e.Area})
		case render.EventOrigin:
			send(sseEvent{"origin", markerPayload{e.Marker, e.Marker.Popup.HTML()}})
		case render.EventMarker:
			send(sseEvent{"marker", markerPayload{e.Marker, e.Marker.Popup.HTML()}})
		case render.EventPopup:
			send(sseEvent{"popup", e.Popup})
		case render.EventHide:
			send(sseEvent{"hide", struct{}{}})
		}
	}

	go func() {
		defer close(events)

		res, err := s.service.Search(reqCtx, in, display, onMap)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("Finder - search for %s failed: %v", in.Client, err)
			}

			return
		}

		payload := completePayload{
			SessionID: res.Session.ID,
			Found:     res.Summary.Unique,
			Defaulted: res.Session.Defaulted,
			Summary:   res.Summary.Categories,
		}

		for _, c := range res.Summary.Categories {
			if c.Err != nil {
				payload.Errors = append(payload.Errors, fmt.Sprintf("%s: %v", c.Category, c.Err))
			}
		}

		send(sseEvent{"complete", payload})

		select {
		case <-res.Done():
			send(sseEvent{"status", statusPayload{Visible: false}})
		case <-reqCtx.Done():
			res.Reporter.Close()
		}
	}()

	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("X-Accel-Buffering", "no")

	ctx.Stream(func(_ io.Writer) bool {
		select {
		case e, ok := <-events:
			if !ok {
				return false
			}

			ctx.SSEvent(e.name, e.data)

			return true
		case <-reqCtx.Done():
			return false
		}
	})
}

func (s *Server) locate(ctx *gin.Context) {
	in, err := parseInput(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	center, defaulted, locErr := s.service.Locate(ctx.Request.Context(), in)

	resp := gin.H{"center": center, "defaulted": defaulted}
	if defaulted {
		resp["message"] = status.DefaultingMessage(s.service.Fallback())
	}

	if locErr != nil {
		resp["error"] = locErr.Error()
	}

	ctx.JSON(http.StatusOK, resp)
}

// worker serves the browser service worker for the active shell cache.
func (s *Server) worker(ctx *gin.Context) {
	if s.cache == nil || s.cache.Name() == "" {
		ctx.Status(http.StatusNotFound)

		return
	}

	var buf bytes.Buffer
	if err := shellcache.WriteWorker(&buf, s.cache.Name(), s.cache.Manifest()); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.Header("Cache-Control", "no-cache")
	ctx.Data(http.StatusOK, "text/javascript; charset=utf-8", buf.Bytes())
}

func (s *Server) cacheInfo(ctx *gin.Context) {
	if s.cache == nil {
		ctx.JSON(http.StatusOK, gin.H{"enabled": false})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"enabled":  true,
		"name":     s.cache.Name(),
		"manifest": s.cache.Manifest(),
	})
}

func (s *Server) repository(ctx *gin.Context) (store.Repository, bool) {
	repo := s.service.Repository()
	if repo == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "session history is disabled"})

		return nil, false
	}

	return repo, true
}

func (s *Server) listSessions(ctx *gin.Context) {
	repo, ok := s.repository(ctx)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))

	sessions, err := repo.ListSessions(ctx.Request.Context(), limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if sessions == nil {
		sessions = []*store.Session{}
	}

	ctx.JSON(http.StatusOK, sessions)
}

func (s *Server) sessionPlaces(ctx *gin.Context) {
	repo, ok := s.repository(ctx)
	if !ok {
		return
	}

	id := ctx.Param("id")
	if _, err := repo.GetSession(ctx.Request.Context(), id); err != nil {
		writeSessionError(ctx, err)

		return
	}

	markers, err := SessionMarkers(ctx.Request.Context(), repo, id)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, render.NewFeatureCollection(markers))
}

func (s *Server) sessionCells(ctx *gin.Context) {
	repo, ok := s.repository(ctx)
	if !ok {
		return
	}

	res, err := strconv.Atoi(ctx.DefaultQuery("res", strconv.Itoa(store.FineRes)))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid res parameter"})

		return
	}

	id := ctx.Param("id")
	if _, err := repo.GetSession(ctx.Request.Context(), id); err != nil {
		writeSessionError(ctx, err)

		return
	}

	counts, err := repo.CellCounts(ctx.Request.Context(), id, res)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	if counts == nil {
		counts = []*store.CellCount{}
	}

	ctx.JSON(http.StatusOK, counts)
}

func writeSessionError(ctx *gin.Context, err error) {
	if errors.Is(err, store.ErrSessionNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// SessionMarkers rebuilds the markers of a stored session.
func SessionMarkers(ctx context.Context, repo store.Repository, sessionID string) ([]*render.Marker, error) {
	ps, err := repo.ListPlaces(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	markers := make([]*render.Marker, 0, len(ps))

	for _, p := range ps {
		m, err := render.NewMarker(p)
		if err != nil {
			log.Printf("Finder - skipping stored place %s: %v", p.ID, err)

			continue
		}

		markers = append(markers, m)
	}

	return markers, nil
}
