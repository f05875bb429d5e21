// Package server provides the HTTP surface of the gateway: the
// intercepting proxy route, the lifecycle control endpoint and the
// operational endpoints.
package server

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"

	"offgate/internal/cache"
	"offgate/internal/lifecycle"
	"offgate/internal/router"
	"offgate/internal/strategy"
)

// controlBodyLimit bounds control message reads; the only defined
// message is a single small JSON object.
const controlBodyLimit = 4 << 10

// Handler holds the HTTP handlers
type Handler struct {
	router     *router.Router
	strategies map[router.Class]strategy.Strategy
	fetch      strategy.Fetcher
	controller *lifecycle.Controller
}

// NewHandler creates a handler dispatching requests through the given
// router to the per-class strategies, with fetch serving passthrough
// traffic.
func NewHandler(rt *router.Router, strategies map[router.Class]strategy.Strategy, fetch strategy.Fetcher, controller *lifecycle.Controller) *Handler {
	return &Handler{
		router:     rt,
		strategies: strategies,
		fetch:      fetch,
		controller: controller,
	}
}

// Intercept handles every proxied request. Until the worker is
// activated all traffic streams straight through to the upstream; after
// that, GETs go through their classified strategy and everything else
// passes through untouched.
func (h *Handler) Intercept(c echo.Context) error {
	req := c.Request()

	class := router.ClassPassthrough
	if h.controller.Activated() {
		class = h.router.Classify(req)
	}

	strat, ok := h.strategies[class]
	if !ok {
		return h.passthrough(c)
	}

	snap, err := strat.Execute(req.Context(), req)
	if err != nil {
		slog.Debug("strategy fetch failed", "class", class.String(), "path", req.URL.Path, "error", err)
		return c.String(http.StatusBadGateway, "Bad Gateway")
	}
	return writeSnapshot(c, snap)
}

// passthrough streams the request to the upstream without touching any
// cache partition.
func (h *Handler) passthrough(c echo.Context) error {
	req := c.Request()

	resp, err := h.fetch.Do(req.Context(), req)
	if err != nil {
		slog.Debug("passthrough fetch failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return c.String(http.StatusBadGateway, "Bad Gateway")
	}
	defer resp.Body.Close()

	header := c.Response().Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	c.Response().WriteHeader(resp.StatusCode)
	if _, err := io.Copy(c.Response().Writer, resp.Body); err != nil {
		// Headers are already sent; nothing left to do but log.
		slog.Debug("passthrough copy failed", "path", req.URL.Path, "error", err)
	}
	return nil
}

// Control handles POST /-/control, the page-to-worker message channel.
// The only recognized message is {"type":"SKIP_WAITING"}; anything else
// is acknowledged and ignored.
func (h *Handler) Control(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, controlBodyLimit))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read message"})
	}

	switch gjson.GetBytes(body, "type").String() {
	case "SKIP_WAITING":
		if err := h.controller.SkipWaiting(c.Request().Context()); err != nil {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
			"state":  h.controller.State().String(),
		})
	default:
		return c.NoContent(http.StatusNoContent)
	}
}

// Health handles GET /healthz
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "ok",
		"state":     h.controller.State().String(),
		"worker_id": h.controller.ID(),
	})
}

// writeSnapshot renders a stored or live response snapshot.
func writeSnapshot(c echo.Context, snap *cache.Snapshot) error {
	header := c.Response().Header()
	for k, vv := range snap.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	c.Response().WriteHeader(snap.Status)
	_, err := c.Response().Write(snap.Body)
	return err
}
