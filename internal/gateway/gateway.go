// Package gateway exposes the vrc20 Processor over HTTP.
package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/danmuck/vrc20/internal/observability"
	"github.com/danmuck/vrc20/internal/protocol/codec"
	"github.com/danmuck/vrc20/internal/transport"
	"github.com/danmuck/vrc20/internal/vrc20"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// HeaderCaller names the acting account. It is trusted as given with no
	// credential check, so the gateway must only listen where every client
	// may act as any account.
	HeaderCaller = "X-Vrc20-Caller"
	HeaderError  = "X-Vrc20-Error"

	contentTypeBinary = "application/octet-stream"
	version           = "0.1.0"
)

// Gateway serves /v1/dispatch and /v1/inspect next to health and metrics.
type Gateway struct {
	Addr string

	provider  transport.LedgerProvider
	maxBody   int64
	logger    zerolog.Logger
	router    *gin.Engine
	startedAt time.Time
}

func New(addr string, provider transport.LedgerProvider, maxBody int64) *Gateway {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	logger := log.Logger.With().Str("component", "gateway").Logger()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware())

	g := &Gateway{
		Addr:      addr,
		provider:  provider,
		maxBody:   maxBody,
		logger:    logger,
		router:    r,
		startedAt: time.Now(),
	}
	g.registerRoutes()
	return g
}

// Handler returns the router for embedding or tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Serve runs the HTTP server until ctx is canceled.
func (g *Gateway) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              g.Addr,
		Handler:           g.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info().Str("addr", g.Addr).Msg("gateway started")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		g.logger.Info().Str("addr", g.Addr).Msg("gateway stopped")
		return ctx.Err()
	}
}

func (g *Gateway) registerRoutes() {
	r := g.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(g.startedAt).String(),
			"service": "vrc20",
			"version": version,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/v1/catalog", g.catalog)
	r.POST("/v1/dispatch", g.dispatch)
	r.POST("/v1/inspect", g.inspect)
}

func (g *Gateway) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, g.maxBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if int64(len(body)) > g.maxBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "message too large"})
		return nil, false
	}
	return body, true
}

func (g *Gateway) dispatch(c *gin.Context) {
	var caller codec.Address
	if raw := c.GetHeader(HeaderCaller); raw != "" {
		parsed, err := codec.ParseAddress(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		caller = parsed
	}
	body, ok := g.readBody(c)
	if !ok {
		return
	}

	if op, ok := vrc20.Discriminant(body); ok && vrc20.Prefix.Match(body) {
		c.Set(observability.ContextOp, op.String())
	}
	p := vrc20.NewProcessor(
		g.provider.As(caller),
		vrc20.WithLogger(g.logger),
		vrc20.WithObserver(observability.DispatchObserver("http")),
	)
	resp, err := p.ProcessBytes(body)
	if err != nil {
		kind, _ := vrc20.KindOf(err)
		c.Header(HeaderError, kind.String())
		c.JSON(statusFor(kind), gin.H{"error": err.Error(), "kind": kind.String()})
		return
	}
	c.Data(http.StatusOK, contentTypeBinary, resp.Bytes())
}

func statusFor(kind vrc20.ErrorKind) int {
	switch kind {
	case vrc20.KindWrongStandard:
		return http.StatusUnsupportedMediaType
	case vrc20.KindWrongCall:
		return http.StatusNotFound
	case vrc20.KindWrongArguments:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type fieldJSON struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type viewJSON struct {
	Kind    string      `json:"kind"`
	Op      uint8       `json:"op"`
	Title   string      `json:"title"`
	Fields  []fieldJSON `json:"fields"`
	Display string      `json:"display"`
}

func (g *Gateway) inspect(c *gin.Context) {
	kind, ok := parseKind(c.DefaultQuery("kind", "request"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be request, response or event"})
		return
	}
	body, ok := g.readBody(c)
	if !ok {
		return
	}
	view, err := vrc20.Inspect(kind, body)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	out := viewJSON{
		Kind:    view.Kind.String(),
		Op:      uint8(view.Op),
		Title:   view.Title,
		Fields:  make([]fieldJSON, 0, len(view.Fields)),
		Display: view.String(),
	}
	for _, f := range view.Fields {
		out.Fields = append(out.Fields, fieldJSON{Name: f.Name, Type: f.Value.Type.String(), Value: f.Value.Render()})
	}
	c.JSON(http.StatusOK, out)
}

func parseKind(raw string) (vrc20.MessageKind, bool) {
	switch raw {
	case "request":
		return vrc20.KindRequest, true
	case "response":
		return vrc20.KindResponse, true
	case "event":
		return vrc20.KindEvent, true
	default:
		return 0, false
	}
}

type paramJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type operationJSON struct {
	ID      uint8       `json:"id"`
	Name    string      `json:"name"`
	Args    []paramJSON `json:"args"`
	Returns paramJSON   `json:"returns"`
	Mutates bool        `json:"mutates"`
}

func (g *Gateway) catalog(c *gin.Context) {
	ops := vrc20.Operations()
	out := make([]operationJSON, 0, len(ops))
	for _, op := range ops {
		args := make([]paramJSON, 0, len(op.Args))
		for _, a := range op.Args {
			args = append(args, paramJSON{Name: a.Name, Type: a.Type.String()})
		}
		out = append(out, operationJSON{
			ID:      uint8(op.ID),
			Name:    op.Name,
			Args:    args,
			Returns: paramJSON{Name: op.Returns.Name, Type: op.Returns.Type.String()},
			Mutates: op.Mutates,
		})
	}
	c.JSON(http.StatusOK, gin.H{"prefix": vrc20.Prefix.String(), "operations": out})
}
