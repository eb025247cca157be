package server

import (
	"context"
	"io"
	"strconv"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"moderation/internal/conf"
	"moderation/internal/service"
)

// maxDocumentBody caps PUT /v1/documents/{name} bodies.
var maxDocumentBody int64 = 8 << 20

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, svc *service.ModerationService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
		),
	}
	if c.HTTP.Network != "" {
		opts = append(opts, http.Network(c.HTTP.Network))
	}
	if c.HTTP.Addr != "" {
		opts = append(opts, http.Address(c.HTTP.Addr))
	}
	if c.HTTP.Timeout > 0 {
		opts = append(opts, http.Timeout(c.HTTP.Timeout.Std()))
	}
	srv := http.NewServer(opts...)
	srv.Handle("/metrics", promhttp.Handler())
	registerModerationHTTPServer(srv, svc)
	return srv
}

func registerModerationHTTPServer(s *http.Server, svc *service.ModerationService) {
	r := s.Route("/")
	r.GET("/healthz", healthzHandler)
	r.GET("/v1/moderation/status", statusHandler(svc))
	r.POST("/v1/moderation/sweep", sweepHandler(svc))
	r.GET("/v1/moderation/images", imagesHandler(svc))
	r.GET("/v1/documents", listDocumentsHandler(svc))
	r.GET("/v1/documents/{name}", getDocumentHandler(svc))
	r.PUT("/v1/documents/{name}", putDocumentHandler(svc))
}

// handle runs fn through the server middleware chain and writes its result.
func handle(ctx http.Context, operation string, fn func(context.Context) (any, error)) error {
	http.SetOperation(ctx, operation)
	h := ctx.Middleware(func(ctx context.Context, _ any) (any, error) {
		return fn(ctx)
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func healthzHandler(ctx http.Context) error {
	return ctx.String(200, "ok")
}

func statusHandler(svc *service.ModerationService) http.HandlerFunc {
	return func(ctx http.Context) error {
		return handle(ctx, "/moderation/status", func(c context.Context) (any, error) {
			return svc.Status(c)
		})
	}
}

func sweepHandler(svc *service.ModerationService) http.HandlerFunc {
	return func(ctx http.Context) error {
		return handle(ctx, "/moderation/sweep", func(c context.Context) (any, error) {
			return svc.Sweep(c)
		})
	}
}

func imagesHandler(svc *service.ModerationService) http.HandlerFunc {
	return func(ctx http.Context) error {
		q := ctx.Query()
		if url := q.Get("url"); url != "" {
			return handle(ctx, "/moderation/images/lookup", func(c context.Context) (any, error) {
				return svc.LookupImage(c, url)
			})
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		return handle(ctx, "/moderation/images/list", func(c context.Context) (any, error) {
			return svc.ListImages(c, q.Get("cursor"), limit)
		})
	}
}

func listDocumentsHandler(svc *service.ModerationService) http.HandlerFunc {
	return func(ctx http.Context) error {
		return handle(ctx, "/documents/list", func(c context.Context) (any, error) {
			return svc.ListDocuments(c)
		})
	}
}

func getDocumentHandler(svc *service.ModerationService) http.HandlerFunc {
	return func(ctx http.Context) error {
		name := ctx.Vars().Get("name")
		return handle(ctx, "/documents/get", func(c context.Context) (any, error) {
			return svc.GetDocument(c, name)
		})
	}
}

func putDocumentHandler(svc *service.ModerationService) http.HandlerFunc {
	return func(ctx http.Context) error {
		name := ctx.Vars().Get("name")
		body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxDocumentBody+1))
		if err != nil {
			return err
		}
		return handle(ctx, "/documents/put", func(c context.Context) (any, error) {
			if int64(len(body)) > maxDocumentBody {
				return nil, errors.BadRequest("DOCUMENT_TOO_LARGE", "document body exceeds "+strconv.FormatInt(maxDocumentBody, 10)+" bytes")
			}
			return svc.PutDocument(c, name, body)
		})
	}
}
