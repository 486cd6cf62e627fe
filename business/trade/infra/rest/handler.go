// Package rest exposes the trade service over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fd1az/margin-router/business/trade/app"
	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/business/trade/infra/offchain"
	"github.com/fd1az/margin-router/internal/apm"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/asset"
	"github.com/fd1az/margin-router/internal/logger"
)

const requestLimit = 1 << 20 // 1 MiB

// TradeAPI is the part of the trade service the handlers call.
type TradeAPI interface {
	Preview(ctx context.Context, pair domain.Pair, ti domain.TradeInfo, trader common.Address) (*app.TradePreview, error)
	ClosePreview(ctx context.Context, pair domain.Pair, ci domain.CloseTradeInfo, position *domain.PositionView, detail domain.OffChainPositionDetail) (*app.ClosePreview, error)
	Position(ctx context.Context, pair domain.Pair, long, dep domain.Side, trader common.Address) (*domain.PositionView, error)
	PlanOpen(ctx context.Context, pair domain.Pair, ti domain.TradeInfo, preview *app.TradePreview, dex string) (*app.OpenPlan, error)
	PlanClose(ctx context.Context, pair domain.Pair, ci domain.CloseTradeInfo, position *domain.PositionView, detail domain.OffChainPositionDetail, preview *app.ClosePreview, dex string) (*app.ClosePlan, error)
}

// Listings serves the protocol's published pairs and pools.
type Listings interface {
	Pairs(ctx context.Context) ([]offchain.PairListing, error)
	Pools(ctx context.Context) ([]offchain.PoolListing, error)
}

var (
	_ TradeAPI = (*app.TradeService)(nil)
	_ Listings = (*offchain.Client)(nil)
)

// Handler serves the /v1 trade routes.
type Handler struct {
	trades   TradeAPI
	listings Listings
	registry *asset.Registry
	chainID  uint64
	tracer   apm.Tracer
	logger   logger.LoggerInterface
}

// NewHandler creates a Handler. Tokens in request pairs are resolved
// against registry on chainID.
func NewHandler(trades TradeAPI, listings Listings, registry *asset.Registry, chainID uint64, log logger.LoggerInterface) *Handler {
	return &Handler{
		trades:   trades,
		listings: listings,
		registry: registry,
		chainID:  chainID,
		tracer:   apm.NewTracer("rest"),
		logger:   log,
	}
}

// Mount registers the routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/trades/preview", h.preview)
		r.Post("/trades/close-preview", h.closePreview)
		r.Post("/positions", h.position)
		r.Get("/pairs", h.pairs)
		r.Get("/pools", h.pools)
	})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "rest.preview")
	defer span.End()

	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, span, err)
		return
	}
	pair, err := req.Pair.toPair(h.registry, h.chainID)
	if err != nil {
		h.writeError(ctx, w, span, err)
		return
	}
	long, dep, err := parseSides(req.LongToken, req.DepositToken)
	if err != nil {
		h.writeError(ctx, w, span, err)
		return
	}
	trader, err := parseAddress(req.Trader, "trader", true)
	if err != nil {
		h.writeError(ctx, w, span, err)
		return
	}
	span.SetAttributes(
		attribute.String("pair", pair.String()),
		attribute.Int64("level", req.Level),
	)

	ti := domain.NewOpenTradeInfo(pair, req.DepositAmount, req.Level, req.Slippage, long, dep)
	preview, err := h.trades.Preview(ctx, pair, ti, trader)
	if err != nil {
		h.writeError(ctx, w, span, err)
		return
	}

	var plan *app.OpenPlan
	if preview != nil && req.Plan {
		plan, err = h.trades.PlanOpen(ctx, pair, ti, preview, req.Dex)
		if err != nil {
			h.writeError(ctx, w, span, err)
			return
		}
	}

	span.Succeed("previewed")
	writeJSON(w, http.StatusOK, PreviewBody(preview, plan))
}

func (h *Handler) position(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "rest.position")
	defer span.End()

	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, span, err)
		return
	}
	pair, long, dep, trader, err := req.resolve(h.registry, h.chainID)
	if err != nil {
		h.writeError(ctx, w, span, err)
		return
	}

	pos, err := h.trades.Position(ctx, pair, long, dep, trader)
	if err != nil {
		h.writeError(ctx, w, span, err)
		return
	}

	span.Succeed("position")
	writeJSON(w, http.StatusOK, PositionBody(pos))
}

func (h *Handler) closePreview(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "rest.close_preview")
	defer span.End()

	var req closePreviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(ctx, w, span, err)
		return
	}
	pair, long, dep, trader, err := req.resolve(h.registry, h.chainID)
	if err != nil {
		h.writeError(ctx, w, span, err)
		return
	}
	span.SetAttributes(attribute.String("pair", pair.String()))

	pos, err := h.trades.Position(ctx, pair, long, dep, trader)
	if err == nil && pos == nil {
		err = apperror.New(apperror.CodePositionNotFound, apperror.WithOperation("close.preview"))
	}
	if err != nil {
		h.writeError(ctx, w, span, err)
		return
	}

	ci := domain.CloseTradeInfo{
		CloseAmount: req.CloseAmount,
		Slippage:    req.Slippage,
		Share:       pos.Share,
	}
	detail := domain.OffChainPositionDetail{
		Trader:       trader,
		MarketID:     pair.MarketID,
		LongToken:    long,
		DepositToken: dep,
		Token0:       pair.Token0.Address(),
		Token1:       pair.Token1.Address(),
		Pool0:        pair.Pool0,
		Pool1:        pair.Pool1,
		Lever:        req.Lever,
	}

	preview, err := h.trades.ClosePreview(ctx, pair, ci, pos, detail)
	if err != nil {
		h.writeError(ctx, w, span, err)
		return
	}

	var plan *app.ClosePlan
	if preview != nil && req.Plan {
		plan, err = h.trades.PlanClose(ctx, pair, ci, pos, detail, preview, req.Dex)
		if err != nil {
			h.writeError(ctx, w, span, err)
			return
		}
	}

	span.Succeed("close previewed")
	writeJSON(w, http.StatusOK, ClosePreviewBody(pos, preview, plan))
}

func (h *Handler) pairs(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "rest.pairs")
	defer span.End()

	pairs, err := h.listings.Pairs(ctx)
	if err != nil {
		h.writeError(ctx, w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pairs": pairs})
}

func (h *Handler) pools(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "rest.pools")
	defer span.End()

	pools, err := h.listings.Pools(ctx)
	if err != nil {
		h.writeError(ctx, w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pools": pools})
}

func (p positionRequest) resolve(reg *asset.Registry, chainID uint64) (domain.Pair, domain.Side, domain.Side, common.Address, error) {
	pair, err := p.Pair.toPair(reg, chainID)
	if err != nil {
		return domain.Pair{}, 0, 0, common.Address{}, err
	}
	long, dep, err := parseSides(p.LongToken, p.DepositToken)
	if err != nil {
		return domain.Pair{}, 0, 0, common.Address{}, err
	}
	trader, err := parseAddress(p.Trader, "trader", false)
	if err != nil {
		return domain.Pair{}, 0, 0, common.Address{}, err
	}
	return pair, long, dep, trader, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, requestLimit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("request body"),
			apperror.WithCause(err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, span apm.Span, err error) {
	span.NoticeError(err)

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Wrap(err, apperror.CodeInternalError, "")
	}
	status := apperror.HTTPStatus(appErr)
	if status >= http.StatusInternalServerError {
		h.logger.Error(ctx, "request failed", appErr.LogArgs()...)
	} else {
		h.logger.Debug(ctx, "request rejected", appErr.LogArgs()...)
	}

	writeJSON(w, status, appErr.WithTraceID(span.TraceID()).ToResponse())
}
