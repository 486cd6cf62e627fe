package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/fd1az/margin-router/business/trade/app"
	tradeDI "github.com/fd1az/margin-router/business/trade/di"
	"github.com/fd1az/margin-router/business/trade/domain"
	"github.com/fd1az/margin-router/business/trade/infra/rest"
	"github.com/fd1az/margin-router/internal/apm"
	"github.com/fd1az/margin-router/internal/apperror"
	"github.com/fd1az/margin-router/internal/metrics"
	"github.com/fd1az/margin-router/internal/server"
	"github.com/fd1az/margin-router/pkg/ui"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := bootstrap(ctx, flags, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			cfg := rt.cfg
			log := rt.log
			log.Info(ctx, "starting margin router",
				"version", version,
				"environment", cfg.App.Environment,
				"chain", cfg.Chain.Name,
			)

			if cfg.Telemetry.Enabled {
				providers := []metrics.OptionFn{
					metrics.WithServiceName(cfg.Telemetry.ServiceName),
					metrics.WithProviderConfig(metrics.NewPrometheusConfig()),
				}
				if cfg.Telemetry.OTLPEndpoint != "" {
					providers = append(providers, metrics.WithProviderConfig(metrics.NewOtelCollectorConfig(
						cfg.Telemetry.OTLPEndpoint,
						apm.ParseHeaders(cfg.Telemetry.OTLPHeaders),
						metrics.InsecureOtel,
					)))
				}
				mp, err := metrics.NewMetricProvider(providers...)
				if err != nil {
					return fmt.Errorf("failed to create metric provider: %w", err)
				}
				defer mp.Shutdown(context.WithoutCancel(ctx))

				go func() {
					if err := mp.ServePrometheusMetrics(ctx, log, metrics.WithPort(strconv.Itoa(cfg.Telemetry.PrometheusPort))); err != nil {
						log.Error(ctx, "metrics server stopped", "error", err)
					}
				}()
			}

			if err := rt.health.Start(); err != nil {
				log.Warn(ctx, "failed to start health server", "error", err)
			} else {
				log.Info(ctx, "health server started", "port", cfg.Server.HealthPort)
			}
			defer rt.health.Stop(context.WithoutCancel(ctx))

			api := server.New(cfg.Server, log, tradeDI.GetHTTPHandler(rt.mono.Services()))
			if err := api.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			log.Info(ctx, "shutting down")
			return api.Shutdown(ctx)
		},
	}
}

// pairFlags select a market and the token pair traded on it.
type pairFlags struct {
	pair     string
	marketID uint16
	slippage float64
	long     int
	deposit  int
	trader   string
}

func (p *pairFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.pair, "pair", "", "pair as TOKEN0/TOKEN1, by symbol or address")
	cmd.Flags().Uint16Var(&p.marketID, "market", 0, "protocol market id")
	cmd.Flags().Float64Var(&p.slippage, "slippage", -1, "slippage as a fraction (default from config)")
	cmd.Flags().IntVar(&p.long, "long", 0, "leg to go long (0 or 1)")
	cmd.Flags().IntVar(&p.deposit, "deposit-token", 0, "leg deposited (0 or 1)")
	cmd.Flags().StringVar(&p.trader, "trader", "", "trader address (default from config)")
	_ = cmd.MarkFlagRequired("pair")
}

// resolved is a pair lookup ready for the trade service.
type resolved struct {
	pair   domain.Pair
	long   domain.Side
	dep    domain.Side
	trader common.Address
}

func (p *pairFlags) resolve(ctx context.Context, rt *runtime) (*resolved, error) {
	a, b, ok := strings.Cut(p.pair, "/")
	if !ok || a == "" || b == "" {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("--pair must be TOKEN0/TOKEN1"))
	}

	listing, err := tradeDI.GetListings(rt.mono.Services()).FindPair(ctx, a, b)
	if err != nil {
		return nil, err
	}

	slippage := rt.cfg.Trade.DefaultSlippageDecimal()
	if p.slippage >= 0 {
		slippage = decimal.NewFromFloat(p.slippage)
	}
	pair, err := listing.ToPair(rt.mono.AssetRegistry(), rt.cfg.Chain.ChainID, p.marketID, slippage)
	if err != nil {
		return nil, err
	}

	long, err := domain.ParseSide(p.long)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidTrade, apperror.WithCause(err))
	}
	dep, err := domain.ParseSide(p.deposit)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidTrade, apperror.WithCause(err))
	}

	trader := rt.cfg.Trade.TraderAddress()
	if p.trader != "" {
		if !common.IsHexAddress(p.trader) {
			return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("--trader is not a hex address"))
		}
		trader = common.HexToAddress(p.trader)
	}

	return &resolved{pair: pair, long: long, dep: dep, trader: trader}, nil
}

func newPreviewCmd(flags *globalFlags) *cobra.Command {
	var (
		pf      pairFlags
		deposit string
		level   int64
		plan    bool
		dex     string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview opening a leveraged trade",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			amount, err := decimal.NewFromString(deposit)
			if err != nil {
				return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("--deposit"), apperror.WithCause(err))
			}

			rt, err := bootstrap(ctx, flags, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			r, err := pf.resolve(ctx, rt)
			if err != nil {
				return err
			}

			svc := tradeDI.GetTradeService(rt.mono.Services())
			ti := domain.NewOpenTradeInfo(r.pair, amount, level, r.pair.Slippage, r.long, r.dep)
			preview, err := svc.Preview(ctx, r.pair, ti, r.trader)
			if err != nil {
				return err
			}

			var openPlan *app.OpenPlan
			if plan && preview != nil {
				if openPlan, err = svc.PlanOpen(ctx, r.pair, ti, preview, dex); err != nil {
					return err
				}
			}

			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), rest.PreviewBody(preview, openPlan))
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.NewRenderer(rt.cfg.Chain.ChainID).Preview(r.pair, ti, preview))
			if openPlan != nil {
				fmt.Fprintln(cmd.OutOrStdout(), ui.MutedValue.Render("use --json to print the unsigned call"))
			}
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().StringVar(&deposit, "deposit", "", "deposit amount in token units")
	cmd.Flags().Int64Var(&level, "level", domain.MinLevel, "leverage multiple")
	cmd.Flags().BoolVar(&plan, "plan", false, "also build the unsigned marginTrade call")
	cmd.Flags().StringVar(&dex, "dex", "", "venue id to plan with (default: best)")
	_ = cmd.MarkFlagRequired("deposit")
	return cmd
}

func newPositionCmd(flags *globalFlags) *cobra.Command {
	var pf pairFlags

	cmd := &cobra.Command{
		Use:   "position",
		Short: "Show a trader's position",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, flags, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			r, err := pf.resolve(ctx, rt)
			if err != nil {
				return err
			}

			pos, err := tradeDI.GetTradeService(rt.mono.Services()).Position(ctx, r.pair, r.long, r.dep, r.trader)
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), rest.PositionBody(pos))
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.NewRenderer(rt.cfg.Chain.ChainID).Position(r.pair, r.long, pos))
			return nil
		},
	}

	pf.register(cmd)
	return cmd
}

func newClosePreviewCmd(flags *globalFlags) *cobra.Command {
	var (
		pf     pairFlags
		amount string
		lever  string
		plan   bool
		dex    string
	)

	cmd := &cobra.Command{
		Use:   "close-preview",
		Short: "Preview closing part or all of a position",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, flags, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			r, err := pf.resolve(ctx, rt)
			if err != nil {
				return err
			}

			svc := tradeDI.GetTradeService(rt.mono.Services())
			pos, err := svc.Position(ctx, r.pair, r.long, r.dep, r.trader)
			if err != nil {
				return err
			}

			// An empty --amount closes everything held.
			closeAmount := pos.Held
			if amount != "" {
				if closeAmount, err = decimal.NewFromString(amount); err != nil {
					return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("--amount"), apperror.WithCause(err))
				}
			}
			leverage, err := decimal.NewFromString(lever)
			if err != nil {
				return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("--lever"), apperror.WithCause(err))
			}

			ci := domain.CloseTradeInfo{CloseAmount: closeAmount, Slippage: r.pair.Slippage, Share: pos.Share}
			detail := domain.OffChainPositionDetail{
				Trader:       r.trader,
				MarketID:     r.pair.MarketID,
				LongToken:    r.long,
				DepositToken: r.dep,
				Token0:       r.pair.Token0.Address(),
				Token1:       r.pair.Token1.Address(),
				Pool0:        r.pair.Pool0,
				Pool1:        r.pair.Pool1,
				Lever:        leverage,
			}

			preview, err := svc.ClosePreview(ctx, r.pair, ci, pos, detail)
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				body := rest.ClosePreviewBody(pos, preview, nil)
				if plan && preview != nil {
					p, err := svc.PlanClose(ctx, r.pair, ci, pos, detail, preview, dex)
					if err != nil {
						return err
					}
					body = rest.ClosePreviewBody(pos, preview, p)
				}
				return writeJSON(cmd.OutOrStdout(), body)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.NewRenderer(rt.cfg.Chain.ChainID).ClosePreview(r.pair, r.long, pos, preview))
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().StringVar(&amount, "amount", "", "amount of the held leg to close (default: all)")
	cmd.Flags().StringVar(&lever, "lever", "1", "leverage the position was opened with")
	cmd.Flags().BoolVar(&plan, "plan", false, "also build the unsigned closeTrade call (with --json)")
	cmd.Flags().StringVar(&dex, "dex", "", "venue id to plan with (default: best)")
	return cmd
}

func newPairsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pairs",
		Short: "List the pairs published by the protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap(ctx, flags, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			pairs, err := tradeDI.GetListings(rt.mono.Services()).Pairs(ctx)
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"pairs": pairs})
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.NewRenderer(rt.cfg.Chain.ChainID).Pairs(pairs))
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
