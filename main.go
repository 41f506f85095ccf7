package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tournevent/shipgate/internal/graphql"
	"github.com/tournevent/shipgate/internal/server"
	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/rating"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "shipgate",
	Short:   "Shipgate - Multi-carrier shipping gateway for Indian couriers",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GraphQL server",
	RunE:  runServe,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe every enabled carrier once and print its health",
	RunE:  runHealth,
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a shipment offline from the rate-card file",
	RunE:  runQuote,
}

var quoteFlags struct {
	cards       string
	from, to    shipper.Location
	weight      float64
	dims        shipper.Dimensions
	cod         float64
	includeRTO  bool
	serviceTier string
}

func init() {
	f := quoteCmd.Flags()
	f.StringVar(&quoteFlags.cards, "cards", "", "rate-card file (defaults to RATE_CARDS_FILE)")
	f.StringVar(&quoteFlags.from.Pincode, "from-pincode", "", "origin pincode")
	f.StringVar(&quoteFlags.from.City, "from-city", "", "origin city")
	f.StringVar(&quoteFlags.from.State, "from-state", "", "origin state")
	f.StringVar(&quoteFlags.to.Pincode, "to-pincode", "", "destination pincode")
	f.StringVar(&quoteFlags.to.City, "to-city", "", "destination city")
	f.StringVar(&quoteFlags.to.State, "to-state", "", "destination state")
	f.Float64Var(&quoteFlags.weight, "weight", 0, "actual weight in kg")
	f.Float64Var(&quoteFlags.dims.Length, "length", 0, "length in cm")
	f.Float64Var(&quoteFlags.dims.Width, "width", 0, "width in cm")
	f.Float64Var(&quoteFlags.dims.Height, "height", 0, "height in cm")
	f.Float64Var(&quoteFlags.cod, "cod", 0, "collectible amount; non-zero makes the shipment COD")
	f.BoolVar(&quoteFlags.includeRTO, "rto", false, "include return-to-origin charges")
	f.StringVar(&quoteFlags.serviceTier, "tier", "", "only price this service tier")
	_ = quoteCmd.MarkFlagRequired("weight")

	rootCmd.AddCommand(serveCmd, healthCmd, quoteCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize telemetry
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.Background())
	}
	if tracer == nil {
		tracer = otel.Tracer(cfg.ServiceName)
	}
	_, span := tracer.Start(ctx, "startup", trace.WithAttributes(cfg.Attributes()...))
	span.End()

	reg, metrics := initMetrics()

	a, err := newApp(ctx, cfg, logger, metrics, tracer)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Failed to release resources", zap.Error(err))
		}
	}()

	if cfg.MonitorEnabled {
		go a.monitor.Run(ctx)
	}

	executor, err := graphql.NewExecutor(graphql.NewResolver(a.gateway, logger))
	if err != nil {
		return err
	}

	logger.Info("Starting shipgate",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.Strings("carriers", a.registry.Names()),
	)

	// Start HTTP server
	srv := server.New(server.Config{Port: cfg.Port}, a.gateway, executor, reg, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	_, metrics := initMetrics()
	a, err := newApp(ctx, cfg, logger, metrics, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	a.monitor.ProbeAll(ctx)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CARRIER\tSTATE\tLATENCY\tREQUESTS\tERROR")
	for _, st := range a.gateway.Health(ctx) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", st.Carrier, st.State, st.Latency.Round(time.Millisecond), st.Requests, st.LastError)
	}
	return w.Flush()
}

func runQuote(cmd *cobra.Command, args []string) error {
	path := quoteFlags.cards
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.RateCardsFile
	}
	if path == "" {
		return errors.New("no rate-card file: pass --cards or set RATE_CARDS_FILE")
	}

	cards, err := rating.LoadStaticRateCards(path)
	if err != nil {
		return err
	}

	in := rating.QuoteInput{
		Zone:        rating.DetermineZone(quoteFlags.from, quoteFlags.to),
		Weight:      quoteFlags.weight,
		Dimensions:  quoteFlags.dims,
		PaymentType: shipper.PaymentPrepaid,
		IncludeRTO:  quoteFlags.includeRTO,
	}
	if quoteFlags.cod > 0 {
		in.PaymentType = shipper.PaymentCOD
		in.CollectibleAmount = quoteFlags.cod
	}

	matching, err := cards.RatesForZone(cmd.Context(), in.Zone, "")
	if err != nil {
		return err
	}

	var quotes []shipper.ShipmentQuote
	for _, card := range matching {
		if quoteFlags.serviceTier != "" && card.ServiceTier != "" && card.ServiceTier != quoteFlags.serviceTier {
			continue
		}
		q, err := rating.ComputeQuote(in, card)
		if err != nil {
			return err
		}
		quotes = append(quotes, *q)
	}
	if len(quotes) == 0 {
		return fmt.Errorf("no rate card covers zone %s", in.Zone)
	}
	shipper.RankQuotes(quotes)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ZONE\t%s\n", in.Zone)
	fmt.Fprintln(w, "CARRIER\tTIER\tCHARGEABLE KG\tSHIPPING\tCOD\tRTO\tGST\tTOTAL")
	for _, q := range quotes {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			q.Carrier, q.ServiceTier, q.ChargeableWeight, q.Shipping, q.COD, q.RTO, q.GST, q.Total)
	}
	return w.Flush()
}
