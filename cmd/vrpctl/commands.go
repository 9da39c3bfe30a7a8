package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli"

	"vrp/internal/api"
	"vrp/internal/config"
	"vrp/internal/geo"
	"vrp/internal/integrations"
	"vrp/internal/integrations/csvfile"
	"vrp/internal/integrations/jsonfile"
	"vrp/internal/model"
	"vrp/internal/opt"
	"vrp/internal/sysinfo"
)

// source picks the input adapter from the flags.
func source(c *cli.Context) (integrations.Source, error) {
	switch {
	case c.String("input") != "":
		return jsonfile.Source{Path: c.String("input"), Stdin: c.App.Reader}, nil
	case c.String("vehicles") != "" || c.String("orders") != "":
		return csvfile.Source{VehiclesPath: c.String("vehicles"), OrdersPath: c.String("orders")}, nil
	}
	return nil, fmt.Errorf("%w: use --input or --vehicles with --orders", integrations.ErrMissingInput)
}

// prepare loads the problem and applies flag overrides over the file's values.
func prepare(ctx context.Context, c *cli.Context) (opt.Request, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return opt.Request{}, err
	}
	src, err := source(c)
	if err != nil {
		return opt.Request{}, err
	}
	req, err := src.Load(ctx)
	if err != nil {
		return opt.Request{}, err
	}
	if c.IsSet("algorithm") {
		req.Algorithm = c.String("algorithm")
	}
	if c.IsSet("unit") {
		req.DistanceUnit = c.String("unit")
	}
	if req.SAParams == nil {
		req.SAParams = &model.SAParams{}
	}
	p := req.SAParams
	if c.IsSet("initial-temp") {
		v := c.Float64("initial-temp")
		p.InitialTemp = &v
	}
	if c.IsSet("final-temp") {
		v := c.Float64("final-temp")
		p.FinalTemp = &v
	}
	if c.IsSet("cooling-rate") {
		v := c.Float64("cooling-rate")
		p.CoolingRate = &v
	}
	if c.IsSet("max-iterations") {
		v := c.Int("max-iterations")
		p.MaxIterations = &v
	}
	if c.IsSet("seed") {
		v := c.Int64("seed")
		p.Seed = &v
	}
	p.Polish = p.Polish || c.Bool("polish")
	p.Verbose = p.Verbose || c.Bool("verbose")
	return api.PrepareRequest(req, cfg.AnnealConfig(), api.Limits{})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func solveAction(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()
	req, err := prepare(ctx, c)
	if err != nil {
		return err
	}
	out, err := opt.Optimize(ctx, req)
	if err != nil {
		return err
	}
	resp := api.BuildResponse(out)
	trace := resp.Statistics["trace"]
	delete(resp.Statistics, "trace")
	delete(resp.Statistics, "best_cost_history")

	w := c.App.Writer
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if recs, ok := trace.([]opt.IterationRecord); ok && req.Anneal.Verbose {
		printTrace(errWriter(c), recs)
	}
	return nil
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func printTrace(w io.Writer, recs []opt.IterationRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "it\ttemp\tcurrent\tcandidate\tdelta\taccepted\tmove\t")
	for _, r := range recs {
		fmt.Fprintf(tw, "%d\t%.4f\t%.3f\t%.3f\t%.3f\t%t\t%s\t\n",
			r.Iteration, r.Temperature, r.CurrentCost, r.CandidateCost, r.Delta, r.Accepted, r.Move)
	}
	_ = tw.Flush()
}

func compareAction(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()
	req, err := prepare(ctx, c)
	if err != nil {
		return err
	}
	greedyReq := req
	greedyReq.Algorithm = opt.AlgorithmGreedy
	g, err := opt.Optimize(ctx, greedyReq)
	if err != nil {
		return err
	}
	saReq := req
	saReq.Algorithm = opt.AlgorithmSimulatedAnnealing
	saReq.WarmStart = true
	sa, err := opt.Optimize(ctx, saReq)
	if err != nil {
		return err
	}

	w := c.App.Writer
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "algorithm\tdistance (%s)\troutes used\n", g.Unit)
	fmt.Fprintf(tw, "greedy\t%.2f\t%d\n", g.TotalDistance, g.Summary.RoutesUsed)
	fmt.Fprintf(tw, "simulated_annealing\t%.2f\t%d\n", sa.TotalDistance, sa.Summary.RoutesUsed)
	if err := tw.Flush(); err != nil {
		return err
	}
	gain := g.TotalDistance - sa.TotalDistance
	pct := 0.0
	if g.TotalDistance > 0 {
		pct = gain / g.TotalDistance * 100
	}
	fmt.Fprintf(w, "improvement: %.2f %s (%.2f%%)\n", gain, g.Unit, pct)
	if sa.Stats != nil {
		fmt.Fprintf(w, "annealing: %d iterations, stop=%s, seed=%d, %dms\n",
			sa.Stats.IterationsCompleted, sa.Stats.StopReason, sa.Stats.Seed, sa.Stats.DurationMs)
	}
	fmt.Fprintf(w, "host: %s\n", sysinfo.Collect())
	return nil
}

// parsePoint reads "lat,lon".
func parsePoint(s string) (geo.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Point{}, fmt.Errorf("%w: want lat,lon, got %q", geo.ErrInvalidCoordinate, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("%w: latitude %q", geo.ErrInvalidCoordinate, parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("%w: longitude %q", geo.ErrInvalidCoordinate, parts[1])
	}
	p := geo.Point{Lat: lat, Lon: lon}
	return p, geo.ValidatePoint(p)
}

func distanceAction(c *cli.Context) error {
	from, err := parsePoint(c.String("from"))
	if err != nil {
		return err
	}
	to, err := parsePoint(c.String("to"))
	if err != nil {
		return err
	}
	unit, err := geo.ParseUnit(c.String("unit"))
	if err != nil {
		return err
	}
	d, err := geo.Distance(from, to, unit)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%.4f %s\n", d, unit)
	return nil
}

func sysinfoAction(c *cli.Context) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(sysinfo.Collect())
}
