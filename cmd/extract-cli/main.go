package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/wfs-extractor/internal/app"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/config"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/model"
	"github.com/mohammed-shakir/wfs-extractor/internal/logger"
)

var (
	logLevel string

	serviceURL string
	layer      string
	format     string
	bboxArg    string
	bboxCRS    string
	projection string
	outDir     string
	owsType    string
	username   string
	roles      string
	filters    []string
)

var rootCmd = &cobra.Command{
	Use:           "extract-cli",
	Short:         "Extract WFS layers to vector files",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one extraction locally",
	Long: `Fetches the features of one layer intersecting a bounding box and writes
them, with the bounding box itself, in the requested format.`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the supported output formats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, f := range app.Writers(nil, nil).Formats() {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	f := runCmd.Flags()
	f.StringVar(&serviceURL, "url", "", "WFS service url")
	f.StringVar(&layer, "layer", "", "layer name, optionally namespace qualified")
	f.StringVar(&format, "format", "shp", "output format")
	f.StringVar(&bboxArg, "bbox", "", "x1,y1,x2,y2[,EPSG:n]")
	f.StringVar(&bboxCRS, "crs", "EPSG:4326", "bbox CRS when --bbox carries none")
	f.StringVar(&projection, "projection", "", "output projection, defaults to the bbox CRS")
	f.StringVar(&outDir, "out", "", "output directory, overrides OUTPUT_DIR")
	f.StringVar(&owsType, "ows-type", "WFS", "protocol family of the service")
	f.StringVar(&username, "user", "", "impersonated user name")
	f.StringVar(&roles, "roles", "", "impersonated roles, ';' separated")
	f.StringArrayVar(&filters, "filter", nil, "property=value equality clause, repeatable")
	_ = runCmd.MarkFlagRequired("url")
	_ = runCmd.MarkFlagRequired("layer")
	_ = runCmd.MarkFlagRequired("bbox")

	rootCmd.AddCommand(runCmd, formatsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runExtract(cmd *cobra.Command, _ []string) error {
	cfg := config.FromEnv()
	if outDir != "" {
		cfg.OutputDir = outDir
	}
	// a one-shot run keeps its job state in memory
	cfg.JobsEnabled = false

	zl := logger.Build(logger.Config{Level: logLevel, Console: true, Service: "wfs-extractor", Component: "cli"}, os.Stderr)
	log := logger.NewSlog(&zl)

	box, err := parseBBox(bboxArg, bboxCRS)
	if err != nil {
		return err
	}
	pf, err := parseFilters(filters)
	if err != nil {
		return err
	}
	req, err := model.RequestDoc{
		ServiceURL: serviceURL,
		OWSType:    owsType,
		Layer:      layer,
		Format:     format,
		BBox:       box,
		Projection: projection,
		Filters:    pf,
	}.ToRequest(model.SecurityContext{Username: username, Roles: model.ParseRoles(roles)})
	if err != nil {
		return err
	}

	svc, err := app.New(cmd.Context(), cfg, log, app.Deps{})
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// parseBBox reads x1,y1,x2,y2 with an optional fifth CRS element.
func parseBBox(s, defCRS string) (model.BBoxDoc, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 && len(parts) != 5 {
		return model.BBoxDoc{}, errors.New("bbox: expected x1,y1,x2,y2[,EPSG:n]")
	}
	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return model.BBoxDoc{}, fmt.Errorf("bbox element %d: %w", i+1, err)
		}
		v[i] = f
	}
	srid := defCRS
	if len(parts) == 5 {
		srid = strings.TrimSpace(parts[4])
	}
	return model.BBoxDoc{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3], SRID: strings.ToUpper(srid)}, nil
}

func parseFilters(in []string) ([]model.PropertyFilter, error) {
	out := make([]model.PropertyFilter, 0, len(in))
	for _, s := range in {
		k, v, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("filter %q: expected property=value", s)
		}
		out = append(out, model.PropertyFilter{Property: strings.TrimSpace(k), Value: v})
	}
	return out, nil
}
