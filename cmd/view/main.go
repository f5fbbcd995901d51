package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joeblew999/plat-view/internal/catalog"
	"github.com/joeblew999/plat-view/internal/fetch"
	"github.com/joeblew999/plat-view/internal/format"
	"github.com/joeblew999/plat-view/internal/geom"
	"github.com/joeblew999/plat-view/internal/layer"
	"github.com/joeblew999/plat-view/internal/pipeline"
	"github.com/joeblew999/plat-view/internal/render/flatmap"
	"github.com/joeblew999/plat-view/internal/render/globe"
)

type options struct {
	verbose   bool
	proxy     string
	tolerance float64
	maxRun    int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "view",
		Short:         "Layer pipeline for globe and map scenes",
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&opts.proxy, "proxy", "", "Proxy prefix for remote fetches")
	pf.Float64Var(&opts.tolerance, "tolerance", geom.DefaultTolerance, "Vertex reducer tolerance in degrees")
	pf.IntVar(&opts.maxRun, "max-run", geom.DefaultMaxRun, "Vertex reducer skip cap")

	root.AddCommand(newLoadCmd(opts), newDetectCmd(), newConvertCmd(opts), newInspectCmd(opts), newExportCmd(opts))
	return root
}

func newLoadCmd(opts *options) *cobra.Command {
	var (
		backendName string
		catalogPath string
		joinPath    string
	)
	cmd := &cobra.Command{
		Use:   "load [url|file ...]",
		Short: "Load layers into a fresh registry and print the stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, proxyPrefix, err := gatherRequests(catalogPath, args)
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				return fmt.Errorf("nothing to load: pass URLs, files or --catalog")
			}
			if opts.proxy != "" {
				proxyPrefix = opts.proxy
			}

			reg, err := newRegistry(backendName)
			if err != nil {
				return err
			}
			cfg := pipeline.Config{
				Fetcher:   fetch.NewClient(30 * time.Second),
				Tolerance: opts.tolerance,
				MaxRun:    opts.maxRun,
			}
			if proxyPrefix != "" {
				cfg.Proxy = &fetch.PrefixProxy{Prefix: proxyPrefix}
			}
			ld := pipeline.New(reg, cfg)

			ctx := cmd.Context()
			for _, req := range reqs {
				if err := ld.Load(ctx, req); err != nil {
					log.WithError(err).WithField("url", req.URL).Warn("layer skipped")
				}
			}
			if joinPath != "" {
				req, err := argRequest(joinPath)
				if err != nil {
					return err
				}
				req.Kind = pipeline.CSVData
				if err := ld.Load(ctx, req); err != nil {
					return fmt.Errorf("join table %q: %w", joinPath, err)
				}
			}
			return printStack(cmd, reg)
		},
	}
	cmd.Flags().StringVar(&backendName, "backend", "globe", "Renderer backend: globe or flatmap")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML/JSON layer catalog to load first")
	cmd.Flags().StringVar(&joinPath, "join", "", "CSV join table applied after loading")
	return cmd
}

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [name ...]",
		Short: "Print the detected format tag for names or URLs",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			for _, arg := range args {
				tag := format.Detect(arg)
				if tag == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tunsupported\n", arg)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", arg, tag)
			}
		},
	}
}

func newConvertCmd(opts *options) *cobra.Command {
	var formatName string
	cmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "Convert an ArcGIS JSON, WFS GML or raw vector file to GeoJSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := readCollection(cmd.Context(), args[0], formatName)
			if err != nil {
				return err
			}
			if _, err := geom.NormalizeCollection(fc, opts.tolerance, opts.maxRun); err != nil {
				return err
			}
			out, err := json.MarshalIndent(fc, "", "  ")
			if err != nil {
				return fmt.Errorf("encode geojson: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&formatName, "format", "", "Force the input format instead of detecting it")
	return cmd
}

func newInspectCmd(opts *options) *cobra.Command {
	var (
		formatName string
		cells      int
	)
	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Summarize a vector file: extent, vertex counts, cell covering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := readCollection(cmd.Context(), args[0], formatName)
			if err != nil {
				return err
			}
			crs := geom.CollectionCRS(fc)
			if crs == "" {
				crs = geom.WGS84
			}
			before := 0
			for _, f := range fc.Features {
				before += geom.VertexCount(f.Geometry)
			}
			extent, err := geom.NormalizeCollection(fc, opts.tolerance, opts.maxRun)
			if err != nil {
				return err
			}
			after := 0
			for _, f := range fc.Features {
				after += geom.VertexCount(f.Geometry)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Features:  %d\n", len(fc.Features))
			fmt.Fprintf(out, "CRS:       %s\n", crs)
			fmt.Fprintf(out, "Vertices:  %d (%d after reduction)\n", before, after)
			if !extent.IsZero() {
				c := extent.Center()
				fmt.Fprintf(out, "Extent:    %s\n", extent)
				fmt.Fprintf(out, "Center:    %g, %g\n", c[0], c[1])
				fmt.Fprintf(out, "Covering:  %s\n", strings.Join(geom.Covering(extent, cells), " "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&formatName, "format", "", "Force the input format instead of detecting it")
	cmd.Flags().IntVar(&cells, "cells", geom.CoveringMaxCells, "Cell budget for the s2 covering")
	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	var (
		outPath string
		minZoom int
		maxZoom int
	)
	cmd := &cobra.Command{
		Use:   "export [url|file ...]",
		Short: "Render feature layers into a PMTiles archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxZoom < minZoom {
				return fmt.Errorf("max zoom %d below min zoom %d", maxZoom, minZoom)
			}
			m := flatmap.New()
			reg := layer.New(m)
			ld := pipeline.New(reg, pipeline.Config{
				Fetcher:   fetch.NewClient(30 * time.Second),
				Tolerance: opts.tolerance,
				MaxRun:    opts.maxRun,
			})
			ctx := cmd.Context()
			for _, arg := range args {
				req, err := argRequest(arg)
				if err != nil {
					return err
				}
				if err := ld.Load(ctx, req); err != nil {
					return err
				}
			}

			var extent geom.Extent
			for _, l := range reg.Layers() {
				extent = extent.Union(l.Extent)
			}
			if extent.IsZero() {
				return fmt.Errorf("nothing to export: no feature extents")
			}

			name := strings.TrimSuffix(filepath.Base(outPath), filepath.Ext(outPath))
			arc := flatmap.NewArchive(name, m.Order())
			for z := minZoom; z <= maxZoom; z++ {
				for _, tile := range flatmap.CoveringTiles(extent, maptile.Zoom(z)) {
					data, err := m.RenderTile(tile)
					if err != nil {
						return err
					}
					arc.AddTile(tile, data)
				}
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %q: %w", outPath, err)
			}
			n, err := arc.WriteTo(f)
			if err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %q: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d tiles, %d bytes\n", outPath, arc.Len(), n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "scene.pmtiles", "Output archive path")
	cmd.Flags().IntVar(&minZoom, "min-zoom", 4, "Lowest zoom level rendered")
	cmd.Flags().IntVar(&maxZoom, "max-zoom", 10, "Highest zoom level rendered")
	return cmd
}

// gatherRequests merges catalog entries with command line arguments, catalog
// first so arguments stack above it.
func gatherRequests(catalogPath string, args []string) ([]pipeline.Request, string, error) {
	var (
		reqs  []pipeline.Request
		proxy string
	)
	if catalogPath != "" {
		f, err := catalog.Load(catalogPath)
		if err != nil {
			return nil, "", err
		}
		proxy = f.Proxy
		reqs, err = f.Requests()
		if err != nil {
			return nil, "", err
		}
	}
	for _, arg := range args {
		req, err := argRequest(arg)
		if err != nil {
			return nil, "", err
		}
		reqs = append(reqs, req)
	}
	return reqs, proxy, nil
}

// argRequest classifies one argument. Local paths are read up front so the
// loader skips its fetcher.
func argRequest(arg string) (pipeline.Request, error) {
	req, err := (catalog.Entry{URL: arg}).Request()
	if err != nil {
		return req, err
	}
	if info, statErr := os.Stat(arg); statErr == nil && !info.IsDir() {
		body, readErr := os.ReadFile(arg)
		if readErr != nil {
			return req, fmt.Errorf("read %q: %w", arg, readErr)
		}
		req.Body = body
	}
	return req, nil
}

func newRegistry(backendName string) (*layer.Registry, error) {
	switch strings.ToLower(backendName) {
	case "globe":
		return layer.New(globe.New()), nil
	case "flatmap":
		return layer.New(flatmap.New()), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want globe or flatmap)", backendName)
	}
}

// readCollection parses a local vector file into GeoJSON. JSON payloads run
// through the ArcGIS converter, which passes native GeoJSON straight through;
// everything else is treated as GML unless the tag says otherwise.
func readCollection(ctx context.Context, path, formatName string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	tag := format.Detect(path)
	if formatName != "" {
		t, ok := format.Lookup(formatName)
		if !ok {
			return nil, fmt.Errorf("format %q: %w", formatName, format.ErrUnsupported)
		}
		tag = t
	}

	var tr format.XMLTranslator
	switch tag {
	case format.KML, format.GPX:
		return tr.Translate(ctx, tag, data)
	case format.KMZ:
		kml, err := format.ExtractKMZ(data)
		if err != nil {
			return nil, err
		}
		return tr.Translate(ctx, format.KML, kml)
	case format.GeoJSON, format.GJSON:
		return format.ParseVector(data)
	case format.CZML, format.TopoJSON:
		return nil, fmt.Errorf("convert %q: %w", tag, format.ErrUnsupported)
	}
	if format.SniffJSON(data) {
		return format.FromEsriJSON(data)
	}
	return format.FromEsriGML(data)
}

func printStack(cmd *cobra.Command, reg *layer.Registry) error {
	layers := reg.Layers()
	if len(layers) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no layers loaded")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tKIND\tVISIBLE\tEXTENT")
	for i, l := range layers {
		extent := "-"
		if !l.Extent.IsZero() {
			extent = l.Extent.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n", i, l.Name, l.Kind, l.Visible, extent)
	}
	return w.Flush()
}
