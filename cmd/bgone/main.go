package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/setanarut/bgone"
	"github.com/setanarut/bgone/utils"
	"github.com/urfave/cli/v2"
)

// Set by compiler
var version = "v0.1.0"

func main() {
	log.SetFlags(0)

	app := &cli.App{
		Name:      "bgone",
		Usage:     "remove a solid background color by unmixing it from every pixel",
		ArgsUsage: "INPUT OUTPUT",
		Version:   version,
		Description: "bgone inverts alpha compositing against a flat background.\n\n" +
			"Foreground colors may be given as hex codes or SVG color names, or as\n" +
			"\"auto\" to let bgone deduce them from the image.",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "fg",
				Aliases: []string{"f"},
				Usage:   "foreground color (hex, SVG name or auto), repeatable",
			},
			&cli.StringFlag{
				Name:    "bg",
				Aliases: []string{"b"},
				Usage:   "background color, detected from the image edges when omitted",
			},
			&cli.BoolFlag{
				Name:    "strict",
				Aliases: []string{"s"},
				Usage:   "restrict output pixels to mixes of the foreground colors",
			},
			&cli.Float64Flag{
				Name:    "threshold",
				Aliases: []string{"t"},
				Value:   bgone.DefaultClosenessThreshold,
				Usage:   "color closeness threshold in [0,1]",
			},
			&cli.UintFlag{
				Name:    "threads",
				Aliases: []string{"j"},
				Usage:   "worker goroutines, 0 uses every CPU",
			},
			&cli.StringFlag{
				Name:  "layers",
				Usage: "write one image per foreground color into this directory",
			},
			&cli.StringFlag{
				Name:  "preview",
				Usage: "write the result composited over --preview-bg to this file",
			},
			&cli.StringFlag{
				Name:  "preview-bg",
				Value: "white",
				Usage: "background color of the preview",
			},
			&cli.StringFlag{
				Name:  "mask",
				Usage: "write the alpha channel as a grayscale image to this file",
			},
			&cli.BoolFlag{
				Name: "no-exif-rotation",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "palette",
				Usage:     "suggest foreground colors for an image",
				ArgsUsage: "INPUT",
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:    "colors",
						Aliases: []string{"k"},
						Value:   5,
					},
					&cli.StringFlag{
						Name:    "method",
						Aliases: []string{"m"},
						Value:   utils.PaletteMethodDominantColor.String(),
						Usage:   "dominantcolor, kmeans, palettor or median",
					},
					&cli.StringFlag{
						Name:    "bg",
						Aliases: []string{"b"},
					},
					&cli.Float64Flag{
						Name:  "min-distance",
						Value: 0.1,
						Usage: "skip colors closer than this to the background",
					},
					&cli.StringFlag{
						Name:  "swatch",
						Usage: "write the palette as an image to this file",
					},
					&cli.BoolFlag{
						Name: "no-exif-rotation",
					},
				},
				UseShortOptionHandling: true,
				Action:                 palette,
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("quiet") {
				log.SetOutput(io.Discard)
			}
			return nil
		},
		Action: remove,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func remove(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("expected INPUT and OUTPUT paths")
	}
	inPath, outPath := c.Args().Get(0), c.Args().Get(1)

	specs, err := parseSpecs(c.StringSlice("fg"))
	if err != nil {
		return err
	}
	opt := bgone.DefaultOptions()
	opt.Mode = bgone.ModeNonStrict
	if c.Bool("strict") {
		if len(specs) == 0 {
			return errors.New("--strict needs at least one --fg color")
		}
		opt.Mode = bgone.ModeStrict
	}
	opt.Threshold = c.Float64("threshold")
	opt.Workers = int(c.Uint("threads"))
	opt.Observer = bgone.LogObserver{Every: 10}
	if err := opt.Validate(); err != nil {
		return err
	}

	var bg *bgone.Color
	if c.IsSet("bg") {
		col, err := parseColor(c.String("bg"))
		if err != nil {
			return fmt.Errorf("bg: %w", err)
		}
		bg = &col
	}
	var previewBg bgone.Color
	if c.String("preview") != "" {
		if previewBg, err = parseColor(c.String("preview-bg")); err != nil {
			return fmt.Errorf("preview-bg: %w", err)
		}
	}

	img, err := utils.ReadImage(inPath, !c.Bool("no-exif-rotation"))
	if err != nil {
		return err
	}

	r := bgone.NewRemover(img, specs, bg)
	if err := r.Resolve(opt); err != nil {
		return err
	}
	log.Printf("Background: %v", *r.Background)
	if len(r.Palette) > 0 {
		log.Printf("Foreground colors: %v", r.Palette)
	}
	log.Printf("Mode: %v", opt.Mode)

	out, err := r.Process(opt)
	if err != nil {
		return err
	}
	if !supportsAlpha(outPath) {
		log.Printf("warning: %s cannot store transparency, use .png", outPath)
	}
	if err := utils.SaveImage(out, outPath); err != nil {
		return err
	}
	log.Printf("Wrote %s", outPath)

	if dir := c.String("layers"); dir != "" {
		if opt.Mode != bgone.ModeStrict {
			log.Println("warning: layers only hold pixels matched to the foreground colors outside --strict")
		}
		if err := utils.SaveLayers(r.Layers(), dir); err != nil {
			return fmt.Errorf("layers: %w", err)
		}
	}
	if path := c.String("preview"); path != "" {
		if err := utils.SaveImage(r.Reconstruct(previewBg), path); err != nil {
			return fmt.Errorf("preview: %w", err)
		}
	}
	if path := c.String("mask"); path != "" {
		if err := utils.SaveImage(r.AlphaMask(), path); err != nil {
			return fmt.Errorf("mask: %w", err)
		}
	}
	return nil
}

func palette(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected an INPUT path")
	}
	method, err := utils.ParsePaletteMethod(c.String("method"))
	if err != nil {
		return err
	}
	img, err := utils.ReadImage(c.Args().First(), !c.Bool("no-exif-rotation"))
	if err != nil {
		return err
	}

	var bg bgone.Color
	if c.IsSet("bg") {
		if bg, err = parseColor(c.String("bg")); err != nil {
			return fmt.Errorf("bg: %w", err)
		}
	} else {
		bg = bgone.DetectBackground(img)
		log.Printf("Background: %v", bg)
	}

	colors := utils.ExtractPalette(img, int(c.Uint("colors")), method, bg, c.Float64("min-distance"))
	if len(colors) == 0 {
		return errors.New("no foreground colors found")
	}
	utils.SortPaletteByBrightness(colors)

	hex := make([]string, len(colors))
	for i, col := range colors {
		hex[i] = col.Hex()
	}
	fmt.Println(strings.Join(hex, " "))

	if path := c.String("swatch"); path != "" {
		return utils.SavePalette(colors, 64, path)
	}
	return nil
}
