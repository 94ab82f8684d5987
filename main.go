package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"earth-timelapse/internal/app"
)

var (
	placeFlag = &cli.StringFlag{
		Name:    "place",
		Aliases: []string{"p"},
		Usage:   "Free-text place name, e.g. \"Udine, Italy\"",
	}
	latFlag = &cli.Float64Flag{
		Name:  "lat",
		Usage: "Center latitude (skips geocoding, requires --lon)",
	}
	lonFlag = &cli.Float64Flag{
		Name:  "lon",
		Usage: "Center longitude (skips geocoding, requires --lat)",
	}
	yearsFlag = &cli.IntFlag{
		Name:  "years",
		Usage: "How many years back the timelapse covers",
		Value: 20,
	}
	frequencyFlag = &cli.StringFlag{
		Name:    "frequency",
		Aliases: []string{"f"},
		Usage:   "Interval length: year, quarter, or month",
		Value:   "year",
	}
	radiusFlag = &cli.Float64Flag{
		Name:  "radius",
		Usage: "Region half-size in meters around the center",
	}
	widthFlag = &cli.IntFlag{
		Name:  "width",
		Usage: "Output frame width in pixels",
	}
	fpsFlag = &cli.IntFlag{
		Name:  "fps",
		Usage: "Animation frames per second",
	}
	verticalFlag = &cli.BoolFlag{
		Name:  "vertical",
		Usage: "Render 9:16 portrait frames instead of 16:9",
	}
	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output base name (extension is added per format)",
		Value:   "timelapse",
	}
	projectFlag = &cli.StringFlag{
		Name:  "project",
		Usage: "Earth Engine cloud project id (or EARTHENGINE_PROJECT)",
	}
	smoothWindowFlag = &cli.IntFlag{
		Name:  "smooth-window",
		Usage: "Temporal median window size",
		Value: 3,
	}
	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Outputs to produce: gif, mp4, avi, or both",
		Value: "both",
	}
	noCacheFlag = &cli.BoolFlag{
		Name:  "no-cache",
		Usage: "Bypass the on-disk composite cache",
	}
)

func main() {
	// Credentials may live in a local .env; a missing file is fine.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "earth-timelapse",
		Usage: "Build a satellite timelapse GIF/MP4 for a place",
		Flags: []cli.Flag{
			placeFlag, latFlag, lonFlag,
			yearsFlag, frequencyFlag, radiusFlag,
			widthFlag, fpsFlag, verticalFlag,
			outputFlag, projectFlag, smoothWindowFlag,
			formatFlag, noCacheFlag,
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	hasLat, hasLon := cmd.IsSet(latFlag.Name), cmd.IsSet(lonFlag.Name)
	if hasLat != hasLon {
		return fmt.Errorf("--lat and --lon must be given together")
	}

	result, err := app.Run(ctx, app.Options{
		Place:          cmd.String(placeFlag.Name),
		Lat:            cmd.Float64(latFlag.Name),
		Lon:            cmd.Float64(lonFlag.Name),
		HasCoordinates: hasLat && hasLon,
		Years:          cmd.Int(yearsFlag.Name),
		Frequency:      cmd.String(frequencyFlag.Name),
		RadiusM:        cmd.Float64(radiusFlag.Name),
		Width:          cmd.Int(widthFlag.Name),
		FPS:            cmd.Int(fpsFlag.Name),
		Vertical:       cmd.Bool(verticalFlag.Name),
		Output:         cmd.String(outputFlag.Name),
		Project:        cmd.String(projectFlag.Name),
		SmoothWindow:   cmd.Int(smoothWindowFlag.Name),
		Format:         cmd.String(formatFlag.Name),
		NoCache:        cmd.Bool(noCacheFlag.Name),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%d frames)\n", result.GIFPath, result.Frames)
	if result.VideoPath != "" {
		fmt.Printf("Wrote %s\n", result.VideoPath)
	}
	for _, interval := range result.Dropped {
		fmt.Printf("Warning: %s dropped, no imagery available\n", interval.Label)
	}
	return nil
}
