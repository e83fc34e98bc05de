package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/swdee/go-guidedrefine"
	"github.com/swdee/go-guidedrefine/render"
	"gocv.io/x/gocv"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	levelFiles := flag.String("l", "../data/kernel.png,../data/text.png",
		"Comma separated grayscale probability maps, smallest kernel first")
	scoreFile := flag.String("s", "", "Optional grayscale score map used for detection confidence")
	imgFile := flag.String("i", "", "Optional image to draw the detections on")
	saveFile := flag.String("o", "../data/refine-out.png", "The output PNG file with detection outlines")
	threshold := flag.Float64("t", 0.5, "Binarization threshold applied to every level")
	ratio := flag.Float64("r", 1.5, "Unclip ratio used to grow regions into each level")
	minScore := flag.Float64("min-score", 0.5, "Minimum detection score")
	minArea := flag.Float64("min-area", 16, "Minimum detection area in pixels")
	workers := flag.Int("w", 1, "Number of regions expanded concurrently")
	dilate := flag.Bool("dilate", false, "Dilate the binarized level masks before extraction")
	debug := flag.Bool("debug", false, "Enable debug logging of the refinement stages")
	flag.Parse()

	files := strings.Split(*levelFiles, ",")

	cfg := guidedrefine.DefaultConfig()
	cfg.MinScore = *minScore
	cfg.MinArea = *minArea
	cfg.Workers = *workers
	cfg.Dilation = *dilate
	cfg.Levels = make([]guidedrefine.Level, len(files))

	for i := range files {
		cfg.Levels[i] = guidedrefine.Level{
			Threshold:   float32(*threshold),
			UnclipRatio: *ratio,
		}
	}

	if *debug {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr,
			&slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	pl, err := guidedrefine.New(cfg)

	if err != nil {
		log.Fatal("Error creating pipeline: ", err)
	}

	// load the level probability maps
	var width, height int
	levelScores := make([][]float32, len(files))

	for i, file := range files {
		var w, h int
		levelScores[i], w, h, err = readScoreMap(file)

		if err != nil {
			log.Fatal(err)
		}

		if i == 0 {
			width, height = w, h
		}
	}

	var score []float32

	if *scoreFile != "" {
		score, _, _, err = readScoreMap(*scoreFile)

		if err != nil {
			log.Fatal(err)
		}
	}

	start := time.Now()

	buf, err := guidedrefine.NewBuffer(cfg, width, height, levelScores, score)

	if err != nil {
		log.Fatal("Error creating mask buffer: ", err)
	}

	endBinarize := time.Now()

	res, err := pl.Run(buf)

	if err != nil {
		log.Fatal("Refinement failed with error: ", err)
	}

	endRefine := time.Now()

	log.Printf("Refine speed: binarize=%s, refine=%s, total time=%s\n",
		endBinarize.Sub(start).String(),
		endRefine.Sub(endBinarize).String(),
		endRefine.Sub(start).String(),
	)

	for _, det := range res.Detections {
		fmt.Printf("[%d]: level=%d area=%.1f score=%.3f points=%d holes=%d\n",
			det.ID, det.Level, det.Area, det.Score,
			len(det.Polygon.Outer), len(det.Polygon.Holes))
	}

	for _, ret := range res.Retired {
		fmt.Printf("retired: %s\n", ret)
	}

	// draw detections on the source image, or on the last level mask when
	// no image was given
	var img gocv.Mat

	if *imgFile != "" {
		img = gocv.IMRead(*imgFile, gocv.IMReadColor)
	} else {
		img = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
			height, width, gocv.MatTypeCV8UC3)
		last := buf.Levels[len(buf.Levels)-1]

		if err := render.MaskOverlay(&img, last, render.White, 0.3); err != nil {
			log.Fatal("Error rendering mask: ", err)
		}
	}

	if img.Empty() {
		log.Fatal("Error reading image from: ", *imgFile)
	}

	defer img.Close()

	render.Detections(&img, res.Detections, render.DefaultFont(), 1)

	if ok := gocv.IMWrite(*saveFile, img); !ok {
		log.Fatal("Failed to save output image to: ", *saveFile)
	}

	log.Printf("Saved image to %s\n", *saveFile)
}

// readScoreMap loads a grayscale image and scales its pixel values to
// probabilities in the range 0 to 1
func readScoreMap(file string) ([]float32, int, int, error) {

	img := gocv.IMRead(file, gocv.IMReadGrayScale)

	if img.Empty() {
		return nil, 0, 0, fmt.Errorf("error reading probability map from: %s", file)
	}

	defer img.Close()

	data := img.ToBytes()
	scores := make([]float32, len(data))

	for i, v := range data {
		scores[i] = float32(v) / 255
	}

	return scores, img.Cols(), img.Rows(), nil
}
