// Command foveadev develops a photo from the command line: it decodes the
// input, applies an adjustment document and writes the result as PNG.
package main

import (
	"encoding/json"
	"flag"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"os"

	"github.com/fovealab/fovea"
	"github.com/fovealab/fovea/adjust"
	"github.com/fovealab/fovea/analysis"
	"github.com/fovealab/fovea/loader"
)

func main() {
	var (
		docPath = flag.String("doc", "", "adjustment document (JSON file)")
		output  = flag.String("output", "out.png", "output file")
		fast    = flag.Bool("fast", false, "fast raw preview path")
		auto    = flag.Bool("auto", false, "derive adjustments from image statistics")
		cpu     = flag.Bool("cpu", false, "skip the GPU and render the CPU preview")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: foveadev [flags] <input>")
	}
	input := flag.Arg(0)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	fovea.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	doc := adjust.Document{}
	if *docPath != "" {
		data, err := os.ReadFile(*docPath)
		if err != nil {
			log.Fatalf("Failed to read document: %v", err)
		}
		doc, err = adjust.ParseDocument(data)
		if err != nil {
			log.Fatalf("Failed to parse document: %v", err)
		}
	}

	data, err := os.ReadFile(input)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}

	p := fovea.NewPipeline()
	defer p.Close()

	img, err := p.Load(data, input, doc, fovea.LoadOptions{Fast: *fast})
	if err != nil {
		log.Fatalf("Failed to load %s: %v", input, err)
	}

	if *auto {
		suggested := analysis.AutoAnalyze(img).Document()
		for k, v := range suggested {
			if _, set := doc[k]; !set {
				doc[k] = v
			}
		}
	}

	isRaw := loader.IsRawPath(input)
	var out *fovea.Image
	if *cpu {
		out = p.Preview(img, doc, isRaw)
	} else {
		out, err = p.Develop(img, doc, fovea.DevelopInputs{IsRaw: isRaw})
		if err != nil {
			log.Fatalf("Failed to develop: %v", err)
		}
	}

	if err := savePNG(*output, out); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	log.Printf("Developed %s to %s (%dx%d)\n", input, *output, out.Width, out.Height)

	if *verbose {
		h := analysis.ComputeHistogram(out)
		stats, _ := json.Marshal(map[string]any{
			"lumaPeak": peakBin(h.Luma),
		})
		log.Printf("Stats: %s\n", stats)
	}
}

// savePNG quantizes the float image to 8-bit and writes it as PNG.
func savePNG(path string, img *fovea.Image) error {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			r, g, b := img.RGB(x, y)
			out.SetNRGBA(x, y, color.NRGBA{
				R: quantize8(r),
				G: quantize8(g),
				B: quantize8(b),
				A: 255,
			})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, out)
}

func quantize8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func peakBin(hist []float32) int {
	peak := 0
	for i, v := range hist {
		if v > hist[peak] {
			peak = i
		}
	}
	return peak
}
