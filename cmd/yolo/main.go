package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/akamensky/argparse"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolo/config"
	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/logger"
	"github.com/nvr-ai/go-yolo/metrics"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/yolov5"
	"github.com/nvr-ai/go-yolo/render"
	"github.com/nvr-ai/go-yolo/server"
	"github.com/nvr-ai/go-yolo/util"
)

// engineFactory opens an inference backend for a configuration.
type engineFactory func(cfg config.Config) (inference.Inferer, error)

var engines = map[string]engineFactory{
	"onnx": newONNXEngine,
}

func engineNames() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func main() {
	parser := argparse.NewParser("yolo", "Detect objects with a YOLOv5 ONNX model")
	configPath := parser.String("c", "config", &argparse.Options{Help: "Path to YAML config file", Required: false})
	modelPath := parser.String("m", "model", &argparse.Options{Help: "Path to ONNX model file, overrides the config", Required: false})
	input := parser.String("i", "input", &argparse.Options{Help: "Image file or directory of images", Required: false})
	output := parser.String("o", "output", &argparse.Options{Help: "Directory for annotated PNGs", Required: false})
	engine := parser.Selector("e", "engine", engineNames(), &argparse.Options{Help: "Inference backend", Required: false, Default: "onnx"})
	serve := parser.Flag("", "serve", &argparse.Options{Help: "Serve the HTTP API"})
	dev := parser.Flag("", "dev", &argparse.Options{Help: "Development logging"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	if err := run(*configPath, *modelPath, *input, *output, *engine, *serve, *dev); err != nil {
		logger.Log().Error("yolo failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(configPath, modelPath, input, output, engine string, serve, dev bool) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if modelPath != "" {
		cfg.Model.Path = modelPath
	}
	if dev {
		cfg.Logging.Development = true
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return errors.Wrap(err, "logger init")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !serve && input == "" {
		return errors.New("either --input or --serve is required")
	}

	m, err := models.NewModel(cfg.ModelOptions())
	if err != nil {
		return err
	}

	labels := models.NewLabels(cfg.Model.Family, cfg.Model.Labels)
	if len(cfg.Model.Labels) == 0 {
		if labels, err = models.Classes(cfg.Model.Family); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mx, err := metrics.New(reg)
	if err != nil {
		return err
	}

	pre, err := inference.NewLetterboxPreprocessor(cfg.Model.InputWidth, cfg.Model.InputHeight)
	if err != nil {
		return err
	}

	inf, err := engines[engine](cfg)
	if err != nil {
		return err
	}

	det, err := inference.NewDetector(m, pre, inf, inference.WithMetrics(mx), inference.WithLabels(labels.Label))
	if err != nil {
		_ = inf.Close()
		return err
	}
	defer det.Close()

	logger.Log().Info("detector ready",
		zap.String("model", string(cfg.Model.Name)),
		zap.String("path", cfg.Model.Path),
		zap.String("engine", engine),
		zap.String("backend", string(cfg.Provider.Backend)),
		zap.Int("input_width", cfg.Model.InputWidth),
		zap.Int("input_height", cfg.Model.InputHeight),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serve {
		srv := server.New(det, server.Options{
			Labels:       labels.Label,
			Gatherer:     reg,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
			MaxPixels:    cfg.Server.MaxPixels,
		})
		return srv.Run(ctx, cfg.Server.Address)
	}

	return detectFiles(ctx, det, labels.Label, input, output)
}

func newONNXEngine(cfg config.Config) (inference.Inferer, error) {
	if err := inference.InitializeEnvironment(cfg.Model.Library); err != nil {
		return nil, err
	}
	return inference.NewONNXSession(inference.NewONNXSessionArgs{
		ModelPath:   cfg.Model.Path,
		InputName:   cfg.Model.InputName,
		OutputName:  cfg.Model.OutputName,
		InputWidth:  cfg.Model.InputWidth,
		InputHeight: cfg.Model.InputHeight,
		Anchors:     yolov5.Anchors(cfg.Model.InputWidth, cfg.Model.InputHeight),
		Dimensions:  cfg.ModelOptions().Dimensions(),
		Provider:    cfg.Provider,
	})
}

func detectFiles(ctx context.Context, det *inference.Detector, label func(int) string, input, output string) error {
	info, err := os.Stat(input)
	if err != nil {
		return errors.Wrap(err, "input")
	}

	var files []util.ImageFile
	if info.IsDir() {
		files, err = util.LoadDirectoryImageFiles(input)
	} else {
		var f util.ImageFile
		f, err = util.LoadImageFile(input)
		files = []util.ImageFile{f}
	}
	if err != nil {
		return err
	}

	if output != "" {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		img, _, err := images.Decode(f.Data)
		if err != nil {
			logger.Log().Warn("skipping image", zap.String("path", f.Path), zap.Error(err))
			continue
		}

		start := time.Now()
		detections, err := det.Detect(ctx, img)
		if err != nil {
			return errors.Wrapf(err, "detecting %s", f.Path)
		}

		for _, d := range detections {
			fmt.Printf("%s\t%s\t%.3f\t%s\n", f.Path, label(d.Class), d.Confidence, d.Box)
		}
		logger.Log().Info("image processed",
			zap.String("path", f.Path),
			zap.Int("detections", len(detections)),
			zap.Duration("elapsed", time.Since(start)),
		)

		if output == "" {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path)) + ".png"
		if err := render.SavePNG(filepath.Join(output, name), render.Annotate(img, detections, label)); err != nil {
			return err
		}
	}
	return nil
}
