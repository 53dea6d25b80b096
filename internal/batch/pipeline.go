package batch

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/scan-splitter/internal/config"
	"github.com/ironsheep/scan-splitter/internal/deskew"
	"github.com/ironsheep/scan-splitter/internal/detection"
	"github.com/ironsheep/scan-splitter/internal/imaging"
)

// Loader decodes a scan into a normalized raster.
type Loader interface {
	Load(path string) (*image.NRGBA, error)
}

// Store persists the sub-images cut from one scan and returns where they went.
type Store interface {
	Save(source string, regions []detection.SubImage) ([]string, error)
}

// Result is the outcome of processing one scan.
type Result struct {
	Source    string                  `yaml:"source" json:"source"`
	Separator string                  `yaml:"separator,omitempty" json:"separator,omitempty"`
	Regions   []detection.BoundingBox `yaml:"regions,omitempty" json:"regions,omitempty"`
	Skew      []float64               `yaml:"skew,omitempty" json:"skew,omitempty"`
	Outputs   []string                `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Warnings  []string                `yaml:"warnings,omitempty" json:"warnings,omitempty"`
	Error     string                  `yaml:"error,omitempty" json:"error,omitempty"`
	Duration  time.Duration           `yaml:"duration" json:"duration_ns"`

	// Err is the failure, if any. Error holds its message for reports.
	Err error `yaml:"-" json:"-"`
}

// SplitResult is the in-memory outcome of splitting one raster.
type SplitResult struct {
	Separator imaging.Separator
	Regions   []detection.SubImage
	Warnings  []string
}

// Pipeline turns composite scans into saved sub-images.
//
// Each scan goes through: load, separator resolution, region extraction,
// deskew and persistence. Scans are independent; a failure in one never stops
// the others.
type Pipeline struct {
	Config *config.Config
	Loader Loader
	Store  Store
	Logger *log.Logger
}

// New creates a pipeline reading and writing files as configured.
func New(cfg *config.Config, logger *log.Logger) *Pipeline {
	return &Pipeline{
		Config: cfg,
		Loader: imaging.FileLoader{AutoOrient: cfg.AutoOrient},
		Store:  FileStore{DirName: cfg.OutputDirName},
		Logger: logger,
	}
}

func (p *Pipeline) logger() *log.Logger {
	if p.Logger == nil {
		return log.Default()
	}
	return p.Logger
}

func (p *Pipeline) debugf(format string, args ...any) {
	if p.Config.Verbose {
		p.logger().Printf(format, args...)
	}
}

// Separator returns the separator to use for img: the configured color, or
// the color detected from img's border when configured as "auto".
func (p *Pipeline) Separator(img image.Image) (imaging.Separator, error) {
	sep, auto, err := p.Config.SeparatorColor()
	if err != nil {
		return imaging.Separator{}, err
	}
	if !auto {
		return sep, nil
	}
	est, err := imaging.DetectSeparator(img)
	if err != nil {
		return imaging.Separator{}, err
	}
	return est.Separator, nil
}

// Split extracts and, when enabled, deskews the sub-images of one raster.
func (p *Pipeline) Split(ctx context.Context, img image.Image) (*SplitResult, error) {
	sep, err := p.Separator(img)
	if err != nil {
		return nil, err
	}

	regions, err := detection.ExtractAll(img, sep, p.Config.ExtractOptions())
	if err != nil {
		return nil, err
	}
	result := &SplitResult{Separator: sep, Regions: regions}
	if !p.Config.Deskew.Enabled || len(regions) == 0 {
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.Regions, result.Warnings, err = p.deskewAll(ctx, regions, sep)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// deskewAll corrects every region on a bounded worker pool. Regions that
// cannot be measured are kept unrotated with a warning, unless the failure
// policy is "fail".
func (p *Pipeline) deskewAll(ctx context.Context, regions []detection.SubImage, sep imaging.Separator) ([]detection.SubImage, []string, error) {
	out := make([]detection.SubImage, len(regions))
	notes := make([]string, len(regions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Config.Deskew.Workers)
	for i, region := range regions {
		i, region := i, region
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fixed, err := deskew.CorrectSkew(region, sep, p.Config.Deskew.Options)
			if err != nil {
				if p.Config.Deskew.OnFailure == config.OnFailureFail {
					return err
				}
				notes[i] = fmt.Sprintf("region %d kept unrotated: %v", region.Index, err)
				fixed = region
			}
			out[i] = fixed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var warnings []string
	for _, n := range notes {
		if n != "" {
			warnings = append(warnings, n)
		}
	}
	return out, warnings, nil
}

// ProcessFile splits one scan and saves its sub-images.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) Result {
	start := time.Now()
	res := Result{Source: path}

	finish := func(err error) Result {
		res.Duration = time.Since(start)
		if err != nil {
			res.Err = err
			res.Error = err.Error()
			p.logger().Printf("Failed to process %s: %v", path, err)
			return res
		}
		for _, w := range res.Warnings {
			p.logger().Printf("%s: %s", path, w)
		}
		p.debugf("Split %s into %d sub-images in %s", path, len(res.Outputs), res.Duration)
		return res
	}

	if err := ctx.Err(); err != nil {
		return finish(err)
	}

	img, err := p.Loader.Load(path)
	if err != nil {
		return finish(err)
	}

	split, err := p.Split(ctx, img)
	if err != nil {
		return finish(fmt.Errorf("%s: %w", path, err))
	}
	res.Separator = split.Separator.Hex()
	res.Warnings = split.Warnings
	for _, r := range split.Regions {
		res.Regions = append(res.Regions, r.Box)
		res.Skew = append(res.Skew, r.Skew)
	}

	if err := ctx.Err(); err != nil {
		return finish(err)
	}
	outputs, err := p.Store.Save(path, split.Regions)
	res.Outputs = outputs
	return finish(err)
}

// ProcessFiles processes scans on a pool of Config.Workers goroutines and
// returns their results in input order.
func (p *Pipeline) ProcessFiles(ctx context.Context, paths []string) *Report {
	report := &Report{Started: time.Now()}
	results := make([]Result, len(paths))

	var g errgroup.Group
	g.SetLimit(p.Config.Workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i] = p.ProcessFile(ctx, path)
			return nil
		})
	}
	_ = g.Wait() // tasks record their own errors

	for _, r := range results {
		report.Add(r)
	}
	report.Duration = time.Since(report.Started)
	return report
}

// ProcessDir processes every scan of dir matching Config.Patterns.
//
// Returns an error only when the directory cannot be listed; per-scan
// failures are recorded in the report.
func (p *Pipeline) ProcessDir(ctx context.Context, dir string) (*Report, error) {
	paths, err := ListImages(dir, p.Config.Patterns)
	if err != nil {
		return nil, err
	}
	p.debugf("Found %d scans in %s", len(paths), dir)

	report := p.ProcessFiles(ctx, paths)
	report.InputDir = dir
	return report, nil
}
