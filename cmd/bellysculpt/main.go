// bellysculpt runs the belly deformation engine on synthetic characters,
// one per shape parameter file, and reports what it changed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/bellysculpt/internal/character"
	"github.com/Faultbox/bellysculpt/internal/config"
	"github.com/Faultbox/bellysculpt/internal/host"
	"github.com/Faultbox/bellysculpt/internal/logger"
	"github.com/Faultbox/bellysculpt/internal/params"
	"github.com/Faultbox/bellysculpt/pkg/rig"
)

// tickInterval is how often the foreground loop polls a controller.
const tickInterval = 10 * time.Millisecond

// job is one character driven by one parameter file.
type job struct {
	id         string
	paramsPath string // empty uses a default full-intensity shape
	chara      *rig.Character
	ctl        *character.Controller
}

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if path := config.SaveConfigFlag(); path != "" {
		if err := cfg.SaveTo(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", path)
		return
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== bellysculpt ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	profile, err := host.LookupProfile(cfg.Host.Profile)
	if err != nil {
		logger.Error("unknown host profile", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	jobs, err := newJobs(cfg, profile, splitList(config.ParamsFlag()))
	if err != nil {
		logger.Error("preparing characters", zap.Error(err))
		os.Exit(1)
	}

	if err := runAll(ctx, jobs); err != nil {
		logger.Error("deformation failed", zap.Error(err))
		os.Exit(1)
	}
	for _, j := range jobs {
		printStats(j)
	}

	if out := config.OutFlag(); out != "" {
		if err := writeBlendShapes(jobs, out); err != nil {
			logger.Error("writing blend shapes", zap.Error(err))
			os.Exit(1)
		}
	}

	if config.WatchFlag() {
		if err := watch(ctx, jobs); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("watching parameter files", zap.Error(err))
			os.Exit(1)
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// newJobs builds one synthetic character per parameter file. A file
// name.yaml may be accompanied by name.rig.yaml with rig options.
func newJobs(cfg *config.Config, profile *host.Profile, paths []string) ([]*job, error) {
	if len(paths) == 0 {
		paths = []string{""}
	}
	diag := logger.NewDiagnostics()

	jobs := make([]*job, 0, len(paths))
	for i, path := range paths {
		o := rig.DefaultOptions()
		o.ID = fmt.Sprintf("chara%d", i)
		if path != "" {
			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			o.ID = base
			rigPath := filepath.Join(filepath.Dir(path), base+".rig.yaml")
			if _, err := os.Stat(rigPath); err == nil {
				if o, err = rig.LoadOptions(rigPath); err != nil {
					return nil, err
				}
				if o.ID == rig.DefaultOptions().ID {
					o.ID = base
				}
			}
		}

		chara := rig.New(profile, o)
		opts := character.OptionsFromConfig(cfg, profile)
		opts.Diagnostics = diag
		jobs = append(jobs, &job{
			id:         o.ID,
			paramsPath: path,
			chara:      chara,
			ctl:        character.New(chara, opts),
		})
	}
	return jobs, nil
}

// loadShape reads the job's parameter file.
func (j *job) loadShape() (params.Shape, error) {
	if j.paramsPath == "" {
		s := params.Default()
		s.Intensity = params.MaxIntensity
		return s, nil
	}
	return params.Load(j.paramsPath)
}

// runAll inflates every character concurrently. Each controller is only
// touched by its own goroutine.
func runAll(ctx context.Context, jobs []*job) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		g.Go(func() error {
			shape, err := j.loadShape()
			if err != nil {
				return fmt.Errorf("%s: %w", j.id, err)
			}
			j.ctl.SetShape(shape)
			j.ctl.Inflate(character.Flags{FreshStart: true})
			return settle(ctx, j.ctl)
		})
	}
	return g.Wait()
}

// settle ticks ctl until no computation or timer is pending.
func settle(ctx context.Context, ctl *character.Controller) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		ctl.Tick()
		if ctl.Idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func printStats(j *job) {
	s := j.ctl.Shape()
	fmt.Printf("%s: intensity %.1f\n", j.id, s.Intensity)
	for _, m := range j.ctl.Meshes() {
		kind := "skin"
		if m.Clothing {
			kind = "cloth"
		}
		fmt.Printf("  %-24s %-5s %-16s region %5d  altered %5d  max %.4f\n",
			m.Key, kind, m.State, m.Region, m.Altered, m.MaxDisplacement)
	}
}

// writeBlendShapes distills every character's current shape and writes one
// blob per character. With several characters the id is added to out.
func writeBlendShapes(jobs []*job, out string) error {
	for _, j := range jobs {
		j.ctl.CreateBlendShapes("", false)
		blob, err := j.ctl.EncodeBlendShapes()
		if err != nil {
			return fmt.Errorf("%s: %w", j.id, err)
		}
		path := out
		if len(jobs) > 1 {
			ext := filepath.Ext(out)
			path = strings.TrimSuffix(out, ext) + "_" + j.id + ext
		}
		if err := os.WriteFile(path, blob, 0644); err != nil {
			return err
		}
		logger.Info("blend shapes written", zap.String("character", j.id), zap.String("path", path),
			zap.Int("meshes", len(j.ctl.BlendShapes())))
	}
	return nil
}
