package main

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/bayespam/app/server"
	"github.com/umputun/bayespam/lib/bayespam"
)

//go:embed data/samples.csv
var seedFS embed.FS

type options struct {
	Server serverCmd `command:"server" description:"run spam classification API server"`
	Train  trainCmd  `command:"train" description:"train a model from csv datasets"`

	Dbg bool `long:"dbg" env:"DEBUG" description:"debug mode"`
}

type serverCmd struct {
	Listen     string  `long:"listen" env:"LISTEN" default:":8080" description:"listen address"`
	Model      string  `long:"model" env:"MODEL" default:"bayespam.model" description:"model file"`
	Threshold  float64 `long:"threshold" env:"THRESHOLD" default:"0.8" description:"spam probability threshold"`
	Smoothing  float64 `long:"smoothing" env:"SMOOTHING" default:"1.0" description:"laplace smoothing factor"`
	AuthPasswd string  `long:"auth" env:"AUTH" description:"basic auth password for user \"bayespam\", disabled if empty"`
	NoWatch    bool    `long:"no-watch" env:"NO_WATCH" description:"disable model file watching"`

	Logger struct {
		Enabled    bool   `long:"enabled" env:"ENABLED" description:"enable rotated results log"`
		FileName   string `long:"file" env:"FILE" default:"bayespam.log" description:"location of results log"`
		MaxSize    int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"maximum size in megabytes before it gets rotated"`
		MaxBackups int    `long:"max-backups" env:"MAX_BACKUPS" default:"10" description:"maximum number of old log files to retain"`
	} `group:"logger" namespace:"logger" env-namespace:"LOGGER"`

	dbg bool
}

type trainCmd struct {
	Output string `short:"o" long:"output" env:"OUTPUT" default:"bayespam.model" description:"output model file"`
	Update bool   `long:"update" env:"UPDATE" description:"merge counts into the existing output model"`

	Args struct {
		Datasets []string `positional-arg-name:"dataset.csv" required:"1" description:"csv dataset files, text and label columns with a header"`
	} `positional-args:"yes"`
}

var revision = "local"

func main() {
	fmt.Printf("bayespam %s\n", revision)
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	p.CommandHandler = func(command flags.Commander, args []string) error {
		setupLog(opts.Dbg)
		opts.Server.dbg = opts.Dbg
		return command.Execute(args)
	}
	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type != flags.ErrHelp {
				os.Exit(2)
			}
			os.Exit(0)
		}
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// Execute runs the API server until interrupted.
func (cmd *serverCmd) Execute(_ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		// catch signal and invoke graceful termination
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Printf("[WARN] interrupt signal")
		cancel()
	}()

	if cmd.Threshold < 0 || cmd.Threshold > 1 {
		log.Printf("[WARN] threshold %v out of [0,1], using default %v", cmd.Threshold, bayespam.DefaultThreshold)
		cmd.Threshold = bayespam.DefaultThreshold
	}
	if cmd.Smoothing < 0 {
		log.Printf("[WARN] smoothing %v is negative, using default %v", cmd.Smoothing, bayespam.DefaultSmoothing)
		cmd.Smoothing = bayespam.DefaultSmoothing
	}

	model, err := cmd.loadModel()
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	srv := server.New(server.Config{
		Version:    revision,
		ListenAddr: cmd.Listen,
		Classifier: cmd.makeClassifier(model),
		AuthPasswd: cmd.AuthPasswd,
		ResultLog:  cmd.makeResultLogWriter(),
		Dbg:        cmd.dbg,
	})

	if !cmd.NoWatch {
		go func() {
			if err := watchModel(ctx, cmd.Model, func(data []byte) error {
				updated, err := bayespam.LoadModel(data)
				if err != nil {
					return err
				}
				srv.SetClassifier(cmd.makeClassifier(updated))
				log.Printf("[INFO] model reloaded from %s, %d tokens", cmd.Model, updated.Len())
				return nil
			}); err != nil {
				log.Printf("[WARN] model watcher terminated: %v", err)
			}
		}()
	}

	return srv.Run(ctx)
}

// loadModel reads the model file, or trains a seed model from the embedded
// dataset when the file doesn't exist. The seed model is built once at startup
// and never mutated.
func (cmd *serverCmd) loadModel() (*bayespam.Model, error) {
	data, err := os.ReadFile(cmd.Model) //nolint:gosec // path is controlled by the app
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read model file %s: %w", cmd.Model, err)
		}
		log.Printf("[WARN] model file %s not found, training seed model from embedded dataset", cmd.Model)
		seed, err := seedFS.ReadFile("data/samples.csv")
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded dataset: %w", err)
		}
		model, stats, err := bayespam.Train(bayespam.Samples(bytes.NewReader(seed)), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to train seed model: %w", err)
		}
		log.Printf("[INFO] seed model trained, %s", stats)
		return model, nil
	}

	model, err := bayespam.LoadModel(data)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] model loaded from %s, %d tokens", cmd.Model, model.Len())
	return model, nil
}

func (cmd *serverCmd) makeClassifier(m *bayespam.Model) *bayespam.Classifier {
	c := bayespam.NewClassifier(m)
	c.Threshold = cmd.Threshold
	c.Smoothing = cmd.Smoothing
	return c
}

// makeResultLogWriter creates a rotated log writer for classification results
// or nil if disabled.
func (cmd *serverCmd) makeResultLogWriter() io.Writer {
	if !cmd.Logger.Enabled {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   cmd.Logger.FileName,
		MaxSize:    cmd.Logger.MaxSize,
		MaxBackups: cmd.Logger.MaxBackups,
		Compress:   true,
	}
}

// Execute trains a model from the given datasets and writes it atomically.
func (cmd *trainCmd) Execute(_ []string) error {
	files := make([]*os.File, 0, len(cmd.Args.Datasets))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	errs := new(multierror.Error)
	for _, name := range cmd.Args.Datasets {
		f, err := os.Open(name) //nolint:gosec // path is controlled by the user running the trainer
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to open dataset %s: %w", name, err))
			continue
		}
		files = append(files, f)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	var existing *bayespam.Model
	if cmd.Update {
		data, err := os.ReadFile(cmd.Output) //nolint:gosec // path is controlled by the user running the trainer
		switch {
		case err == nil:
			if existing, err = bayespam.LoadModel(data); err != nil {
				return fmt.Errorf("failed to load existing model %s: %w", cmd.Output, err)
			}
			log.Printf("[INFO] merging with existing model %s, %d tokens", cmd.Output, existing.Len())
		case os.IsNotExist(err):
			log.Printf("[INFO] no existing model at %s, training from scratch", cmd.Output)
		default:
			return fmt.Errorf("failed to read existing model %s: %w", cmd.Output, err)
		}
	}

	seqs := make([]iter.Seq2[bayespam.Sample, error], 0, len(files))
	for _, f := range files {
		seqs = append(seqs, bayespam.Samples(f))
	}

	started := time.Now()
	model, stats, err := bayespam.Train(bayespam.ChainSamples(seqs...), existing)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	log.Printf("[INFO] training done in %v", time.Since(started).Round(time.Millisecond))
	log.Printf("[INFO] %s", stats)

	if err := writeModel(cmd.Output, model.Bytes()); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	log.Printf("[INFO] model saved to %s", cmd.Output)
	return nil
}

// writeModel publishes the model atomically, temp file and rename. an
// interrupted run leaves any previously persisted model untouched.
func writeModel(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// watchModel watches the model file and calls onChange with the new content on
// every write.
func watchModel(ctx context.Context, path string, onChange func([]byte) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// watch the directory, not the file: atomic rename replaces the inode
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to add %s to watcher: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] stopping watcher for %s, %v", path, ctx.Err())
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			data, e := os.ReadFile(path) //nolint:gosec // path is controlled by the app
			if e != nil {
				log.Printf("[WARN] failed to read updated model %s: %v", path, e)
				continue
			}
			if e = onChange(data); e != nil {
				log.Printf("[WARN] failed to load updated model %s: %v", path, e)
			}
		case e, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[WARN] watcher error: %v", e)
		}
	}
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
