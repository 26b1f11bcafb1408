package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	fileicon "github.com/babs/file-icon"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// extract loads the icons of paths concurrently and writes them out. Every
// path is attempted; failures are returned together.
func (c *cli) extract(ctx context.Context, paths []string) error {
	enc, err := fileicon.EncoderFor(c.cfg.Format, c.cfg.ICOSizes)
	if err != nil {
		return err
	}
	opts := append(append([]fileicon.Option{}, c.loaderOptions...),
		fileicon.WithEncoder(enc),
		fileicon.WithLogger(c.logger),
	)
	loader, err := fileicon.NewLoader(opts...)
	if err != nil {
		return fmt.Errorf("create icon loader: %w", err)
	}

	toStdout := c.cfg.OutputDir == stdoutDir
	if !toStdout {
		if err := os.MkdirAll(c.cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("create output dir %s: %w", c.cfg.OutputDir, err)
		}
	}
	names := outputNames(paths, enc.Format())
	timeout := time.Duration(c.cfg.TimeoutSeconds) * time.Second

	var (
		mu     sync.Mutex
		errs   *multierror.Error
		stdout sync.Mutex
	)
	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			data, err := wait(ctx, loader.LoadIcon(path), timeout)
			if err == nil {
				if toStdout {
					stdout.Lock()
					err = writeStdout(c, data, enc.Format())
					stdout.Unlock()
				} else {
					out := filepath.Join(c.cfg.OutputDir, names[i])
					err = os.WriteFile(out, data, 0644)
					if err == nil {
						c.logger.Info("icon written", "path", path, "output", out, "bytes", len(data))
					}
				}
			}
			if err != nil {
				c.logger.Error("icon extraction failed", "path", path, "err", err)
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", path, err))
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	return errs.ErrorOrNil()
}

// wait bounds the wait for p by timeout. The load itself keeps running.
func wait(ctx context.Context, p *fileicon.Pending, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	data, err := p.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("icon not ready after %s: %w", timeout, err)
	}
	return data, err
}

func writeStdout(c *cli, data []byte, format fileicon.Format) error {
	if _, err := c.stdout.Write(data); err != nil {
		return fmt.Errorf("write stdout: %w", err)
	}
	if format == fileicon.FormatDataURL {
		if _, err := fmt.Fprintln(c.stdout); err != nil {
			return fmt.Errorf("write stdout: %w", err)
		}
	}
	return nil
}

// outputNames returns the output file name for each path: the base name with
// the format's extension appended. A name already taken gets the first free
// numeric suffix.
func outputNames(paths []string, format fileicon.Format) []string {
	names := make([]string, len(paths))
	used := make(map[string]bool, len(paths))
	next := make(map[string]int, len(paths))
	for i, path := range paths {
		base := filepath.Base(filepath.Clean(path))
		if base == "." || base == string(filepath.Separator) || base == "" {
			base = "root"
		}
		name := base + "." + format.Ext()
		for n := next[base]; used[name]; n++ {
			name = base + "-" + strconv.Itoa(n+1) + "." + format.Ext()
			next[base] = n + 1
		}
		used[name] = true
		names[i] = name
	}
	return names
}
