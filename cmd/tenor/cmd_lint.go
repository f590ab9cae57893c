package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tenor/internal/elaborate/pipeline"
)

var (
	lintWatch    bool
	lintDebounce time.Duration
)

// lintCmd elaborates a root path and reports errors, optionally watching
// the directory tree for changes and re-elaborating on every write.
var lintCmd = &cobra.Command{
	Use:   "lint <root.tenor>",
	Short: "Elaborate and report errors, optionally watching for changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootPath := args[0]
		runLintOnce(rootPath)
		if !lintWatch {
			return nil
		}
		return runLintWatch(rootPath)
	},
}

func runLintOnce(rootPath string) {
	_, err := pipeline.Elaborate(rootPath)
	if err != nil {
		fmt.Printf("%s: invalid: %s\n", rootPath, err)
		return
	}
	fmt.Printf("%s: valid\n", rootPath)
}

// runLintWatch watches rootPath's directory tree for .tenor file writes,
// debouncing rapid saves before re-elaborating.
func runLintWatch(rootPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("lint: creating watcher: %w", err)
	}
	defer watcher.Close()

	watchDir := rootPath
	if info, statErr := os.Stat(rootPath); statErr == nil && !info.IsDir() {
		watchDir = filepath.Dir(rootPath)
	}
	if err := addRecursive(watcher, watchDir); err != nil {
		return fmt.Errorf("lint: watching %s: %w", watchDir, err)
	}
	logger.Info("watching for changes", zap.String("dir", watchDir))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var debounceTimer *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".tenor" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(lintDebounce, func() {
				runLintOnce(rootPath)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", zap.Error(err))
		case <-sigCh:
			return nil
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func init() {
	lintCmd.Flags().BoolVar(&lintWatch, "watch", false, "Watch the directory tree and re-lint on every change")
	lintCmd.Flags().DurationVar(&lintDebounce, "debounce", 500*time.Millisecond, "Debounce interval for rapid saves")
}
