// Command taskloopd is a small demonstration host: it wires loop.Host to an
// InlineHost adapter, runs a tree of Tasks that exercise every higher-level
// package, and logs the Host's Stats and tree Dump as they progress.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/johanjanssens/taskloop/awaitall"
	"github.com/johanjanssens/taskloop/iter"
	"github.com/johanjanssens/taskloop/loop"
	tsync "github.com/johanjanssens/taskloop/sync"
	"github.com/johanjanssens/taskloop/timeout"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pollEvery := 2 * time.Millisecond
	if v := os.Getenv("TASKLOOPD_POLL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pollEvery = time.Duration(n) * time.Millisecond
		}
	}

	adapter := loop.NewInlineHost(pollEvery)
	defer adapter.Close()

	host := loop.NewHost(adapter, loop.WithLogger(logger))

	root := loop.Run(host, "demo-root", func(t *loop.Task, _ ...any) (any, error) {
		logger.Info("root started")

		sem := tsync.NewSemaphore(2)
		queue := tsync.NewQueue[int](16)
		gate := tsync.NewEvent()

		for i := 0; i < 5; i++ {
			queue.Push(i)
		}

		children := make([]*loop.Task, 0, 5)
		for i := 0; i < 5; i++ {
			c := loop.Run(nil, "worker", func(_ *loop.Task, args ...any) (any, error) {
				if err := sem.Acquire(context.Background()); err != nil {
					return nil, err
				}
				defer sem.Release()

				item, err := queue.Pop(context.Background())
				if err != nil {
					return nil, err
				}

				if item == 0 {
					if err := gate.Wait(context.Background()); err != nil {
						return nil, err
					}
				}

				time.Sleep(5 * time.Millisecond)
				return item * item, nil
			})
			children = append(children, c)
		}

		loop.Run(nil, "gate-opener", func(_ *loop.Task, _ ...any) (any, error) {
			time.Sleep(10 * time.Millisecond)
			gate.Set()
			return nil, nil
		})

		for i, res := range iter.All(children...) {
			if res.Err != nil {
				logger.Warn("worker failed", "index", i, "error", res.Err)
				continue
			}
			logger.Info("worker finished", "index", i, "value", res.Value)
		}

		results, err := awaitall.Results(children...)
		if err != nil {
			logger.Warn("awaitall saw an error", "error", err)
		}
		return results, nil
	})

	go func() {
		for !root.Completed() {
			logger.Debug("stats", "stats", host.Stats())
			time.Sleep(20 * time.Millisecond)
		}
	}()

	if err := timeout.After(root, 5*time.Second); err != nil {
		logger.Error("root did not finish in time", "error", err)
		os.Exit(1)
	}

	value, err := root.Wait(ctx)
	logger.Info("root finished", "value", value, "error", err)
	logger.Info("final tree", "dump", loop.Dump(root))
}
