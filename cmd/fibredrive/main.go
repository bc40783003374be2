// Command fibredrive is a small CLI front-end driving the ticker,
// priority-ordering and thread-pool drain scenarios, one subcommand per
// scenario, following the
// project's own go-cli-architecture command template
// (*cli.Command construction, cli.Exit error reporting).
package main

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"fibre"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "fibredrive",
		Usage: "drive fibre scheduler/threadpool scenarios from the command line",
		Commands: []*cli.Command{
			tickerCommand(),
			priorityCommand(),
			threadpoolCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func tickerCommand() *cli.Command {
	return &cli.Command{
		Name:    "ticker",
		Aliases: []string{"t"},
		Usage:   "run a fibre that yields N times, driven one cycle per tick",

		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "yields",
				Value: 5,
				Usage: "number of times the fibre yields before finishing",
			},
			&cli.Float64Flag{
				Name:  "step",
				Value: 0.1,
				Usage: "seconds advanced per Update cycle",
			},
		},

		Action: tickerAction,
	}
}

func tickerAction(c *cli.Context) error {
	yields := c.Int("yields")
	step := c.Float64("step")
	if yields < 0 {
		return cli.Exit("yields must be >= 0", 1)
	}

	sched := fibre.NewScheduler(fibre.DefaultSchedulerParams(), nil)
	id := sched.Start(fibre.NewFrame("ticker", fibre.Spawn(func(y *fibre.Yielder) {
		for i := 0; i < yields; i++ {
			fmt.Printf("tick %d\n", i)
			y.Yield()
		}
	})), 0, "ticker")

	now := 0.0
	for cycle := 0; cycle <= yields; cycle++ {
		now += step
		if err := sched.UpdateAt(now); err != nil {
			return cli.Exit(fmt.Sprintf("update failed: %v", err), 1)
		}
	}

	fmt.Printf("✓ done: running=%v empty=%v\n", id.Running(), sched.Empty())
	return nil
}

func priorityCommand() *cli.Command {
	return &cli.Command{
		Name:  "priority",
		Usage: "start fibres across declared priority bands and print resume order",

		Flags: []cli.Flag{
			&cli.IntSliceFlag{
				Name:  "priorities",
				Value: cli.NewIntSlice(300, 100, 400, -200, 0, 150),
				Usage: "priority of each fibre started, in start order",
			},
		},

		Action: priorityAction,
	}
}

func priorityAction(c *cli.Context) error {
	priorities := c.IntSlice("priorities")
	if len(priorities) == 0 {
		return cli.Exit("priorities must be non-empty", 1)
	}

	var bands []fibre.Band
	seen := map[int32]bool{}
	for _, p := range priorities {
		pr := int32(p)
		if !seen[pr] {
			seen[pr] = true
			bands = append(bands, fibre.Band{Priority: pr, Capacity: 16})
		}
	}
	params := fibre.DefaultSchedulerParams()
	params.Bands = bands
	sched := fibre.NewScheduler(params, nil)

	order := make(chan string, len(priorities))
	for _, p := range priorities {
		pr := int32(p)
		label := fmt.Sprintf("p%d", pr)
		sched.Start(fibre.NewFrame(label, fibre.Spawn(func(y *fibre.Yielder) {
			order <- label
			y.Yield()
		})), pr, label)
	}

	for i := 0; i < 2; i++ {
		if err := sched.Update(); err != nil {
			return cli.Exit(fmt.Sprintf("update failed: %v", err), 1)
		}
	}
	close(order)

	fmt.Print("✓ resume order:")
	for label := range order {
		fmt.Printf(" %s", label)
	}
	fmt.Println()
	return nil
}

func threadpoolCommand() *cli.Command {
	return &cli.Command{
		Name:  "threadpool",
		Usage: "drain N fibres across a worker pool and report completion",

		Flags: []cli.Flag{
			&cli.IntFlag{Name: "fibres", Value: 1000, Usage: "number of fibres to start"},
			&cli.IntFlag{Name: "workers", Value: 4, Usage: "worker goroutine count (0 = manual mode)"},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "Wait timeout"},
		},

		Action: threadpoolAction,
	}
}

func threadpoolAction(c *cli.Context) error {
	n := c.Int("fibres")
	workers := c.Int("workers")
	timeout := c.Duration("timeout")
	if n <= 0 {
		return cli.Exit("fibres must be > 0", 1)
	}

	params := fibre.DefaultThreadPoolParams()
	params.Workers = &workers
	pool := fibre.NewThreadPool(params, nil)
	defer pool.Close()

	var counter atomic.Int64
	for i := 0; i < n; i++ {
		pool.Start(fibre.NewFrame("worker", fibre.Spawn(func(y *fibre.Yielder) {
			y.Yield()
			counter.Add(1)
		})), 0, "worker")
	}

	if workers == 0 {
		pool.UpdateTimeSlice(timeout)
	} else if !pool.Wait(timeout) {
		return cli.Exit("timed out waiting for pool to drain", 1)
	}

	fmt.Printf("✓ counter=%d empty=%v\n", counter.Load(), pool.Empty())
	return nil
}
