package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"typefuzz/pkg/fuzz"
	"typefuzz/pkg/solidity"
)

// 命令行参数
var (
	method        = flag.String("method", "deposit(address,uint256)", "Method signature to fuzz")
	configPath    = flag.String("config", "./config/fuzzer.yaml", "Configuration file path")
	duration      = flag.Duration("duration", 0, "Maximum fuzzing duration (0 = until STOP)")
	maxIterations = flag.Int64("max-iterations", 0, "Maximum iterations (0 = unlimited)")
	forks         = flag.Int("forks", 0, "Number of forked runs alongside the main run")
	policy        = flag.String("policy", "full", "Retention policy (full, full-keep-first, single-value, single-seed)")
	randomSeed    = flag.Int64("seed", 0, "Random seed (0 = time-based)")
	verbose       = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	// 设置日志
	if *verbose {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	// 加载配置
	config, err := fuzz.LoadConfiguration(*configPath)
	if err != nil {
		log.Printf("Warning: Failed to load config file, using defaults: %v", err)
		config = fuzz.DefaultConfiguration()
	}

	// 构建目标描述
	desc, err := solidity.NewMethodDescription(*method)
	if err != nil {
		log.Fatalf("Invalid method signature: %v", err)
	}

	// 构建协作方
	provider, err := solidity.NewProvider()
	if err != nil {
		log.Fatalf("Failed to create provider: %v", err)
	}
	target := solidity.NewVaultTarget()

	runner := fuzz.NewRunner(provider, target)
	runner.Mutator = solidity.NewDefaultMutator()
	if *verbose {
		runner.Reporter = &consoleReporter{}
	}

	// 迭代上限通过取消钩子实现
	var iterations int64
	if *maxIterations > 0 {
		runner.Hooks.IsCancelled = func() bool {
			return atomic.LoadInt64(&iterations) >= *maxIterations
		}
		runner.Hooks.FinalizeReport = func(int64) {
			atomic.AddInt64(&iterations, 1)
		}
	}

	minset, err := buildMinset(config, *policy)
	if err != nil {
		log.Fatalf("Invalid retention policy: %v", err)
	}

	seed := *randomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	stats := fuzz.NewStatistics(config, minset, seed)

	// 设置信号处理与运行时长
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received interrupt signal, stopping...")
		cancel()
	}()

	log.Printf("Starting fuzzing for method: %s (policy=%s, forks=%d)", *method, *policy, *forks)
	startTime := time.Now()

	// 派生运行
	forkedStats := make([]*fuzz.Statistics, 0, *forks)
	forkedDone := make([]<-chan error, 0, *forks)
	for i := 0; i < *forks; i++ {
		fs, done := runner.Fork(ctx, desc, stats)
		forkedStats = append(forkedStats, fs)
		forkedDone = append(forkedDone, done)
	}

	// 主运行
	if err := runner.Run(ctx, desc, stats); err != nil {
		log.Fatalf("Fuzzing failed: %v", err)
	}
	for i, done := range forkedDone {
		if err := <-done; err != nil {
			log.Printf("Warning: Fork #%d failed: %v", i+1, err)
		}
	}

	printStatistics(stats, forkedStats, target, time.Since(startTime))
}

// buildMinset 按策略名构建保留种群
func buildMinset(config *fuzz.Configuration, name string) (fuzz.Minset, error) {
	energy := config.Energy
	switch name {
	case "full":
		return fuzz.NewFullMinset(energy, false, config.ProbUpdateSeedInsteadOfKeepOld), nil
	case "full-keep-first":
		return fuzz.NewFullMinset(energy, true, 0), nil
	case "single-value":
		return fuzz.NewTrackingSingleValueMinset(energy, fuzz.KeepLast), nil
	case "single-seed":
		return fuzz.NewSingleSeedMinset(fuzz.KeepLast), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

// consoleReporter 详细模式下把新反馈事件打到日志
type consoleReporter struct{}

func (consoleReporter) Report(node *fuzz.Node, feedback fuzz.Feedback, event fuzz.MinsetEvent) {
	if event == fuzz.EventNothingNew {
		return
	}
	log.Printf("[Reporter] %s: feedback=%v (%d parameters)", event, feedback, len(node.Result))
}

func (consoleReporter) Summary(stats *fuzz.Statistics) {
	log.Printf("[Reporter] Summary: %d iterations, %d feedback keys retained",
		stats.TotalRuns(), stats.Minset.Size())
}

// printStatistics 打印最终统计信息
func printStatistics(stats *fuzz.Statistics, forked []*fuzz.Statistics, target *solidity.VaultTarget, duration time.Duration) {
	fmt.Println("\n=== Fuzzing Results ===")
	fmt.Printf("Total Iterations: %d\n", stats.TotalRuns())
	fmt.Printf("Feedback Keys Retained: %d\n", stats.Minset.Size())
	fmt.Printf("Execution Time: %v\n", duration)
	fmt.Printf("Bug Found: %t\n", target.BugFound())

	if missed := stats.MissedTypes(); len(missed) > 0 {
		fmt.Println("\nMissed Types:")
		for t, count := range missed {
			fmt.Printf("  %v: %d\n", t, count)
		}
	}

	if efficiencies := stats.Minset.MutationEfficiencies(); len(efficiencies) > 0 {
		fmt.Println("\nMutation Efficiencies:")
		for op, eff := range efficiencies {
			fmt.Printf("  %s: %.4f\n", op, eff)
		}
	}

	for i, fs := range forked {
		fmt.Printf("\nFork #%d: %d iterations, %d feedback keys\n",
			i+1, fs.TotalRuns(), fs.Minset.Size())
	}
	fmt.Println("=======================")
}
