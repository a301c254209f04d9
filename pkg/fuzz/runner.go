package fuzz

import (
	"context"
	"fmt"
	"log"
	"runtime"

	"github.com/google/uuid"
)

// Runner 运行驱动器：每轮决定种子复用或新生成、物化、求值、更新种群、分派指令
type Runner struct {
	provider  Provider
	evaluator Evaluator

	// Mutator 外部变异算子（可选；nil时跳过变异）
	Mutator Mutator
	// Hooks 生命周期钩子（可选）
	Hooks Hooks
	// Reporter 报告接收方（可选；其失败不影响运行）
	Reporter Reporter
}

// NewRunner 创建运行驱动器
func NewRunner(provider Provider, evaluator Evaluator) *Runner {
	return &Runner{provider: provider, evaluator: evaluator}
}

// Run 执行迭代循环，直到取消或收到STOP指令
// 协作方抛出的错误不被捕获，原样返回给调用方
func (rn *Runner) Run(ctx context.Context, desc Description, stats *Statistics) error {
	if rn.provider == nil || rn.evaluator == nil {
		return fmt.Errorf("fuzz: runner requires provider and evaluator")
	}

	runID := uuid.NewString()
	reducer := NewReducer(rn.provider, stats)
	rng := stats.Rand()
	config := stats.Config

	stats.start()
	if rn.Hooks.SetUp != nil {
		rn.Hooks.SetUp()
	}
	log.Printf("[Runner] Run %s started (%d parameters)", runID, len(desc.Parameters()))

	for {
		// 取消只在循环顶部轮询；进行中的求值总是执行完毕
		if ctx != nil && ctx.Err() != nil {
			break
		}
		if rn.Hooks.IsCancelled != nil && rn.Hooks.IsCancelled() {
			break
		}

		// 1. 种子复用或新生成
		var node *Node
		if rng.Float64() < config.ProbSeedRetrievalInsteadGenerating && stats.Minset.IsNotEmpty() {
			node = stats.Minset.GetRandomSeed(rng)
			if rn.Mutator != nil {
				node = rn.Mutator.Mutate(rng, node)
			}
		} else {
			fresh, err := reducer.ProduceNode(rng, desc)
			if err != nil {
				// 未被吞掉的NoSeedValue或配置错误：对本次运行致命
				log.Printf("[Runner] Run %s aborted: %v", runID, err)
				return err
			}
			node = fresh
			if rn.Mutator != nil && rng.Float64() < config.ProbMutationRate {
				node = rn.Mutator.Mutate(rng, node)
			}
		}

		// 2. 协作让出点
		runtime.Gosched()

		// 3. 总迭代计数
		iteration := stats.incrementRuns()
		if rn.Hooks.BeforeIteration != nil {
			rn.Hooks.BeforeIteration(iteration)
		}

		// 4. 硬不变量：违反即panic，绝不恢复
		node.CheckInvariant()

		// 5. 自底向上物化（按Result标识去重）
		values := Materialize(node)

		// 6. 求值钩子；失败不捕获
		feedback, err := rn.evaluator.Evaluate(desc, values)
		if err != nil {
			log.Printf("[Runner] Run %s evaluator failed at iteration %d: %v", runID, iteration, err)
			return err
		}

		// 7. 更新种群
		event := stats.Minset.Put(rng, feedback, node)
		rn.report(node, feedback, event)

		// 8. 指令分派
		switch feedback.Control() {
		case ControlContinue:
			if rn.Hooks.AfterIteration != nil {
				rn.Hooks.AfterIteration(iteration)
			}
			rn.finalize(iteration)
		case ControlStop:
			rn.finalize(iteration)
			log.Printf("[Runner] Run %s stopped by feedback after %d iterations", runID, iteration)
			rn.summary(stats)
			return nil
		case ControlPass:
			rn.finalize(iteration)
		default:
			panic(fmt.Sprintf("fuzz: unknown control directive %d", feedback.Control()))
		}
	}

	log.Printf("[Runner] Run %s cancelled after %d iterations", runID, stats.TotalRuns())
	rn.summary(stats)
	return nil
}

// Fork 以统计状态的深拷贝启动独立运行（隔离复制，不共享可变状态）
// 返回forked统计与承载运行结果的通道
func (rn *Runner) Fork(ctx context.Context, desc Description, stats *Statistics) (*Statistics, <-chan error) {
	forked := stats.Fork()
	done := make(chan error, 1)
	go func() {
		done <- rn.Run(ctx, desc, forked)
	}()
	return forked, done
}

// report 上报单轮结果；报告方失败被吞掉，不影响运行正确性
func (rn *Runner) report(node *Node, feedback Feedback, event MinsetEvent) {
	if rn.Reporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Runner] Reporter panicked (ignored): %v", r)
		}
	}()
	rn.Reporter.Report(node, feedback, event)
}

// summary 上报最终统计摘要；失败同样被吞掉
func (rn *Runner) summary(stats *Statistics) {
	if rn.Reporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Runner] Reporter summary panicked (ignored): %v", r)
		}
	}()
	rn.Reporter.Summary(stats)
}

// finalize 每轮收尾
func (rn *Runner) finalize(iteration int64) {
	if rn.Hooks.FinalizeReport != nil {
		rn.Hooks.FinalizeReport(iteration)
	}
}

// Materialize 自底向上物化Node的全部参数值
// 以Result标识为键做备忘：同一Result出现在多个参数位置时只构造一次
func Materialize(node *Node) []interface{} {
	memo := make(map[uint64]interface{})
	values := make([]interface{}, len(node.Result))
	for i, res := range node.Result {
		values[i] = materialize(res, memo)
	}
	return values
}

func materialize(res *Result, memo map[uint64]interface{}) interface{} {
	if v, ok := memo[res.id]; ok {
		return v
	}

	var v interface{}
	switch res.Kind {
	case ResultSimple:
		v = res.Value
	case ResultKnown:
		if res.Build != nil {
			v = res.Build(res.Value)
		} else {
			v = res.Value
		}
	case ResultRecursive:
		args := materializeAll(res.ConstructArgs, memo)
		v = res.Construct.Create(args)
		for _, call := range res.Modify {
			call.Routine.Call(v, materializeAll(call.Args, memo))
		}
	case ResultCollection:
		v = res.Construct.NewCollection(res.Iterations)
		for i, call := range res.Modify {
			call.Routine.SetElement(v, i, materializeAll(call.Args, memo))
		}
	case ResultEmpty:
		v = res.EmptyRoutine.Create(nil)
	default:
		panic(fmt.Sprintf("fuzz: unknown result kind %d", res.Kind))
	}

	memo[res.id] = v
	return v
}

func materializeAll(results []*Result, memo map[uint64]interface{}) []interface{} {
	args := make([]interface{}, len(results))
	for i, res := range results {
		args[i] = materialize(res, memo)
	}
	return args
}
