// Package fuzz 提供通用的反馈驱动模糊测试引擎
// 核心组件: 值模型(Seed/Routine/Result/Node)、值归约器、种子池统计(minset)、运行驱动器
package fuzz

import (
	"math/rand"
)

// Type 参数类型的不透明描述符
// 由协作方定义，必须是可比较类型（用作map键）
type Type interface{}

// Control 反馈携带的继续指令
type Control int

const (
	// ControlContinue 继续迭代并触发每轮通知
	ControlContinue Control = iota
	// ControlPass 继续迭代但不触发每轮通知
	ControlPass
	// ControlStop 终止本次运行
	ControlStop
)

// String 返回指令名称
func (c Control) String() string {
	switch c {
	case ControlContinue:
		return "CONTINUE"
	case ControlPass:
		return "PASS"
	case ControlStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Feedback 协作方提供的执行结果信号
// 实现类型必须可比较（用作minset的map键），并携带继续指令
type Feedback interface {
	// Control 返回本次反馈的继续指令
	Control() Control
}

// WeightedFeedback 带全序权重的反馈扩展
// 权重用于更丰富的统计变体中的二级排序（如"最接近的已知尝试"）
type WeightedFeedback interface {
	Feedback

	// Weight 返回用于二级排序的权重
	Weight() float64
}

// emptyFeedback 规范的空反馈单例类型
// 与自身相等，且永不推进探索（指令为PASS）
type emptyFeedback struct{}

func (emptyFeedback) Control() Control { return ControlPass }

// EmptyFeedback 空反馈单例，用于简单场景和测试
var EmptyFeedback Feedback = emptyFeedback{}

// Description 描述一次运行的目标：参数类型列表
type Description interface {
	// Parameters 返回目标参数的类型列表（有序）
	Parameters() []Type
}

// Provider 种子生成协作方
type Provider interface {
	// Generate 为指定类型生成候选Seed序列
	// 缓存路径上对(description, type)必须是纯函数（每类型每次运行只调用一次）
	Generate(desc Description, t Type) []Seed
}

// Scope 单个调用点的生成定制信息
// 由ScopedProvider.Enrich填充；一旦被修改，归约器对该调用点绕过种子缓存
type Scope struct {
	// ParameterIndex 顶层参数索引
	ParameterIndex int
	// RecursionDepth 当前递归深度
	RecursionDepth int

	properties map[string]interface{}
	modified   bool
}

// NewScope 创建作用域
func NewScope(paramIndex, depth int) *Scope {
	return &Scope{
		ParameterIndex: paramIndex,
		RecursionDepth: depth,
		properties:     make(map[string]interface{}),
	}
}

// Put 写入定制属性并标记作用域已修改
func (s *Scope) Put(key string, value interface{}) {
	s.properties[key] = value
	s.modified = true
}

// Get 读取定制属性
func (s *Scope) Get(key string) (interface{}, bool) {
	v, ok := s.properties[key]
	return v, ok
}

// Modified 作用域是否被Enrich修改过
func (s *Scope) Modified() bool { return s.modified }

// ScopedProvider 支持按调用点定制生成的Provider扩展
type ScopedProvider interface {
	Provider

	// Enrich 在生成前定制作用域；若修改了scope，该调用点将绕过种子缓存
	Enrich(desc Description, t Type, scope *Scope)
}

// ScopedDescription 支持携带作用域克隆的Description扩展
// 若Enrich修改了作用域而Description未实现本接口，引擎以配置错误快速失败
type ScopedDescription interface {
	Description

	// CloneWithScope 返回携带作用域的描述副本
	CloneWithScope(scope *Scope) Description
}

// Evaluator 执行协作方：对物化后的参数向量求值并产生反馈
// 返回的错误不会被引擎捕获，原样向Run的调用方传播
type Evaluator interface {
	Evaluate(desc Description, values []interface{}) (Feedback, error)
}

// Mutator 外部变异算子：基于已有Node产生新Node（不就地修改）
// 算子目录本身在引擎外部，引擎只做效率记账
type Mutator interface {
	// Name 算子名称（用于效率统计）
	Name() string

	// Mutate 产生变异后的新Node
	Mutate(r *rand.Rand, node *Node) *Node
}

// Hooks 运行生命周期钩子
// 所有字段均可为nil；兄弟钩子之间除"循环前/每轮/终止后"外无顺序保证
type Hooks struct {
	// IsCancelled 每轮循环顶部轮询；返回true则终止运行
	IsCancelled func() bool
	// SetUp 循环开始前调用一次
	SetUp func()
	// BeforeIteration 每轮生成完成后、求值前调用
	BeforeIteration func(iteration int64)
	// AfterIteration 指令为CONTINUE时每轮调用
	AfterIteration func(iteration int64)
	// FinalizeReport 每轮收尾调用（与指令无关）
	FinalizeReport func(iteration int64)
}

// Reporter 可选的报告接收方
// 其任何失败不得影响运行正确性（引擎吞掉panic）
type Reporter interface {
	// Report 每轮上报(node, feedback, event)
	Report(node *Node, feedback Feedback, event MinsetEvent)

	// Summary 运行终止后上报统计摘要
	Summary(stats *Statistics)
}
