package fuzz

import (
	"fmt"
	"math/rand"
	"sync/atomic"
)

// SeedKind Seed变体标签
type SeedKind int

const (
	// SeedSimple 直通值，附带可选的自变异函数
	SeedSimple SeedKind = iota
	// SeedKnown 原子结构化值（如位向量）及其构建函数
	SeedKnown
	// SeedRecursive 递归构造：构造例程 + 若干修改例程 + 空回退例程
	SeedRecursive
	// SeedCollection 集合构造：按大小构造例程 + 逐元素修改例程
	SeedCollection
)

// String 返回变体名称
func (k SeedKind) String() string {
	switch k {
	case SeedSimple:
		return "Simple"
	case SeedKnown:
		return "Known"
	case SeedRecursive:
		return "Recursive"
	case SeedCollection:
		return "Collection"
	default:
		return "Unknown"
	}
}

// Seed 描述"如何产生一个值"的生成期描述符
// 按Kind取用对应字段，其余字段为nil
type Seed struct {
	Kind SeedKind

	// Value Simple/Known变体的载荷值
	Value interface{}
	// Mutate Simple变体的可选自变异函数（产生新值，不就地修改）
	Mutate func(r *rand.Rand, value interface{}) interface{}
	// Build Known变体的构建函数：载荷 → 可执行表示
	Build func(value interface{}) interface{}

	// Construct Recursive的构造例程 / Collection的按大小构造例程
	Construct *Routine
	// Modify Recursive变体的修改例程列表
	Modify []*Routine
	// ModifyEach Collection变体的逐元素修改例程
	ModifyEach *Routine
	// Empty 空回退例程（深度超限或容忍缺失类型时使用）
	Empty *Routine
}

// RoutineKind Routine变体标签
type RoutineKind int

const (
	// RoutineCreate 由物化后的参数构建实例
	RoutineCreate RoutineKind = iota
	// RoutineCall 变异已有实例
	RoutineCall
	// RoutineCollection 构建大小为N的空集合
	RoutineCollection
	// RoutineForEach 在索引i处应用修改
	RoutineForEach
	// RoutineEmpty 无参构建
	RoutineEmpty
)

// Routine 绑定了所需子值类型列表的构造/修改可调用体
type Routine struct {
	Kind RoutineKind

	// Types 本例程所需的子值类型（有序）
	Types []Type

	// Create Create/Empty变体：由参数构建实例（Empty时args为空）
	Create func(args []interface{}) interface{}
	// Call Call变体：用参数变异已有实例
	Call func(instance interface{}, args []interface{})
	// NewCollection Collection变体：构建大小为size的空集合
	NewCollection func(size int) interface{}
	// SetElement ForEach变体：在索引index处应用参数
	SetElement func(collection interface{}, index int, args []interface{})
}

// NewCreateRoutine 构建Create例程
func NewCreateRoutine(types []Type, create func(args []interface{}) interface{}) *Routine {
	return &Routine{Kind: RoutineCreate, Types: types, Create: create}
}

// NewCallRoutine 构建Call例程
func NewCallRoutine(types []Type, call func(instance interface{}, args []interface{})) *Routine {
	return &Routine{Kind: RoutineCall, Types: types, Call: call}
}

// NewCollectionRoutine 构建按大小构造例程
func NewCollectionRoutine(newCollection func(size int) interface{}) *Routine {
	return &Routine{Kind: RoutineCollection, NewCollection: newCollection}
}

// NewForEachRoutine 构建逐元素修改例程
func NewForEachRoutine(types []Type, setElement func(collection interface{}, index int, args []interface{})) *Routine {
	return &Routine{Kind: RoutineForEach, Types: types, SetElement: setElement}
}

// NewEmptyRoutine 构建无参构建例程
func NewEmptyRoutine(create func(args []interface{}) interface{}) *Routine {
	return &Routine{Kind: RoutineEmpty, Create: create}
}

// ResultKind Result变体标签
type ResultKind int

const (
	// ResultSimple 直通值
	ResultSimple ResultKind = iota
	// ResultKnown 原子结构化值
	ResultKnown
	// ResultRecursive 已展开的递归构造
	ResultRecursive
	// ResultCollection 已展开的集合构造
	ResultCollection
	// ResultEmpty 经空回退例程解析
	ResultEmpty
)

// String 返回变体名称
func (k ResultKind) String() string {
	switch k {
	case ResultSimple:
		return "Simple"
	case ResultKnown:
		return "Known"
	case ResultRecursive:
		return "Recursive"
	case ResultCollection:
		return "Collection"
	case ResultEmpty:
		return "Empty"
	default:
		return "Unknown"
	}
}

// resultIDCounter Result标识分配器
// 物化缓存以该标识为键，代替指针身份（同一Result在两个参数位置只物化一次）
var resultIDCounter uint64

func nextResultID() uint64 {
	return atomic.AddUint64(&resultIDCounter, 1)
}

// ResultCall 已展开的修改例程调用：例程 + 已归约的参数
type ResultCall struct {
	Routine *Routine
	Args    []*Result
}

// Result 选择Seed并展开后的"尚未物化"的值
// 一经归约器返回即逻辑上不可变；变异算子产生新Result而非就地修改
type Result struct {
	id   uint64
	Kind ResultKind

	// Type 产生本Result的请求类型
	Type Type

	// Value Simple/Known的载荷
	Value interface{}
	// Mutate Simple的自变异函数（变异算子使用）
	Mutate func(r *rand.Rand, value interface{}) interface{}
	// Build Known的构建函数
	Build func(value interface{}) interface{}

	// Construct Recursive/Collection的构造例程
	Construct *Routine
	// ConstructArgs Recursive构造例程的已归约参数
	ConstructArgs []*Result
	// Modify 已展开的修改调用（Recursive）或逐元素调用（Collection，长度=Iterations）
	Modify []ResultCall
	// Iterations Collection的元素数
	Iterations int
	// EmptyRoutine Empty变体的构建例程
	EmptyRoutine *Routine

	// LastMutation 变异来源（报告用），由变异算子填写
	LastMutation string
}

// NewResult 构建带稳定标识的Result
func NewResult(kind ResultKind, t Type) *Result {
	return &Result{id: nextResultID(), Kind: kind, Type: t}
}

// ID 返回物化缓存使用的稳定标识
func (r *Result) ID() uint64 { return r.id }

// CloneShallow 复制Result并分配新标识（变异算子使用，保持原树不可变）
func (r *Result) CloneShallow() *Result {
	dup := *r
	dup.id = nextResultID()
	return &dup
}

// Node 一次迭代的完整参数向量
// 不变量: len(Result) == len(Parameters)，始终成立
type Node struct {
	// Result 每个参数的已归约值（有序）
	Result []*Result
	// Parameters 参数类型（有序）
	Parameters []Type
	// Builder 顶层构建例程
	Builder *Routine
}

// NewNode 构建Node并校验长度不变量
func NewNode(results []*Result, parameters []Type, builder *Routine) *Node {
	if len(results) != len(parameters) {
		panic(fmt.Sprintf("fuzz: node invariant violated: %d results for %d parameters",
			len(results), len(parameters)))
	}
	return &Node{Result: results, Parameters: parameters, Builder: builder}
}

// CheckInvariant 校验长度不变量；违反即为致命编程错误，绝不恢复
func (n *Node) CheckInvariant() {
	if len(n.Result) != len(n.Parameters) {
		panic(fmt.Sprintf("fuzz: node invariant violated: %d results for %d parameters",
			len(n.Result), len(n.Parameters)))
	}
}

// CloneWithResults 用新的Result列表复制Node（变异算子使用）
func (n *Node) CloneWithResults(results []*Result) *Node {
	return NewNode(results, n.Parameters, n.Builder)
}
