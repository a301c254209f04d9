package fuzz

import (
	"fmt"
	"math/rand"
)

// Reducer 值归约器：把请求类型展开为Result树
// 种子候选按类型缓存（每次运行记忆一次）；作用域定制路径有意绕过缓存
type Reducer struct {
	provider Provider
	config   *Configuration
	stats    *Statistics

	// seedCache 类型 → 候选Seed列表（普通路径，运行期记忆）
	seedCache map[Type][]Seed
}

// NewReducer 创建归约器
func NewReducer(provider Provider, stats *Statistics) *Reducer {
	return &Reducer{
		provider:  provider,
		config:    stats.Config,
		stats:     stats,
		seedCache: make(map[Type][]Seed),
	}
}

// produceState 单个Node生产过程的内部状态
type produceState struct {
	// depth 当前递归深度（顶层展开为1）
	depth int
	// paramIndex 当前顶层参数索引（作用域定制用）
	paramIndex int
	// iterations 继承的集合元素数，-1表示无继承
	// 嵌套同形集合继承外层元素数，产生"矩形"嵌套集合
	iterations int
	// generated 类型 → 本次Node生产中已归约的值（同类型复用）
	generated map[Type][]*Result
}

// child 进入下一层递归的状态副本（共享同类型复用表）
func (s *produceState) child() *produceState {
	return &produceState{
		depth:      s.depth + 1,
		paramIndex: s.paramIndex,
		iterations: -1,
		generated:  s.generated,
	}
}

// ProduceNode 为描述的全部参数类型生产一个完整Node
func (rd *Reducer) ProduceNode(r *rand.Rand, desc Description) (*Node, error) {
	params := desc.Parameters()
	results := make([]*Result, 0, len(params))

	state := &produceState{
		depth:      1,
		iterations: -1,
		generated:  make(map[Type][]*Result),
	}

	for i, t := range params {
		state.paramIndex = i
		res, err := rd.produce(r, desc, t, state)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	// 顶层构建例程：参数向量原样返回
	builder := NewCreateRoutine(params, func(args []interface{}) interface{} {
		return args
	})
	return NewNode(results, params, builder), nil
}

// produce 为单个类型归约出一个Result
func (rd *Reducer) produce(r *rand.Rand, desc Description, t Type, state *produceState) (*Result, error) {
	// 同类型复用：一定概率直接复用本次生产中已有的同类型值
	// 被复用的Result在物化时只构造一次（按标识去重）
	if prev := state.generated[t]; len(prev) > 0 &&
		r.Float64() < rd.config.ProbReuseGeneratedValueForSameType {
		return prev[r.Intn(len(prev))], nil
	}

	seeds, err := rd.seedsFor(desc, t, state)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, &NoSeedValueError{Type: t}
	}

	// 均匀随机选取一个Seed
	seed := seeds[r.Intn(len(seeds))]

	var res *Result
	switch seed.Kind {
	case SeedSimple:
		res = NewResult(ResultSimple, t)
		res.Value = seed.Value
		res.Mutate = seed.Mutate
	case SeedKnown:
		res = NewResult(ResultKnown, t)
		res.Value = seed.Value
		res.Build = seed.Build
	case SeedRecursive:
		res, err = rd.produceRecursive(r, desc, seed, t, state)
	case SeedCollection:
		res, err = rd.produceCollection(r, desc, seed, t, state)
	default:
		panic(fmt.Sprintf("fuzz: unknown seed kind %d", seed.Kind))
	}
	if err != nil {
		return nil, err
	}

	state.generated[t] = append(state.generated[t], res)
	return res, nil
}

// seedsFor 获取类型的候选Seed：普通路径走缓存，作用域被修改时绕过缓存
func (rd *Reducer) seedsFor(desc Description, t Type, state *produceState) ([]Seed, error) {
	scoped, ok := rd.provider.(ScopedProvider)
	if ok {
		scope := NewScope(state.paramIndex, state.depth)
		scoped.Enrich(desc, t, scope)
		if scope.Modified() {
			sd, ok := desc.(ScopedDescription)
			if !ok {
				return nil, ErrScopeNotSupported
			}
			// 定制路径：本调用点专用的非缓存生成
			return rd.provider.Generate(sd.CloneWithScope(scope), t), nil
		}
	}

	if cached, ok := rd.seedCache[t]; ok {
		return cached, nil
	}
	seeds := rd.provider.Generate(desc, t)
	rd.seedCache[t] = seeds
	return seeds, nil
}

// produceRecursive 展开Recursive种子
func (rd *Reducer) produceRecursive(r *rand.Rand, desc Description, seed Seed, t Type, state *produceState) (*Result, error) {
	// 深度超限：经空回退例程解析，不物化任何构造参数
	if state.depth > rd.config.RecursionTreeDepth {
		return rd.emptyResult(seed, t), nil
	}

	child := state.child()

	// 构造参数
	args, err := rd.produceArgs(r, desc, seed.Construct.Types, child)
	if err != nil {
		return rd.absorbMissing(err, seed, t)
	}

	// 打乱后按上限截取修改例程子集
	modify, err := rd.produceModifications(r, desc, seed.Modify, child)
	if err != nil {
		return rd.absorbMissing(err, seed, t)
	}

	res := NewResult(ResultRecursive, t)
	res.Construct = seed.Construct
	res.ConstructArgs = args
	res.Modify = modify
	return res, nil
}

// produceCollection 展开Collection种子
func (rd *Reducer) produceCollection(r *rand.Rand, desc Description, seed Seed, t Type, state *produceState) (*Result, error) {
	// 深度超限：同Recursive，经空回退例程解析
	if state.depth > rd.config.RecursionTreeDepth {
		return rd.emptyResult(seed, t), nil
	}

	// 元素数选择：继承 → 空集合概率 → [1, max]均匀
	var iterations int
	switch {
	case state.iterations >= 0:
		iterations = state.iterations
	case r.Float64() < rd.config.ProbEmptyCollectionCreation:
		iterations = 0
	default:
		iterations = 1 + r.Intn(rd.config.MaxCollectionIterations)
	}

	child := state.child()
	child.iterations = iterations

	var modify []ResultCall
	if iterations > 0 {
		if r.Float64() < rd.config.ProbCollectionDuplication {
			// 复制模式：一次生成的修改重放iterations次（共享参数，物化一次）
			call, err := rd.produceCall(r, desc, seed.ModifyEach, child)
			if err != nil {
				return rd.absorbMissingCollection(err, seed, t)
			}
			modify = make([]ResultCall, iterations)
			for i := range modify {
				modify[i] = call
			}
		} else {
			// 独立模式：iterations次独立生成
			modify = make([]ResultCall, 0, iterations)
			for i := 0; i < iterations; i++ {
				call, err := rd.produceCall(r, desc, seed.ModifyEach, child)
				if err != nil {
					return rd.absorbMissingCollection(err, seed, t)
				}
				modify = append(modify, call)
			}
		}
	}

	res := NewResult(ResultCollection, t)
	res.Construct = seed.Construct
	res.Iterations = iterations
	res.Modify = modify
	return res, nil
}

// produceArgs 为例程所需类型列表逐个归约参数
func (rd *Reducer) produceArgs(r *rand.Rand, desc Description, types []Type, state *produceState) ([]*Result, error) {
	args := make([]*Result, 0, len(types))
	for _, t := range types {
		res, err := rd.produce(r, desc, t, state)
		if err != nil {
			return nil, err
		}
		args = append(args, res)
	}
	return args, nil
}

// produceModifications 打乱修改例程并截取数量上限内的子集，逐个归约其参数
func (rd *Reducer) produceModifications(r *rand.Rand, desc Description, routines []*Routine, state *produceState) ([]ResultCall, error) {
	if len(routines) == 0 || rd.config.MaxRecursiveModifications == 0 {
		return nil, nil
	}

	shuffled := make([]*Routine, len(routines))
	copy(shuffled, routines)
	r.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	count := r.Intn(rd.config.MaxRecursiveModifications + 1)
	if count > len(shuffled) {
		count = len(shuffled)
	}

	calls := make([]ResultCall, 0, count)
	for _, routine := range shuffled[:count] {
		call, err := rd.produceCall(r, desc, routine, state)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// produceCall 归约单个例程调用的参数
func (rd *Reducer) produceCall(r *rand.Rand, desc Description, routine *Routine, state *produceState) (ResultCall, error) {
	args, err := rd.produceArgs(r, desc, routine.Types, state)
	if err != nil {
		return ResultCall{}, err
	}
	return ResultCall{Routine: routine, Args: args}, nil
}

// emptyResult 经Seed的空回退例程构建Result
func (rd *Reducer) emptyResult(seed Seed, t Type) *Result {
	res := NewResult(ResultEmpty, t)
	res.EmptyRoutine = seed.Empty
	return res
}

// absorbMissing 处理Recursive展开期间的NoSeedValue
// 总是先记入诊断表；配置容忍时以空回退替代，否则重新抛出
func (rd *Reducer) absorbMissing(err error, seed Seed, t Type) (*Result, error) {
	nsv, ok := asNoSeedValue(err)
	if !ok {
		return nil, err
	}
	rd.stats.RecordMissedType(nsv.Type)
	if rd.config.GenerateEmptyCollectionsForMissedTypes {
		return rd.emptyResult(seed, t), nil
	}
	return nil, err
}

// absorbMissingCollection 处理Collection展开期间的NoSeedValue
// 容忍时替代为0元素集合
func (rd *Reducer) absorbMissingCollection(err error, seed Seed, t Type) (*Result, error) {
	nsv, ok := asNoSeedValue(err)
	if !ok {
		return nil, err
	}
	rd.stats.RecordMissedType(nsv.Type)
	if rd.config.GenerateEmptyCollectionsForMissedTypes {
		res := NewResult(ResultCollection, t)
		res.Construct = seed.Construct
		res.Iterations = 0
		return res, nil
	}
	return nil, err
}

func asNoSeedValue(err error) (*NoSeedValueError, bool) {
	nsv, ok := err.(*NoSeedValueError)
	return nsv, ok
}
