package solidity

import (
	"math/rand"

	"typefuzz/pkg/fuzz"
)

// 变异算子名称（效率记账以此为键）
const (
	MutationValueTweak       = "value_tweak"
	MutationCollectionResize = "collection_resize"
	MutationModifyDrop       = "modify_drop"
)

// rewriteFunc 尝试就地重写单个Result；成功返回替换用的克隆
type rewriteFunc func(r *rand.Rand, res *fuzz.Result) (*fuzz.Result, bool)

// rewriteResult 自顶向下寻找可重写位置，沿路径克隆，原树保持不变
func rewriteResult(r *rand.Rand, res *fuzz.Result, attempt rewriteFunc) (*fuzz.Result, bool) {
	if out, ok := attempt(r, res); ok {
		return out, true
	}

	switch res.Kind {
	case fuzz.ResultRecursive:
		for _, i := range r.Perm(len(res.ConstructArgs)) {
			if child, ok := rewriteResult(r, res.ConstructArgs[i], attempt); ok {
				dup := res.CloneShallow()
				dup.ConstructArgs = append([]*fuzz.Result(nil), res.ConstructArgs...)
				dup.ConstructArgs[i] = child
				return dup, true
			}
		}
		if out, ok := rewriteModifyArgs(r, res, attempt); ok {
			return out, true
		}
	case fuzz.ResultCollection:
		if out, ok := rewriteModifyArgs(r, res, attempt); ok {
			return out, true
		}
	}
	return res, false
}

// rewriteModifyArgs 在修改调用的参数中寻找可重写位置
func rewriteModifyArgs(r *rand.Rand, res *fuzz.Result, attempt rewriteFunc) (*fuzz.Result, bool) {
	for _, i := range r.Perm(len(res.Modify)) {
		call := res.Modify[i]
		for _, j := range r.Perm(len(call.Args)) {
			child, ok := rewriteResult(r, call.Args[j], attempt)
			if !ok {
				continue
			}
			dup := res.CloneShallow()
			dup.Modify = append([]fuzz.ResultCall(nil), res.Modify...)
			newArgs := append([]*fuzz.Result(nil), call.Args...)
			newArgs[j] = child
			dup.Modify[i] = fuzz.ResultCall{Routine: call.Routine, Args: newArgs}
			return dup, true
		}
	}
	return res, false
}

// mutateNode 从随机参数位置开始寻找可重写位置；找不到则原样返回
func mutateNode(r *rand.Rand, node *fuzz.Node, name string, attempt rewriteFunc) *fuzz.Node {
	for _, i := range r.Perm(len(node.Result)) {
		rewritten, ok := rewriteResult(r, node.Result[i], attempt)
		if !ok {
			continue
		}
		rewritten.LastMutation = name
		results := append([]*fuzz.Result(nil), node.Result...)
		results[i] = rewritten
		return node.CloneWithResults(results)
	}
	return node
}

// ValueTweakMutator 叶子值微调：重放Simple值自带的自变异函数
type ValueTweakMutator struct{}

// Name 算子名称
func (ValueTweakMutator) Name() string { return MutationValueTweak }

// Mutate 在随机位置重放自变异；无可变异叶子时原样返回
func (ValueTweakMutator) Mutate(r *rand.Rand, node *fuzz.Node) *fuzz.Node {
	return mutateNode(r, node, MutationValueTweak, func(r *rand.Rand, res *fuzz.Result) (*fuzz.Result, bool) {
		if res.Kind != fuzz.ResultSimple || res.Mutate == nil {
			return res, false
		}
		dup := res.CloneShallow()
		dup.Value = res.Mutate(r, res.Value)
		return dup, true
	})
}

// CollectionResizeMutator 集合尺寸变异：截断或复制末尾元素扩展
type CollectionResizeMutator struct{}

// Name 算子名称
func (CollectionResizeMutator) Name() string { return MutationCollectionResize }

// Mutate 随机调整某个集合的元素数；无集合时原样返回
func (CollectionResizeMutator) Mutate(r *rand.Rand, node *fuzz.Node) *fuzz.Node {
	return mutateNode(r, node, MutationCollectionResize, func(r *rand.Rand, res *fuzz.Result) (*fuzz.Result, bool) {
		if res.Kind != fuzz.ResultCollection || len(res.Modify) == 0 {
			return res, false
		}
		dup := res.CloneShallow()
		if r.Intn(2) == 0 && res.Iterations > 1 {
			// 截断到随机更小长度
			n := 1 + r.Intn(res.Iterations-1)
			dup.Modify = append([]fuzz.ResultCall(nil), res.Modify[:n]...)
			dup.Iterations = n
		} else {
			// 复制随机已有元素扩展一位（共享其Result，物化时只构造一次）
			dup.Modify = append(append([]fuzz.ResultCall(nil), res.Modify...),
				res.Modify[r.Intn(len(res.Modify))])
			dup.Iterations = res.Iterations + 1
		}
		return dup, true
	})
}

// ModifyDropMutator 修改调用剔除：从递归构造的修改列表里去掉一个
type ModifyDropMutator struct{}

// Name 算子名称
func (ModifyDropMutator) Name() string { return MutationModifyDrop }

// Mutate 随机剔除一个修改调用；无可剔除位置时原样返回
func (ModifyDropMutator) Mutate(r *rand.Rand, node *fuzz.Node) *fuzz.Node {
	return mutateNode(r, node, MutationModifyDrop, func(r *rand.Rand, res *fuzz.Result) (*fuzz.Result, bool) {
		if res.Kind != fuzz.ResultRecursive || len(res.Modify) == 0 {
			return res, false
		}
		dup := res.CloneShallow()
		drop := r.Intn(len(res.Modify))
		dup.Modify = append(append([]fuzz.ResultCall(nil), res.Modify[:drop]...), res.Modify[drop+1:]...)
		return dup, true
	})
}

// CompositeMutator 组合算子：随机顺序尝试各子算子，取首个真正改变Node的结果
type CompositeMutator struct {
	operators []fuzz.Mutator
}

// NewCompositeMutator 以给定子算子构建组合算子
func NewCompositeMutator(operators ...fuzz.Mutator) *CompositeMutator {
	return &CompositeMutator{operators: operators}
}

// NewDefaultMutator 默认算子集合
func NewDefaultMutator() *CompositeMutator {
	return NewCompositeMutator(
		ValueTweakMutator{},
		CollectionResizeMutator{},
		ModifyDropMutator{},
	)
}

// Name 算子名称
func (m *CompositeMutator) Name() string { return "composite" }

// Mutate 随机顺序尝试子算子；全部不适用时原样返回
func (m *CompositeMutator) Mutate(r *rand.Rand, node *fuzz.Node) *fuzz.Node {
	for _, i := range r.Perm(len(m.operators)) {
		if mutated := m.operators[i].Mutate(r, node); mutated != node {
			return mutated
		}
	}
	return node
}
