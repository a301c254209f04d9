package solidity

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typefuzz/pkg/fuzz"
)

func simpleIntResult(value int64) *fuzz.Result {
	res := fuzz.NewResult(fuzz.ResultSimple, "uint256")
	res.Value = big.NewInt(value)
	res.Mutate = mutateInteger(256, false)
	return res
}

func nodeOf(results ...*fuzz.Result) *fuzz.Node {
	types := make([]fuzz.Type, len(results))
	for i, res := range results {
		types[i] = res.Type
	}
	builder := fuzz.NewCreateRoutine(types, func(args []interface{}) interface{} { return args })
	return fuzz.NewNode(results, types, builder)
}

func collectionResult(elements ...int64) *fuzz.Result {
	res := fuzz.NewResult(fuzz.ResultCollection, "uint256[]")
	res.Construct = fuzz.NewCollectionRoutine(func(size int) interface{} {
		return make([]interface{}, size)
	})
	setElement := fuzz.NewForEachRoutine([]fuzz.Type{"uint256"},
		func(collection interface{}, index int, args []interface{}) {
			collection.([]interface{})[index] = args[0]
		})
	res.Iterations = len(elements)
	for _, v := range elements {
		res.Modify = append(res.Modify, fuzz.ResultCall{
			Routine: setElement,
			Args:    []*fuzz.Result{simpleIntResult(v)},
		})
	}
	return res
}

// TestValueTweakMutator 测试叶子值微调算子
func TestValueTweakMutator(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	node := nodeOf(simpleIntResult(1000))

	mutated := ValueTweakMutator{}.Mutate(r, node)

	require.NotSame(t, node, mutated, "Mutation must produce a new node")
	assert.Equal(t, MutationValueTweak, mutated.Result[0].LastMutation)
	assert.NotPanics(t, mutated.CheckInvariant)

	// 原树不可变
	assert.Equal(t, big.NewInt(1000), node.Result[0].Value)
	assert.Empty(t, node.Result[0].LastMutation)

	// 新Result获得新标识
	assert.NotEqual(t, node.Result[0].ID(), mutated.Result[0].ID())
}

// TestValueTweakMutatorReachesNestedLeaves 测试微调能触达集合内部的叶子
func TestValueTweakMutatorReachesNestedLeaves(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	node := nodeOf(collectionResult(7, 8, 9))

	mutated := ValueTweakMutator{}.Mutate(r, node)
	require.NotSame(t, node, mutated)
	assert.Equal(t, MutationValueTweak, mutated.Result[0].LastMutation)

	// 原集合的元素保持不变
	original := fuzz.Materialize(node)[0].([]interface{})
	assert.Equal(t, []interface{}{big.NewInt(7), big.NewInt(8), big.NewInt(9)}, original)
}

// TestValueTweakMutatorNoCandidate 测试无可变异叶子时原样返回
func TestValueTweakMutatorNoCandidate(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	res := fuzz.NewResult(fuzz.ResultSimple, "bool")
	res.Value = true // 无Mutate函数
	node := nodeOf(res)

	assert.Same(t, node, ValueTweakMutator{}.Mutate(r, node))
}

// TestCollectionResizeMutator 测试集合尺寸变异
func TestCollectionResizeMutator(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	node := nodeOf(collectionResult(1, 2, 3, 4))

	seenDifferentSize := false
	for i := 0; i < 50; i++ {
		mutated := CollectionResizeMutator{}.Mutate(r, node)
		require.NotSame(t, node, mutated)

		res := mutated.Result[0]
		assert.Equal(t, MutationCollectionResize, res.LastMutation)
		assert.Len(t, res.Modify, res.Iterations, "Element calls must match the new size")
		if res.Iterations != 4 {
			seenDifferentSize = true
		}

		list := fuzz.Materialize(mutated)[0].([]interface{})
		assert.Len(t, list, res.Iterations)
	}
	assert.True(t, seenDifferentSize)

	// 原集合不受影响
	assert.Equal(t, 4, node.Result[0].Iterations)
}

// TestModifyDropMutator 测试修改调用剔除
func TestModifyDropMutator(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	res := fuzz.NewResult(fuzz.ResultRecursive, "(uint256,uint256)")
	res.Construct = fuzz.NewCreateRoutine([]fuzz.Type{"uint256", "uint256"},
		func(args []interface{}) interface{} {
			out := make([]interface{}, len(args))
			copy(out, args)
			return out
		})
	res.ConstructArgs = []*fuzz.Result{simpleIntResult(1), simpleIntResult(2)}
	setFirst := fuzz.NewCallRoutine([]fuzz.Type{"uint256"},
		func(instance interface{}, args []interface{}) {
			instance.([]interface{})[0] = args[0]
		})
	res.Modify = []fuzz.ResultCall{
		{Routine: setFirst, Args: []*fuzz.Result{simpleIntResult(100)}},
		{Routine: setFirst, Args: []*fuzz.Result{simpleIntResult(200)}},
	}
	node := nodeOf(res)

	mutated := ModifyDropMutator{}.Mutate(r, node)
	require.NotSame(t, node, mutated)
	assert.Len(t, mutated.Result[0].Modify, 1, "One modification call should be dropped")
	assert.Len(t, node.Result[0].Modify, 2, "Original node keeps its modifications")
	assert.Equal(t, MutationModifyDrop, mutated.Result[0].LastMutation)
}

// TestCompositeMutator 测试组合算子的选择与兜底
func TestCompositeMutator(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	mutator := NewDefaultMutator()

	t.Run("AppliesSomeOperator", func(t *testing.T) {
		node := nodeOf(simpleIntResult(42), collectionResult(1, 2))
		mutated := mutator.Mutate(r, node)
		require.NotSame(t, node, mutated)

		op := ""
		for _, res := range mutated.Result {
			if res.LastMutation != "" {
				op = res.LastMutation
			}
		}
		assert.Contains(t, []string{MutationValueTweak, MutationCollectionResize}, op)
	})

	t.Run("NothingApplicable", func(t *testing.T) {
		res := fuzz.NewResult(fuzz.ResultKnown, "bytes")
		res.Value = []byte{1}
		node := nodeOf(res)

		assert.Same(t, node, mutator.Mutate(r, node), "No applicable operator returns the node unchanged")
	})
}
