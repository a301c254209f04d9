package solidity

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseArrayType 测试数组类型解析
func TestParseArrayType(t *testing.T) {
	tests := []struct {
		input    string
		elem     string
		fixedLen int
		ok       bool
	}{
		{"uint256[]", "uint256", -1, true},
		{"address[5]", "address", 5, true},
		{"uint8[2][]", "uint8[2]", -1, true},
		{"uint256", "", 0, false},
		{"(uint256,bool)[]", "(uint256,bool)", -1, true},
	}
	for _, tc := range tests {
		elem, fixedLen, ok := parseArrayType(tc.input)
		assert.Equal(t, tc.ok, ok, tc.input)
		if tc.ok {
			assert.Equal(t, tc.elem, elem, tc.input)
			assert.Equal(t, tc.fixedLen, fixedLen, tc.input)
		}
	}
}

// TestParseTupleTypes 测试元组类型的深度感知切分
func TestParseTupleTypes(t *testing.T) {
	components, ok := parseTupleTypes("(uint256,address)")
	require.True(t, ok)
	assert.Equal(t, []string{"uint256", "address"}, components)

	components, ok = parseTupleTypes("(uint256,(bool,address),bytes32)")
	require.True(t, ok)
	assert.Equal(t, []string{"uint256", "(bool,address)", "bytes32"}, components)

	_, ok = parseTupleTypes("uint256")
	assert.False(t, ok)
	_, ok = parseTupleTypes("()")
	assert.False(t, ok)
}

// TestParseIntegerType 测试整数类型解析
func TestParseIntegerType(t *testing.T) {
	bits, signed, ok := parseIntegerType("uint256")
	require.True(t, ok)
	assert.Equal(t, 256, bits)
	assert.False(t, signed)

	bits, signed, ok = parseIntegerType("int8")
	require.True(t, ok)
	assert.Equal(t, 8, bits)
	assert.True(t, signed)

	// 无后缀默认256位
	bits, _, ok = parseIntegerType("uint")
	require.True(t, ok)
	assert.Equal(t, 256, bits)

	_, _, ok = parseIntegerType("uint7")
	assert.False(t, ok)
	_, _, ok = parseIntegerType("uint512")
	assert.False(t, ok)
	_, _, ok = parseIntegerType("address")
	assert.False(t, ok)
}

// TestIntegerBounds 测试基于uint256的位宽边界计算
func TestIntegerBounds(t *testing.T) {
	maxU8 := maxUnsigned(8)
	assert.Equal(t, big.NewInt(255), maxU8)

	maxI8 := maxSigned(8)
	assert.Equal(t, big.NewInt(127), maxI8)
	assert.Equal(t, big.NewInt(-128), minSigned(8))

	expected := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	assert.Equal(t, expected, maxUnsigned(256))
}

// TestIntegerSeedValues 测试整数目录包含边界值且全部在位宽范围内
func TestIntegerSeedValues(t *testing.T) {
	t.Run("Uint256", func(t *testing.T) {
		values := integerSeedValues(256, false)
		assert.Contains(t, values, big.NewInt(0))
		assert.Contains(t, values, big.NewInt(1))

		hasMax := false
		for _, v := range values {
			require.True(t, inIntegerRange(v, 256, false))
			if v.Cmp(maxUnsigned(256)) == 0 {
				hasMax = true
			}
		}
		assert.True(t, hasMax, "Catalogue should include the type maximum")
	})

	t.Run("Int8FiltersMagnitudes", func(t *testing.T) {
		values := integerSeedValues(8, true)
		for _, v := range values {
			assert.True(t, inIntegerRange(v, 8, true), "Value %s out of int8 range", v)
		}
		assert.Contains(t, values, big.NewInt(-1))
		assert.Contains(t, values, big.NewInt(127))
		assert.Contains(t, values, big.NewInt(-128))
	})
}

// TestMutateIntegerStaysInRange 测试整数自变异结果始终在位宽范围内
func TestMutateIntegerStaysInRange(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	mutate := mutateInteger(8, false)

	value := interface{}(big.NewInt(200))
	for i := 0; i < 500; i++ {
		value = mutate(r, value)
		v := value.(*big.Int)
		assert.True(t, inIntegerRange(v, 8, false), "Mutation escaped uint8 range: %s", v)
	}
}

// TestMutateIntegerDoesNotAlias 测试自变异不修改输入值
func TestMutateIntegerDoesNotAlias(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	mutate := mutateInteger(256, false)
	original := big.NewInt(1000)

	for i := 0; i < 50; i++ {
		mutate(r, original)
	}
	assert.Equal(t, big.NewInt(1000), original, "Input value must not be modified in place")
}

// TestMutateAddress 测试地址自变异产生合法地址
func TestMutateAddress(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	addr := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb1")

	changed := false
	for i := 0; i < 100; i++ {
		out := mutateAddress(r, addr)
		mutated, ok := out.(common.Address)
		require.True(t, ok)
		if mutated != addr {
			changed = true
		}
	}
	assert.True(t, changed, "Mutation should produce different addresses")
}

// TestCopyBytes 测试bytes构建函数的防御性拷贝
func TestCopyBytes(t *testing.T) {
	pattern := []byte{0xDE, 0xAD}
	out := copyBytes(pattern).([]byte)
	out[0] = 0x00
	assert.Equal(t, byte(0xDE), pattern[0], "Materialized bytes must not alias the pattern")
}

// TestZeroValue 测试类型零值
func TestZeroValue(t *testing.T) {
	assert.Equal(t, false, zeroValue("bool"))
	assert.Equal(t, common.Address{}, zeroValue("address"))
	assert.Equal(t, big.NewInt(0), zeroValue("uint256"))
	assert.Equal(t, make([]byte, 4), zeroValue("bytes4"))
	assert.Equal(t, []interface{}{}, zeroValue("uint256[]"))

	tuple := zeroValue("(uint8,bool)").([]interface{})
	require.Len(t, tuple, 2)
	assert.Equal(t, big.NewInt(0), tuple[0])
	assert.Equal(t, false, tuple[1])
}
