// Package solidity 提供面向Solidity类型系统的种子提供方、变异算子与演示目标
// 类型以Solidity类型字符串描述 (uint256, address, bool, bytes32, uint256[], (uint256,address), etc.)
package solidity

import (
	"math/big"
	"math/rand"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// parseArrayType 解析数组类型，返回元素类型、固定长度（-1表示动态）及是否为数组
func parseArrayType(typeStr string) (string, int, bool) {
	if !strings.HasSuffix(typeStr, "]") {
		return "", 0, false
	}
	lastIdx := strings.LastIndex(typeStr, "[")
	if lastIdx < 0 || lastIdx >= len(typeStr)-1 {
		return "", 0, false
	}
	elemType := typeStr[:lastIdx]
	sizeStr := typeStr[lastIdx+1 : len(typeStr)-1]
	if sizeStr == "" {
		return elemType, -1, true
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil {
		return elemType, -1, true
	}
	return elemType, size, true
}

// parseTupleTypes 解析元组类型字符串 "(uint256,address)" → 组件类型列表
// 嵌套括号与数组后缀按深度感知切分
func parseTupleTypes(typeStr string) ([]string, bool) {
	if !strings.HasPrefix(typeStr, "(") || !strings.HasSuffix(typeStr, ")") {
		return nil, false
	}
	inner := typeStr[1 : len(typeStr)-1]
	if inner == "" {
		return nil, false
	}

	var components []string
	depth := 0
	start := 0
	for i, ch := range inner {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				components = append(components, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	components = append(components, strings.TrimSpace(inner[start:]))
	return components, true
}

// parseIntegerType 解析整数类型，返回位宽与是否有符号
func parseIntegerType(typeStr string) (int, bool, bool) {
	var bitsStr string
	var signed bool
	switch {
	case strings.HasPrefix(typeStr, "uint"):
		bitsStr = strings.TrimPrefix(typeStr, "uint")
	case strings.HasPrefix(typeStr, "int"):
		bitsStr = strings.TrimPrefix(typeStr, "int")
		signed = true
	default:
		return 0, false, false
	}
	if bitsStr == "" {
		return 256, signed, true
	}
	bits, err := strconv.Atoi(bitsStr)
	if err != nil || bits < 8 || bits > 256 || bits%8 != 0 {
		return 0, false, false
	}
	return bits, signed, true
}

// parseBytesType 解析bytes类型，返回固定长度（0表示动态bytes）
func parseBytesType(typeStr string) (int, bool) {
	if typeStr == "bytes" {
		return 0, true
	}
	if !strings.HasPrefix(typeStr, "bytes") {
		return 0, false
	}
	size, err := strconv.Atoi(strings.TrimPrefix(typeStr, "bytes"))
	if err != nil || size < 1 || size > 32 {
		return 0, false
	}
	return size, true
}

// maxUnsigned 2^bits - 1
func maxUnsigned(bits int) *big.Int {
	u := new(uint256.Int).SetAllOne()
	if bits < 256 {
		u.Rsh(u, uint(256-bits))
	}
	return u.ToBig()
}

// maxSigned 2^(bits-1) - 1
func maxSigned(bits int) *big.Int {
	u := new(uint256.Int).SetAllOne()
	u.Rsh(u, uint(256-bits+1))
	return u.ToBig()
}

// minSigned -2^(bits-1)
func minSigned(bits int) *big.Int {
	min := new(big.Int).Add(maxSigned(bits), big.NewInt(1))
	return min.Neg(min)
}

// integerSeedValues 整数类型的边界与常见值目录
func integerSeedValues(bits int, signed bool) []*big.Int {
	values := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(2),
	}

	// 常见幅度值
	for _, v := range []int64{10, 100, 1000, 1 << 16, 1 << 31} {
		values = append(values, big.NewInt(v))
	}

	if signed {
		max := maxSigned(bits)
		min := minSigned(bits)
		values = append(values,
			max,
			new(big.Int).Sub(max, big.NewInt(1)),
			min,
			new(big.Int).Add(min, big.NewInt(1)),
			big.NewInt(-1),
		)
	} else {
		max := maxUnsigned(bits)
		values = append(values,
			max,
			new(big.Int).Sub(max, big.NewInt(1)),
			new(big.Int).Rsh(max, 1), // max/2
		)
	}

	// 过滤超出位宽的幅度值
	filtered := values[:0]
	for _, v := range values {
		if inIntegerRange(v, bits, signed) {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

func inIntegerRange(v *big.Int, bits int, signed bool) bool {
	if signed {
		return v.Cmp(minSigned(bits)) >= 0 && v.Cmp(maxSigned(bits)) <= 0
	}
	return v.Sign() >= 0 && v.Cmp(maxUnsigned(bits)) <= 0
}

// mutateInteger 整数自变异：微调或单比特翻转，结果截回位宽
func mutateInteger(bits int, signed bool) func(r *rand.Rand, value interface{}) interface{} {
	return func(r *rand.Rand, value interface{}) interface{} {
		v, ok := value.(*big.Int)
		if !ok {
			return value
		}
		out := new(big.Int).Set(v)
		switch r.Intn(3) {
		case 0:
			// 微调 ±{1,10,100,1000}
			deltas := []int64{1, 10, 100, 1000}
			delta := big.NewInt(deltas[r.Intn(len(deltas))])
			if r.Intn(2) == 0 {
				out.Add(out, delta)
			} else {
				out.Sub(out, delta)
			}
		case 1:
			// 单比特翻转
			bit := r.Intn(bits)
			mask := new(big.Int).Lsh(big.NewInt(1), uint(bit))
			out.Xor(out, mask)
		default:
			// 折半
			out.Rsh(out, 1)
		}
		if !inIntegerRange(out, bits, signed) {
			out.Set(v)
		}
		return out
	}
}

// addressSeedValues 地址目录：零地址、最大地址、预编译地址、确定性样本地址
func addressSeedValues() []common.Address {
	values := []common.Address{
		{}, // 零地址
		common.HexToAddress("0xFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF"),
	}
	// 预编译地址 0x1..0x9
	for i := int64(1); i <= 9; i++ {
		values = append(values, common.BigToAddress(big.NewInt(i)))
	}
	values = append(values,
		common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb1"),
		common.HexToAddress("0xdEAD000000000000000042069420694206942069"),
	)
	return values
}

// mutateAddress 地址自变异：单比特翻转或邻近地址
func mutateAddress(r *rand.Rand, value interface{}) interface{} {
	addr, ok := value.(common.Address)
	if !ok {
		return value
	}
	if r.Intn(2) == 0 {
		// 翻转指定比特
		bytes := addr.Bytes()
		bitIndex := r.Intn(common.AddressLength * 8)
		bytes[bitIndex/8] ^= 1 << uint(bitIndex%8)
		return common.BytesToAddress(bytes)
	}
	// 邻近地址 ±delta
	deltas := []int64{1, 10, 100, 1000}
	addrInt := new(big.Int).SetBytes(addr.Bytes())
	addrInt.Add(addrInt, big.NewInt(deltas[r.Intn(len(deltas))]))
	return common.BytesToAddress(addrInt.Bytes())
}

// bytesPatterns 动态bytes的模式目录
func bytesPatterns() [][]byte {
	ascending := make([]byte, 32)
	for i := range ascending {
		ascending[i] = byte(i)
	}
	return [][]byte{
		{},
		{0x00},
		{0xFF},
		{0x00, 0x00},
		{0xDE, 0xAD, 0xBE, 0xEF},
		ascending,
	}
}

// fixedBytesPatterns 固定长度bytesN的模式目录
func fixedBytesPatterns(size int) [][]byte {
	zeros := make([]byte, size)
	ones := make([]byte, size)
	ascending := make([]byte, size)
	for i := 0; i < size; i++ {
		ones[i] = 0xFF
		ascending[i] = byte(i)
	}
	single := make([]byte, size)
	single[size-1] = 0x01
	return [][]byte{zeros, ones, ascending, single}
}

// copyBytes bytes的构建函数：防御性拷贝，保证物化值彼此独立
func copyBytes(value interface{}) interface{} {
	src, ok := value.([]byte)
	if !ok {
		return value
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

// stringSeedValues 字符串目录
func stringSeedValues() []string {
	return []string{
		"",
		"a",
		"fuzz",
		strings.Repeat("A", 256),
		"\x00\x01\x02",
		"合约",
	}
}

// mutateString 字符串自变异：追加、截断或字节翻转
func mutateString(r *rand.Rand, value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	switch r.Intn(3) {
	case 0:
		return s + string(rune('a'+r.Intn(26)))
	case 1:
		if len(s) > 0 {
			return s[:r.Intn(len(s))]
		}
		return s
	default:
		if len(s) > 0 {
			b := []byte(s)
			b[r.Intn(len(b))] ^= 0x20
			return string(b)
		}
		return s
	}
}

// zeroValue 类型的零值（空回退例程使用）
func zeroValue(typeStr string) interface{} {
	switch {
	case typeStr == "bool":
		return false
	case typeStr == "address":
		return common.Address{}
	case typeStr == "string":
		return ""
	case typeStr == "bytes":
		return []byte{}
	default:
		if size, ok := parseBytesType(typeStr); ok && size > 0 {
			return make([]byte, size)
		}
		if _, _, ok := parseIntegerType(typeStr); ok {
			return big.NewInt(0)
		}
		if _, _, ok := parseArrayType(typeStr); ok {
			return make([]interface{}, 0)
		}
		if components, ok := parseTupleTypes(typeStr); ok {
			tuple := make([]interface{}, len(components))
			for i, c := range components {
				tuple[i] = zeroValue(c)
			}
			return tuple
		}
		return nil
	}
}
