package solidity

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"typefuzz/pkg/fuzz"
)

// seedCacheSize 跨运行的类型种子缓存容量
const seedCacheSize = 256

// MethodDescription 以方法签名描述的模糊目标
type MethodDescription struct {
	// Name 方法名，如 "deposit"
	Name string
	// Types 参数类型字符串（有序）
	Types []string

	scope *fuzz.Scope
}

// NewMethodDescription 从方法签名构建描述，如 "deposit(address,uint256)"
// 叶子类型经go-ethereum的ABI解析器校验
func NewMethodDescription(signature string) (*MethodDescription, error) {
	open := strings.Index(signature, "(")
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return nil, fmt.Errorf("invalid method signature: %s", signature)
	}
	name := signature[:open]

	types, ok := parseTupleTypes(signature[open:])
	if !ok {
		if signature[open:] != "()" {
			return nil, fmt.Errorf("invalid parameter list in signature: %s", signature)
		}
		types = nil
	}

	for _, t := range types {
		if err := validateType(t); err != nil {
			return nil, fmt.Errorf("unsupported parameter type %q: %w", t, err)
		}
	}
	return &MethodDescription{Name: name, Types: types}, nil
}

// Parameters 返回参数类型列表
func (d *MethodDescription) Parameters() []fuzz.Type {
	params := make([]fuzz.Type, len(d.Types))
	for i, t := range d.Types {
		params[i] = t
	}
	return params
}

// CloneWithScope 返回携带作用域的描述副本
func (d *MethodDescription) CloneWithScope(scope *fuzz.Scope) fuzz.Description {
	dup := *d
	dup.scope = scope
	return &dup
}

// Scope 返回携带的作用域（无则nil）
func (d *MethodDescription) Scope() *fuzz.Scope { return d.scope }

// validateType 校验类型字符串：元组/数组逐组件递归，叶子交给ABI解析器
func validateType(typeStr string) error {
	if components, ok := parseTupleTypes(typeStr); ok {
		for _, c := range components {
			if err := validateType(c); err != nil {
				return err
			}
		}
		return nil
	}
	if elem, _, ok := parseArrayType(typeStr); ok {
		return validateType(elem)
	}
	_, err := abi.NewType(typeStr, "", nil)
	return err
}

// EnrichFunc 按调用点定制生成的钩子签名
type EnrichFunc func(desc fuzz.Description, t fuzz.Type, scope *fuzz.Scope)

// Provider Solidity类型的种子提供方
// 类型种子目录经LRU缓存跨运行复用（引擎内的归约器另有每次运行的记忆）
type Provider struct {
	cache *lru.Cache[string, []fuzz.Seed]

	// Enricher 可选的按调用点定制钩子；修改作用域即绕过引擎缓存
	Enricher EnrichFunc
}

// NewProvider 创建提供方
func NewProvider() (*Provider, error) {
	cache, err := lru.New[string, []fuzz.Seed](seedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create seed cache: %w", err)
	}
	return &Provider{cache: cache}, nil
}

// Generate 为类型生成候选Seed序列
func (p *Provider) Generate(desc fuzz.Description, t fuzz.Type) []fuzz.Seed {
	typeStr, ok := t.(string)
	if !ok {
		return nil
	}

	// 作用域路径不走缓存（定制可能改变目录）
	if md, ok := desc.(*MethodDescription); ok && md.scope != nil {
		return p.seedsForType(typeStr, md.scope)
	}

	if seeds, ok := p.cache.Get(typeStr); ok {
		return seeds
	}
	seeds := p.seedsForType(typeStr, nil)
	p.cache.Add(typeStr, seeds)
	return seeds
}

// Enrich 实现fuzz.ScopedProvider
func (p *Provider) Enrich(desc fuzz.Description, t fuzz.Type, scope *fuzz.Scope) {
	if p.Enricher != nil {
		p.Enricher(desc, t, scope)
	}
}

// seedsForType 按类型构建种子目录
func (p *Provider) seedsForType(typeStr string, scope *fuzz.Scope) []fuzz.Seed {
	switch {
	case typeStr == "bool":
		return []fuzz.Seed{
			{Kind: fuzz.SeedSimple, Value: true},
			{Kind: fuzz.SeedSimple, Value: false},
		}

	case typeStr == "address":
		seeds := make([]fuzz.Seed, 0, 16)
		for _, addr := range addressSeedValues() {
			seeds = append(seeds, fuzz.Seed{
				Kind:   fuzz.SeedSimple,
				Value:  addr,
				Mutate: mutateAddress,
			})
		}
		return seeds

	case typeStr == "string":
		seeds := make([]fuzz.Seed, 0, 8)
		for _, s := range stringSeedValues() {
			seeds = append(seeds, fuzz.Seed{
				Kind:   fuzz.SeedSimple,
				Value:  s,
				Mutate: mutateString,
			})
		}
		return seeds
	}

	if bits, signed, ok := parseIntegerType(typeStr); ok {
		return p.integerSeeds(bits, signed, scope)
	}

	if size, ok := parseBytesType(typeStr); ok {
		// bytes/bytesN作为Known种子：载荷为模式，构建函数做防御性拷贝
		var patterns [][]byte
		if size == 0 {
			patterns = bytesPatterns()
		} else {
			patterns = fixedBytesPatterns(size)
		}
		seeds := make([]fuzz.Seed, 0, len(patterns))
		for _, pattern := range patterns {
			seeds = append(seeds, fuzz.Seed{
				Kind:  fuzz.SeedKnown,
				Value: pattern,
				Build: copyBytes,
			})
		}
		return seeds
	}

	if elem, fixedLen, ok := parseArrayType(typeStr); ok {
		if fixedLen > 0 {
			return []fuzz.Seed{p.fixedCompositeSeed(typeStr, repeatType(elem, fixedLen))}
		}
		return []fuzz.Seed{p.dynamicArraySeed(elem)}
	}

	if components, ok := parseTupleTypes(typeStr); ok {
		return []fuzz.Seed{p.fixedCompositeSeed(typeStr, components)}
	}

	// 未支持类型：无候选（上层按NoSeedValue处理）
	return nil
}

// integerSeeds 整数种子；作用域可要求仅边界值
func (p *Provider) integerSeeds(bits int, signed bool, scope *fuzz.Scope) []fuzz.Seed {
	values := integerSeedValues(bits, signed)
	if scope != nil {
		if v, ok := scope.Get("only_boundaries"); ok && v == true {
			// 仅保留前三个边界值 (0, 1, 2) 与最大值族
			if len(values) > 3 {
				values = append(values[:3:3], values[len(values)-3:]...)
			}
		}
	}
	seeds := make([]fuzz.Seed, 0, len(values))
	for _, v := range values {
		seeds = append(seeds, fuzz.Seed{
			Kind:   fuzz.SeedSimple,
			Value:  v,
			Mutate: mutateInteger(bits, signed),
		})
	}
	return seeds
}

// dynamicArraySeed 动态数组作为Collection种子
// 物化表示为[]interface{}；逐元素修改例程写入对应索引
func (p *Provider) dynamicArraySeed(elem string) fuzz.Seed {
	return fuzz.Seed{
		Kind: fuzz.SeedCollection,
		Construct: fuzz.NewCollectionRoutine(func(size int) interface{} {
			return make([]interface{}, size)
		}),
		ModifyEach: fuzz.NewForEachRoutine([]fuzz.Type{elem},
			func(collection interface{}, index int, args []interface{}) {
				collection.([]interface{})[index] = args[0]
			}),
		Empty: fuzz.NewEmptyRoutine(func([]interface{}) interface{} {
			return make([]interface{}, 0)
		}),
	}
}

// fixedCompositeSeed 固定长度数组与元组作为Recursive种子
// 构造例程按组件类型逐个取参；修改例程按索引替换单个组件
func (p *Provider) fixedCompositeSeed(typeStr string, components []string) fuzz.Seed {
	types := make([]fuzz.Type, len(components))
	for i, c := range components {
		types[i] = c
	}

	modify := make([]*fuzz.Routine, len(components))
	for i := range components {
		index := i
		modify[i] = fuzz.NewCallRoutine([]fuzz.Type{components[i]},
			func(instance interface{}, args []interface{}) {
				instance.([]interface{})[index] = args[0]
			})
	}

	return fuzz.Seed{
		Kind: fuzz.SeedRecursive,
		Construct: fuzz.NewCreateRoutine(types, func(args []interface{}) interface{} {
			out := make([]interface{}, len(args))
			copy(out, args)
			return out
		}),
		Modify: modify,
		Empty: fuzz.NewEmptyRoutine(func([]interface{}) interface{} {
			return zeroValue(typeStr)
		}),
	}
}

func repeatType(elem string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = elem
	}
	return out
}
