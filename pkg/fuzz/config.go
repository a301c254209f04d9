package fuzz

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v2"
)

// EnergyFunction 能量函数：出现次数 → 采样权重
// 单调递减的能量函数会把探索偏向出现较少的反馈键
type EnergyFunction func(count int) float64

// DefaultEnergyFunction 默认能量函数 1/n
func DefaultEnergyFunction(count int) float64 {
	if count <= 0 {
		return 1.0
	}
	return 1.0 / float64(count)
}

// Configuration 引擎配置（按约定不可变，fork时深拷贝）
type Configuration struct {
	// ProbSeedRetrievalInsteadGenerating 复用种子池中已有Node而非新生成的概率
	ProbSeedRetrievalInsteadGenerating float64 `yaml:"prob_seed_retrieval" json:"prob_seed_retrieval"`
	// ProbMutationRate 新生成Node后追加一次变异的概率
	ProbMutationRate float64 `yaml:"prob_mutation_rate" json:"prob_mutation_rate"`
	// ProbReuseGeneratedValueForSameType 同一次构造内复用同类型已生成值的概率
	ProbReuseGeneratedValueForSameType float64 `yaml:"prob_reuse_generated_value" json:"prob_reuse_generated_value"`
	// ProbEmptyCollectionCreation 集合归约为0元素的概率
	ProbEmptyCollectionCreation float64 `yaml:"prob_empty_collection" json:"prob_empty_collection"`
	// ProbCollectionDuplication 集合修改采用复制模式（一次修改重放N次）的概率
	ProbCollectionDuplication float64 `yaml:"prob_collection_duplication" json:"prob_collection_duplication"`
	// ProbUpdateSeedInsteadOfKeepOld 全量多种子策略中覆盖旧值的概率
	ProbUpdateSeedInsteadOfKeepOld float64 `yaml:"prob_update_seed" json:"prob_update_seed"`

	// RecursionTreeDepth 最大递归深度（比较方式为 当前深度 > 上限）
	RecursionTreeDepth int `yaml:"recursion_tree_depth" json:"recursion_tree_depth"`
	// MaxCollectionIterations 集合最大元素数
	MaxCollectionIterations int `yaml:"max_collection_iterations" json:"max_collection_iterations"`
	// MaxRecursiveModifications 单次递归构造同时应用的修改例程上限
	MaxRecursiveModifications int `yaml:"max_recursive_modifications" json:"max_recursive_modifications"`

	// GenerateEmptyCollectionsForMissedTypes 缺失类型时是否以空值替代（否则中止本轮迭代）
	GenerateEmptyCollectionsForMissedTypes bool `yaml:"generate_empty_for_missed_types" json:"generate_empty_for_missed_types"`

	// RandomSeed 随机源种子（0表示由调用方决定）
	RandomSeed int64 `yaml:"random_seed" json:"random_seed"`

	// Energy 采样能量函数（不参与序列化，nil时使用DefaultEnergyFunction）
	Energy EnergyFunction `yaml:"-" json:"-"`
}

// DefaultConfiguration 默认配置
func DefaultConfiguration() *Configuration {
	return &Configuration{
		ProbSeedRetrievalInsteadGenerating: 0.5,
		ProbMutationRate:                   0.3,
		ProbReuseGeneratedValueForSameType: 0.1,
		ProbEmptyCollectionCreation:        0.1,
		ProbCollectionDuplication:          0.1,
		ProbUpdateSeedInsteadOfKeepOld:     0.5,
		RecursionTreeDepth:                 4,
		MaxCollectionIterations:            8,
		MaxRecursiveModifications:          4,
		GenerateEmptyCollectionsForMissedTypes: false,
		Energy: DefaultEnergyFunction,
	}
}

// LoadConfiguration 从yaml文件加载配置，缺省值取DefaultConfiguration
func LoadConfiguration(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfiguration()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 校验配置合法性
func (c *Configuration) Validate() error {
	probs := map[string]float64{
		"prob_seed_retrieval":         c.ProbSeedRetrievalInsteadGenerating,
		"prob_mutation_rate":          c.ProbMutationRate,
		"prob_reuse_generated_value":  c.ProbReuseGeneratedValueForSameType,
		"prob_empty_collection":       c.ProbEmptyCollectionCreation,
		"prob_collection_duplication": c.ProbCollectionDuplication,
		"prob_update_seed":            c.ProbUpdateSeedInsteadOfKeepOld,
	}
	for name, p := range probs {
		if p < 0 || p > 1 || math.IsNaN(p) {
			return fmt.Errorf("invalid probability %s: %v (must be in [0,1])", name, p)
		}
	}
	if c.RecursionTreeDepth < 0 {
		return fmt.Errorf("invalid recursion_tree_depth: %d (must be >= 0)", c.RecursionTreeDepth)
	}
	if c.MaxCollectionIterations < 1 {
		return fmt.Errorf("invalid max_collection_iterations: %d (must be >= 1)", c.MaxCollectionIterations)
	}
	if c.MaxRecursiveModifications < 0 {
		return fmt.Errorf("invalid max_recursive_modifications: %d (must be >= 0)", c.MaxRecursiveModifications)
	}
	return nil
}

// Clone 深拷贝配置（fork时使用）
func (c *Configuration) Clone() *Configuration {
	dup := *c
	return &dup
}

// energy 返回能量函数，nil时回退默认
func (c *Configuration) energy() EnergyFunction {
	if c.Energy != nil {
		return c.Energy
	}
	return DefaultEnergyFunction
}
