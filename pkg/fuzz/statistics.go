package fuzz

import (
	"math/rand"
	"time"
)

// Statistics 单次运行的统计状态：配置 + 种群 + 随机源 + 汇总计数
// 由单个运行独占，单线程协作调度下无需加锁
// fork时显式深拷贝（种群、配置、随机源各自独立），绝不共享可变状态
type Statistics struct {
	// Config 引擎配置
	Config *Configuration
	// Minset 保留种群策略
	Minset Minset

	rng       *rand.Rand
	totalRuns int64
	startTime time.Time
	// missedTypes 类型 → 归约期间缺失候选的次数（诊断表）
	missedTypes map[Type]int
}

// NewStatistics 创建统计状态
// seed为随机源种子；config.RandomSeed非0时优先生效
func NewStatistics(config *Configuration, minset Minset, seed int64) *Statistics {
	if config == nil {
		config = DefaultConfiguration()
	}
	if minset == nil {
		minset = NewFullMinset(config.energy(), false, config.ProbUpdateSeedInsteadOfKeepOld)
	}
	if config.RandomSeed != 0 {
		seed = config.RandomSeed
	}
	return &Statistics{
		Config:      config,
		Minset:      minset,
		rng:         rand.New(rand.NewSource(seed)),
		missedTypes: make(map[Type]int),
	}
}

// Rand 返回本运行的随机源
func (s *Statistics) Rand() *rand.Rand { return s.rng }

// TotalRuns 总迭代数
func (s *Statistics) TotalRuns() int64 { return s.totalRuns }

// ElapsedTime 自运行开始的耗时
func (s *Statistics) ElapsedTime() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// MissedTypes 缺失类型诊断表的副本
func (s *Statistics) MissedTypes() map[Type]int {
	out := make(map[Type]int, len(s.missedTypes))
	for k, v := range s.missedTypes {
		out[k] = v
	}
	return out
}

// RecordMissedType 记录一次缺失类型
func (s *Statistics) RecordMissedType(t Type) {
	s.missedTypes[t]++
}

// start 记录运行开始时间（只记首次）
func (s *Statistics) start() {
	if s.startTime.IsZero() {
		s.startTime = time.Now()
	}
}

// incrementRuns 递增总迭代数并返回新值
func (s *Statistics) incrementRuns() int64 {
	s.totalRuns++
	return s.totalRuns
}

// Fork 深拷贝统计状态：种群与配置拷贝，随机源由父源确定性派生
// 派生种子取自父随机源，forked运行在测试中可复现
func (s *Statistics) Fork() *Statistics {
	dup := &Statistics{
		Config:      s.Config.Clone(),
		Minset:      s.Minset.Fork(),
		rng:         rand.New(rand.NewSource(s.rng.Int63())),
		totalRuns:   s.totalRuns,
		missedTypes: make(map[Type]int, len(s.missedTypes)),
	}
	for k, v := range s.missedTypes {
		dup.missedTypes[k] = v
	}
	return dup
}
