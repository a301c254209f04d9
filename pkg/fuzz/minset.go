package fuzz

import (
	"math/rand"
)

// MinsetEvent 种子池更新事件，每次put都返回
type MinsetEvent int

const (
	// EventNothingNew 反馈键与存储值均无变化
	EventNothingNew MinsetEvent = iota
	// EventNewFeedback 首次见到该反馈键
	EventNewFeedback
	// EventNewValue 覆盖分支更换了存储的Node
	EventNewValue
)

// String 返回事件名称
func (e MinsetEvent) String() string {
	switch e {
	case EventNothingNew:
		return "NOTHING_NEW"
	case EventNewFeedback:
		return "NEW_FEEDBACK"
	case EventNewValue:
		return "NEW_VALUE"
	default:
		return "UNKNOWN"
	}
}

// Minset 保留种群策略接口
// 以反馈为键保留历史Node，支持加权随机取回以引导后续变异
type Minset interface {
	// Put 更新种群并返回事件
	Put(r *rand.Rand, feedback Feedback, node *Node) MinsetEvent

	// GetRandomSeed 按energy(出现次数)加权随机取回一个Node
	// 空种群属前置条件违规，直接panic，绝不返回nil兜底
	GetRandomSeed(r *rand.Rand) *Node

	// IsNotEmpty 种群是否非空
	IsNotEmpty() bool

	// Size 保留的反馈键数量
	Size() int

	// Fork 深拷贝本策略（fork运行时使用；Node树不可变，指针可共享）
	Fork() Minset

	// MutationEfficiencies 变异算子 → 观测成功率
	// 非跟踪变体返回空映射
	MutationEfficiencies() map[string]float64
}

// KeepStrategy 单值保留策略
type KeepStrategy int

const (
	// KeepFirst 一经写入永不替换
	KeepFirst KeepStrategy = iota
	// KeepLast 总是替换
	KeepLast
)

// minsetEntry 单个反馈键的保留项
type minsetEntry struct {
	node  *Node
	count int
}

// keyedStore 反馈键 → 保留项，附带稳定顺序（map遍历顺序不定，采样需要确定序）
type keyedStore struct {
	entries map[Feedback]*minsetEntry
	order   []Feedback
	energy  EnergyFunction
}

func newKeyedStore(energy EnergyFunction) *keyedStore {
	if energy == nil {
		energy = DefaultEnergyFunction
	}
	return &keyedStore{
		entries: make(map[Feedback]*minsetEntry),
		energy:  energy,
	}
}

func (s *keyedStore) fork() *keyedStore {
	dup := newKeyedStore(s.energy)
	for k, e := range s.entries {
		dup.entries[k] = &minsetEntry{node: e.node, count: e.count}
	}
	dup.order = append([]Feedback(nil), s.order...)
	return dup
}

// sample 按energy(count)加权抽取一个保留项
func (s *keyedStore) sample(r *rand.Rand) *minsetEntry {
	if len(s.order) == 0 {
		panic("fuzz: getRandomSeed called on empty minset")
	}

	weights := make([]float64, len(s.order))
	var total float64
	for i, key := range s.order {
		w := s.energy(s.entries[key].count)
		if w < 0 {
			w = 0
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		// 能量全为0时退化为均匀抽取
		return s.entries[s.order[r.Intn(len(s.order))]]
	}

	// 累积概率采样
	draw := r.Float64() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if draw <= cumulative {
			return s.entries[s.order[i]]
		}
	}
	return s.entries[s.order[len(s.order)-1]]
}

// efficiencyTracker 变异算子效率记账：成功数/尝试数
type efficiencyTracker struct {
	attempts  map[string]int
	successes map[string]int
}

func newEfficiencyTracker() *efficiencyTracker {
	return &efficiencyTracker{
		attempts:  make(map[string]int),
		successes: make(map[string]int),
	}
}

func (t *efficiencyTracker) record(node *Node, event MinsetEvent) {
	op := nodeMutation(node)
	if op == "" {
		return
	}
	t.attempts[op]++
	if event != EventNothingNew {
		t.successes[op]++
	}
}

func (t *efficiencyTracker) efficiencies() map[string]float64 {
	out := make(map[string]float64, len(t.attempts))
	for op, attempts := range t.attempts {
		if attempts > 0 {
			out[op] = float64(t.successes[op]) / float64(attempts)
		}
	}
	return out
}

func (t *efficiencyTracker) fork() *efficiencyTracker {
	dup := newEfficiencyTracker()
	for k, v := range t.attempts {
		dup.attempts[k] = v
	}
	for k, v := range t.successes {
		dup.successes[k] = v
	}
	return dup
}

// nodeMutation 提取Node的变异算子来源（首个非空LastMutation）
func nodeMutation(node *Node) string {
	for _, res := range node.Result {
		if res.LastMutation != "" {
			return res.LastMutation
		}
	}
	return ""
}

// FullMinset 全量多种子策略：每个不同反馈键保留一个Node
// 覆盖模式下每次put按配置概率掷币决定是否覆盖；保留首值模式永不替换
// 内部出现计数总是递增
type FullMinset struct {
	store     *keyedStore
	keepFirst bool
	// probUpdate 覆盖模式下更换存储Node的概率
	probUpdate float64
}

// NewFullMinset 创建全量多种子策略
// keepFirst为true时保留首见值；否则按probUpdate掷币覆盖
func NewFullMinset(energy EnergyFunction, keepFirst bool, probUpdate float64) *FullMinset {
	return &FullMinset{
		store:      newKeyedStore(energy),
		keepFirst:  keepFirst,
		probUpdate: probUpdate,
	}
}

// Put 更新种群
func (m *FullMinset) Put(r *rand.Rand, feedback Feedback, node *Node) MinsetEvent {
	entry, ok := m.store.entries[feedback]
	if !ok {
		m.store.entries[feedback] = &minsetEntry{node: node, count: 1}
		m.store.order = append(m.store.order, feedback)
		return EventNewFeedback
	}

	entry.count++
	if m.keepFirst {
		return EventNothingNew
	}
	if r.Float64() < m.probUpdate && entry.node != node {
		entry.node = node
		return EventNewValue
	}
	return EventNothingNew
}

// GetRandomSeed 加权随机取回
func (m *FullMinset) GetRandomSeed(r *rand.Rand) *Node {
	return m.store.sample(r).node
}

// IsNotEmpty 种群是否非空
func (m *FullMinset) IsNotEmpty() bool { return len(m.store.order) > 0 }

// Size 反馈键数量
func (m *FullMinset) Size() int { return len(m.store.order) }

// Fork 深拷贝
func (m *FullMinset) Fork() Minset {
	return &FullMinset{store: m.store.fork(), keepFirst: m.keepFirst, probUpdate: m.probUpdate}
}

// MutationEfficiencies 本策略不跟踪算子效率
func (m *FullMinset) MutationEfficiencies() map[string]float64 {
	return map[string]float64{}
}

// SingleValueMinset 单值策略：每个反馈键恰好保留一个Node
// 保留策略可插拔（FIRST/LAST）；可选跟踪每个变异算子被接纳的次数
type SingleValueMinset struct {
	store    *keyedStore
	strategy KeepStrategy
	// tracker 非nil时跟踪算子效率（跟踪变体）
	tracker *efficiencyTracker
}

// NewSingleValueMinset 创建单值策略
func NewSingleValueMinset(energy EnergyFunction, strategy KeepStrategy) *SingleValueMinset {
	return &SingleValueMinset{store: newKeyedStore(energy), strategy: strategy}
}

// NewTrackingSingleValueMinset 创建带算子效率跟踪的单值策略
func NewTrackingSingleValueMinset(energy EnergyFunction, strategy KeepStrategy) *SingleValueMinset {
	return &SingleValueMinset{
		store:    newKeyedStore(energy),
		strategy: strategy,
		tracker:  newEfficiencyTracker(),
	}
}

// Put 更新种群
func (m *SingleValueMinset) Put(r *rand.Rand, feedback Feedback, node *Node) MinsetEvent {
	event := m.put(feedback, node)
	if m.tracker != nil {
		m.tracker.record(node, event)
	}
	return event
}

func (m *SingleValueMinset) put(feedback Feedback, node *Node) MinsetEvent {
	entry, ok := m.store.entries[feedback]
	if !ok {
		m.store.entries[feedback] = &minsetEntry{node: node, count: 1}
		m.store.order = append(m.store.order, feedback)
		return EventNewFeedback
	}

	entry.count++
	switch m.strategy {
	case KeepFirst:
		return EventNothingNew
	case KeepLast:
		if entry.node != node {
			entry.node = node
			return EventNewValue
		}
		return EventNothingNew
	default:
		panic("fuzz: unknown keep strategy")
	}
}

// GetRandomSeed 加权随机取回
func (m *SingleValueMinset) GetRandomSeed(r *rand.Rand) *Node {
	return m.store.sample(r).node
}

// IsNotEmpty 种群是否非空
func (m *SingleValueMinset) IsNotEmpty() bool { return len(m.store.order) > 0 }

// Size 反馈键数量
func (m *SingleValueMinset) Size() int { return len(m.store.order) }

// Fork 深拷贝
func (m *SingleValueMinset) Fork() Minset {
	dup := &SingleValueMinset{store: m.store.fork(), strategy: m.strategy}
	if m.tracker != nil {
		dup.tracker = m.tracker.fork()
	}
	return dup
}

// MutationEfficiencies 跟踪变体返回算子成功率，否则空映射
func (m *SingleValueMinset) MutationEfficiencies() map[string]float64 {
	if m.tracker == nil {
		return map[string]float64{}
	}
	return m.tracker.efficiencies()
}

// SingleSeedMinset 整次运行只保留一个Node（与反馈键无关）
// 同时跟踪每个反馈键的出现次数，以及每个变异算子的成功/尝试比
type SingleSeedMinset struct {
	strategy KeepStrategy
	seed     *Node
	hasSeed  bool
	// counts 反馈键出现计数（摘要用）
	counts  map[Feedback]int
	order   []Feedback
	tracker *efficiencyTracker
}

// NewSingleSeedMinset 创建单种子策略
func NewSingleSeedMinset(strategy KeepStrategy) *SingleSeedMinset {
	return &SingleSeedMinset{
		strategy: strategy,
		counts:   make(map[Feedback]int),
		tracker:  newEfficiencyTracker(),
	}
}

// Put 更新种群
func (m *SingleSeedMinset) Put(r *rand.Rand, feedback Feedback, node *Node) MinsetEvent {
	_, seen := m.counts[feedback]
	m.counts[feedback]++
	if !seen {
		m.order = append(m.order, feedback)
	}

	var event MinsetEvent
	switch {
	case !m.hasSeed:
		m.seed = node
		m.hasSeed = true
		event = EventNewFeedback
	case !seen:
		if m.strategy == KeepLast {
			m.seed = node
		}
		event = EventNewFeedback
	case m.strategy == KeepLast && m.seed != node:
		m.seed = node
		event = EventNewValue
	default:
		event = EventNothingNew
	}

	m.tracker.record(node, event)
	return event
}

// GetRandomSeed 返回保留的唯一Node；空种群panic
func (m *SingleSeedMinset) GetRandomSeed(r *rand.Rand) *Node {
	if !m.hasSeed {
		panic("fuzz: getRandomSeed called on empty minset")
	}
	return m.seed
}

// IsNotEmpty 种群是否非空
func (m *SingleSeedMinset) IsNotEmpty() bool { return m.hasSeed }

// Size 观测到的反馈键数量
func (m *SingleSeedMinset) Size() int { return len(m.order) }

// FeedbackCount 指定反馈键的出现次数
func (m *SingleSeedMinset) FeedbackCount(feedback Feedback) int {
	return m.counts[feedback]
}

// Fork 深拷贝
func (m *SingleSeedMinset) Fork() Minset {
	dup := NewSingleSeedMinset(m.strategy)
	dup.seed = m.seed
	dup.hasSeed = m.hasSeed
	for k, v := range m.counts {
		dup.counts[k] = v
	}
	dup.order = append([]Feedback(nil), m.order...)
	dup.tracker = m.tracker.fork()
	return dup
}

// MutationEfficiencies 算子 → 成功/尝试比
func (m *SingleSeedMinset) MutationEfficiencies() map[string]float64 {
	return m.tracker.efficiencies()
}
