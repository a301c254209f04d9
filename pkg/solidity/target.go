package solidity

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"typefuzz/pkg/fuzz"
)

// PathFeedback 执行路径反馈：路径签名为键，附带指令与权重
// 值类型且可比较，可直接作为种群映射的键
type PathFeedback struct {
	// Path 执行路径的keccak签名
	Path common.Hash
	// Directive 对驱动器的指令
	Directive fuzz.Control
	// Rarity 路径稀有度权重
	Rarity float64
}

// Control 实现fuzz.Feedback
func (f PathFeedback) Control() fuzz.Control { return f.Directive }

// Weight 实现fuzz.WeightedFeedback
func (f PathFeedback) Weight() float64 { return f.Rarity }

// String 便于日志与测试输出
func (f PathFeedback) String() string {
	return fmt.Sprintf("path=%s directive=%s", f.Path.Hex()[:10], f.Directive)
}

// jackpotAmount 触发隐藏缺陷的存款金额
var jackpotAmount = new(big.Int).Lsh(big.NewInt(1), 31)

// depositCap 单笔存款上限
var depositCap = new(big.Int).Lsh(big.NewInt(1), 128)

// VaultTarget 演示求值目标：模拟一个带隐藏缺陷的金库合约
// 支持 deposit(address,uint256) / withdraw(address,uint256) / batchDeposit(address[],uint256)
// 存款金额恰为2^31时触发缺陷分支并下达STOP
// 可被主运行与fork运行共享，内部加锁
type VaultTarget struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	bugFound bool
}

// NewVaultTarget 创建金库目标
func NewVaultTarget() *VaultTarget {
	return &VaultTarget{balances: make(map[common.Address]*big.Int)}
}

// Evaluate 实现fuzz.Evaluator
func (v *VaultTarget) Evaluate(desc fuzz.Description, values []interface{}) (fuzz.Feedback, error) {
	md, ok := desc.(*MethodDescription)
	if !ok {
		return nil, fmt.Errorf("vault: unsupported description type %T", desc)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	switch md.Name {
	case "deposit":
		return v.deposit(values)
	case "withdraw":
		return v.withdraw(values)
	case "batchDeposit":
		return v.batchDeposit(values)
	default:
		return nil, fmt.Errorf("vault: unknown method %s", md.Name)
	}
}

func (v *VaultTarget) deposit(values []interface{}) (fuzz.Feedback, error) {
	account, amount, err := accountAmount(values)
	if err != nil {
		return nil, err
	}

	if account == (common.Address{}) {
		return pathOf("deposit", "zero_address"), nil
	}
	if amount.Sign() == 0 {
		return pathOf("deposit", "zero_amount"), nil
	}
	if amount.Cmp(depositCap) > 0 {
		return pathOf("deposit", "over_cap"), nil
	}
	if amount.Cmp(jackpotAmount) == 0 {
		// 隐藏缺陷分支
		v.bugFound = true
		fb := pathOf("deposit", "jackpot")
		fb.Directive = fuzz.ControlStop
		fb.Rarity = 100
		return fb, nil
	}

	v.credit(account, amount)
	return pathOf("deposit", "ok", magnitudeBucket(amount)), nil
}

func (v *VaultTarget) withdraw(values []interface{}) (fuzz.Feedback, error) {
	account, amount, err := accountAmount(values)
	if err != nil {
		return nil, err
	}

	balance, ok := v.balances[account]
	if !ok || balance.Cmp(amount) < 0 {
		// 余额不足：对PASS指令路径
		fb := pathOf("withdraw", "insufficient")
		fb.Directive = fuzz.ControlPass
		return fb, nil
	}
	balance.Sub(balance, amount)
	return pathOf("withdraw", "ok", magnitudeBucket(amount)), nil
}

func (v *VaultTarget) batchDeposit(values []interface{}) (fuzz.Feedback, error) {
	if len(values) != 2 {
		return nil, fmt.Errorf("vault: batchDeposit expects 2 arguments, got %d", len(values))
	}
	accounts, ok := values[0].([]interface{})
	if !ok {
		return nil, fmt.Errorf("vault: batchDeposit expects address[], got %T", values[0])
	}
	amount, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("vault: batchDeposit expects uint256 amount, got %T", values[1])
	}

	if len(accounts) == 0 {
		return pathOf("batchDeposit", "empty_batch"), nil
	}
	credited := 0
	for _, raw := range accounts {
		account, ok := raw.(common.Address)
		if !ok {
			return nil, fmt.Errorf("vault: batchDeposit element is %T, want address", raw)
		}
		if account == (common.Address{}) || amount.Sign() == 0 {
			continue
		}
		v.credit(account, amount)
		credited++
	}
	if credited == 0 {
		return pathOf("batchDeposit", "all_skipped"), nil
	}
	fb := pathOf("batchDeposit", "ok", fmt.Sprintf("batch_%d", sizeBucket(credited)))
	fb.Rarity = float64(1 + credited)
	return fb, nil
}

func (v *VaultTarget) credit(account common.Address, amount *big.Int) {
	balance, ok := v.balances[account]
	if !ok {
		balance = new(big.Int)
		v.balances[account] = balance
	}
	balance.Add(balance, amount)
}

// Balance 账户余额（只读副本）
func (v *VaultTarget) Balance(account common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	balance, ok := v.balances[account]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(balance)
}

// BugFound 缺陷分支是否已被命中
func (v *VaultTarget) BugFound() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bugFound
}

// pathOf 由分支标签序列构建路径反馈
func pathOf(labels ...string) PathFeedback {
	data := make([]byte, 0, 64)
	for _, label := range labels {
		data = append(data, label...)
		data = append(data, 0)
	}
	return PathFeedback{
		Path:      crypto.Keccak256Hash(data),
		Directive: fuzz.ControlContinue,
		Rarity:    1,
	}
}

// magnitudeBucket 按十进制位数分桶，同量级归入同一路径
func magnitudeBucket(amount *big.Int) string {
	return fmt.Sprintf("mag_%d", len(amount.String()))
}

func sizeBucket(n int) int {
	switch {
	case n <= 2:
		return n
	case n <= 8:
		return 4
	default:
		return 16
	}
}

func accountAmount(values []interface{}) (common.Address, *big.Int, error) {
	if len(values) != 2 {
		return common.Address{}, nil, fmt.Errorf("vault: expected 2 arguments, got %d", len(values))
	}
	account, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("vault: expected address, got %T", values[0])
	}
	amount, ok := values[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("vault: expected uint256, got %T", values[1])
	}
	return account, amount, nil
}
