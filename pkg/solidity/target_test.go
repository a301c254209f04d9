package solidity

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typefuzz/pkg/fuzz"
)

func depositDesc(t *testing.T) *MethodDescription {
	t.Helper()
	desc, err := NewMethodDescription("deposit(address,uint256)")
	require.NoError(t, err)
	return desc
}

// TestVaultDeposit 测试金库目标的存款分支
func TestVaultDeposit(t *testing.T) {
	account := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb1")

	t.Run("HappyPath", func(t *testing.T) {
		vault := NewVaultTarget()
		fb, err := vault.Evaluate(depositDesc(t), []interface{}{account, big.NewInt(500)})
		require.NoError(t, err)

		assert.Equal(t, fuzz.ControlContinue, fb.Control())
		assert.Equal(t, big.NewInt(500), vault.Balance(account))
	})

	t.Run("ZeroAddress", func(t *testing.T) {
		vault := NewVaultTarget()
		fb, err := vault.Evaluate(depositDesc(t), []interface{}{common.Address{}, big.NewInt(500)})
		require.NoError(t, err)
		assert.Equal(t, fuzz.ControlContinue, fb.Control())
		assert.False(t, vault.BugFound())
	})

	t.Run("JackpotStops", func(t *testing.T) {
		vault := NewVaultTarget()
		amount := new(big.Int).Lsh(big.NewInt(1), 31)
		fb, err := vault.Evaluate(depositDesc(t), []interface{}{account, amount})
		require.NoError(t, err)

		assert.Equal(t, fuzz.ControlStop, fb.Control())
		assert.True(t, vault.BugFound())

		weighted, ok := fb.(fuzz.WeightedFeedback)
		require.True(t, ok)
		assert.Greater(t, weighted.Weight(), 1.0, "The bug path carries extra weight")
	})

	t.Run("SameBranchSameFeedback", func(t *testing.T) {
		vault := NewVaultTarget()
		fb1, err := vault.Evaluate(depositDesc(t), []interface{}{account, big.NewInt(100)})
		require.NoError(t, err)
		fb2, err := vault.Evaluate(depositDesc(t), []interface{}{account, big.NewInt(900)})
		require.NoError(t, err)
		fb3, err := vault.Evaluate(depositDesc(t), []interface{}{account, big.NewInt(5000)})
		require.NoError(t, err)

		assert.Equal(t, fb1, fb2, "Same magnitude bucket maps to the same feedback key")
		assert.NotEqual(t, fb1, fb3, "Different magnitude buckets map to different keys")
	})

	t.Run("BadArguments", func(t *testing.T) {
		vault := NewVaultTarget()
		_, err := vault.Evaluate(depositDesc(t), []interface{}{account})
		assert.Error(t, err)
		_, err = vault.Evaluate(depositDesc(t), []interface{}{account, "not-a-number"})
		assert.Error(t, err)
	})
}

// TestVaultWithdraw 测试取款分支与PASS指令
func TestVaultWithdraw(t *testing.T) {
	account := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb1")
	withdrawDesc, err := NewMethodDescription("withdraw(address,uint256)")
	require.NoError(t, err)

	vault := NewVaultTarget()
	_, err = vault.Evaluate(depositDesc(t), []interface{}{account, big.NewInt(1000)})
	require.NoError(t, err)

	fb, err := vault.Evaluate(withdrawDesc, []interface{}{account, big.NewInt(400)})
	require.NoError(t, err)
	assert.Equal(t, fuzz.ControlContinue, fb.Control())
	assert.Equal(t, big.NewInt(600), vault.Balance(account))

	// 余额不足走PASS路径
	fb, err = vault.Evaluate(withdrawDesc, []interface{}{account, big.NewInt(10000)})
	require.NoError(t, err)
	assert.Equal(t, fuzz.ControlPass, fb.Control())
	assert.Equal(t, big.NewInt(600), vault.Balance(account))
}

// TestVaultBatchDeposit 测试批量存款与集合参数
func TestVaultBatchDeposit(t *testing.T) {
	batchDesc, err := NewMethodDescription("batchDeposit(address[],uint256)")
	require.NoError(t, err)

	a := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb1")
	b := common.HexToAddress("0xdEAD000000000000000042069420694206942069")

	vault := NewVaultTarget()
	fb, err := vault.Evaluate(batchDesc, []interface{}{
		[]interface{}{a, b, common.Address{}},
		big.NewInt(50),
	})
	require.NoError(t, err)

	assert.Equal(t, fuzz.ControlContinue, fb.Control())
	assert.Equal(t, big.NewInt(50), vault.Balance(a))
	assert.Equal(t, big.NewInt(50), vault.Balance(b))
	assert.Equal(t, big.NewInt(0), vault.Balance(common.Address{}))

	// 空批次是独立路径
	fbEmpty, err := vault.Evaluate(batchDesc, []interface{}{[]interface{}{}, big.NewInt(50)})
	require.NoError(t, err)
	assert.NotEqual(t, fb, fbEmpty)
}

// TestVaultUnknownMethod 测试未知方法报错
func TestVaultUnknownMethod(t *testing.T) {
	desc, err := NewMethodDescription("selfdestruct(address)")
	require.NoError(t, err)

	vault := NewVaultTarget()
	_, err = vault.Evaluate(desc, []interface{}{common.Address{}})
	assert.Error(t, err)
}
