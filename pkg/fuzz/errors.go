package fuzz

import (
	"errors"
	"fmt"
)

// NoSeedValueError 请求类型没有任何候选Seed
// 在递归/集合展开期间可按配置吞入空值替代；否则传播并中止本轮迭代
type NoSeedValueError struct {
	// Type 缺失候选的类型
	Type Type
}

func (e *NoSeedValueError) Error() string {
	return fmt.Sprintf("no seed value for type %v", e.Type)
}

// IsNoSeedValue 判断错误链中是否为NoSeedValueError
func IsNoSeedValue(err error) bool {
	var target *NoSeedValueError
	return errors.As(err, &target)
}

// ErrScopeNotSupported Enrich修改了作用域但Description不支持携带作用域克隆
// 属配置错误，引擎快速失败
var ErrScopeNotSupported = errors.New("fuzz: scope was modified but description does not implement ScopedDescription")
