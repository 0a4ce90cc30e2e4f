// Package features 提供材料特征的存储与编码
package features

import (
	"fmt"
	"sync"
)

// Count 特征数量，固定不变
const Count = 6

// Keys 特征在请求体中的键名，顺序固定
var Keys = [Count]string{"Su", "Sy", "E", "G", "mu", "Ro"}

// Labels 页面上显示的特征名称
var Labels = [Count]string{
	"Ultimate Tensile Strength (Su)",
	"Yield Strength (Sy)",
	"Elastic Modulus (E)",
	"Shear Modulus (G)",
	"Poisson's Ratio (mu)",
	"Density (Ro)",
}

// Units 特征的物理单位，空字符串表示无量纲
var Units = [Count]string{"MPa", "MPa", "MPa", "MPa", "", "kg/m³"}

// Store 保存六个特征的原始输入文本
type Store struct {
	mu     sync.RWMutex
	values [Count]string
}

// NewStore 创建空的特征存储
func NewStore() *Store {
	return &Store{}
}

// SetFeature 替换指定下标的原始值，其他槽位不变。
// 下标越界属于编程错误，直接panic。
func (s *Store) SetFeature(index int, raw string) {
	if index < 0 || index >= Count {
		panic(fmt.Sprintf("features: index %d out of range [0,%d)", index, Count))
	}
	s.mu.Lock()
	s.values[index] = raw
	s.mu.Unlock()
}

// Snapshot 按固定顺序返回当前原始值的副本
func (s *Store) Snapshot() [Count]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

// ValidIndex 判断下标是否合法
func ValidIndex(index int) bool {
	return index >= 0 && index < Count
}
