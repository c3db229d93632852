package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/wan-elmus/AutiCare/internal/models"
)

// 压力等级的封闭集合：0=正常, 1-2=轻度, 3=高度
const (
	MinStressLevel = 0
	MaxStressLevel = 3
)

// ErrModelUnavailable 模型未加载（启动时致命，运行中不应出现）
var ErrModelUnavailable = errors.New("stress model unavailable")

// treeNode 决策树节点
// Leaf 非 nil 表示叶子节点；否则按 Feature/Threshold 分裂
type treeNode struct {
	Feature   int       `json:"feature"`   // 特征下标（0-5，对应模型输入顺序）
	Threshold float64   `json:"threshold"` // 分裂阈值（<= 走左子树）
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
	Leaf      *int      `json:"leaf,omitempty"` // 叶子节点的压力等级
}

// modelFile 模型文件结构（由训练管线导出的 JSON）
type modelFile struct {
	Version string      `json:"version"`
	Trees   []*treeNode `json:"trees"`
}

// Model 预训练压力分类模型（随机森林，多数表决）
// 进程启动时加载一次，生命周期内不可变
type Model struct {
	trees  []*treeNode
	logger *zap.Logger
}

// LoadModel 从文件加载模型
// 加载失败对进程是致命的：没有模型就没有预测能力
func LoadModel(path string, logger *zap.Logger) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read model file %s: %v", ErrModelUnavailable, path, err)
	}

	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("%w: failed to parse model file: %v", ErrModelUnavailable, err)
	}
	if len(mf.Trees) == 0 {
		return nil, fmt.Errorf("%w: model file contains no trees", ErrModelUnavailable)
	}

	// 加载时校验每棵树：叶子等级必须落在封闭集合内，特征下标必须合法
	for i, tree := range mf.Trees {
		if err := validateTree(tree); err != nil {
			return nil, fmt.Errorf("%w: tree %d invalid: %v", ErrModelUnavailable, i, err)
		}
	}

	logger.Info("Stress model loaded",
		zap.String("path", path),
		zap.String("version", mf.Version),
		zap.Int("trees", len(mf.Trees)),
	)

	return &Model{trees: mf.Trees, logger: logger}, nil
}

// NewModelFromTrees 从内存构建模型（测试用）
func NewModelFromTrees(trees []*treeNode, logger *zap.Logger) (*Model, error) {
	if len(trees) == 0 {
		return nil, ErrModelUnavailable
	}
	for i, tree := range trees {
		if err := validateTree(tree); err != nil {
			return nil, fmt.Errorf("%w: tree %d invalid: %v", ErrModelUnavailable, i, err)
		}
	}
	return &Model{trees: trees, logger: logger}, nil
}

// Predict 对特征向量分类，返回压力等级和推理耗时
// 输入顺序固定：[gsr_max, gsr_min, gsr_mean, gsr_sd, hrate_mean, temp_avg]
func (m *Model) Predict(fv models.FeatureVector) (int, time.Duration, error) {
	if m == nil || len(m.trees) == 0 {
		return 0, 0, ErrModelUnavailable
	}

	start := time.Now()
	input := fv.Ordered()

	// 多数表决
	var votes [MaxStressLevel + 1]int
	for _, tree := range m.trees {
		votes[classify(tree, input)]++
	}

	best := 0
	for level, count := range votes {
		if count > votes[best] {
			best = level
		}
	}

	return best, time.Since(start), nil
}

// classify 单棵树推理
func classify(node *treeNode, input [6]float64) int {
	for node.Leaf == nil {
		if input[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return *node.Leaf
}

// validateTree 校验树结构：叶子等级在 [0,3]，内部节点左右子树齐全
func validateTree(node *treeNode) error {
	if node == nil {
		return errors.New("nil node")
	}
	if node.Leaf != nil {
		if *node.Leaf < MinStressLevel || *node.Leaf > MaxStressLevel {
			return fmt.Errorf("leaf class %d outside [%d,%d]", *node.Leaf, MinStressLevel, MaxStressLevel)
		}
		return nil
	}
	if node.Feature < 0 || node.Feature > 5 {
		return fmt.Errorf("feature index %d outside [0,5]", node.Feature)
	}
	if node.Left == nil || node.Right == nil {
		return errors.New("internal node missing child")
	}
	if err := validateTree(node.Left); err != nil {
		return err
	}
	return validateTree(node.Right)
}
