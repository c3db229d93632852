package features

import (
	"errors"
	"math"

	"github.com/wan-elmus/AutiCare/internal/models"
)

// ErrEmptyWindow 空采样窗口（调用方应跳过该用户，而不是报错中断）
var ErrEmptyWindow = errors.New("empty sample window")

// Extract 从采样窗口计算统计特征
// gsr_sd 使用样本标准差（分母 n-1）；窗口只有一个采样时标准差定义为 0.0
func Extract(samples []models.SensorData) (models.FeatureVector, error) {
	if len(samples) == 0 {
		return models.FeatureVector{}, ErrEmptyWindow
	}

	gsrMax := samples[0].GSR
	gsrMin := samples[0].GSR
	var gsrSum, hrSum, tempSum float64

	for _, s := range samples {
		if s.GSR > gsrMax {
			gsrMax = s.GSR
		}
		if s.GSR < gsrMin {
			gsrMin = s.GSR
		}
		gsrSum += s.GSR
		hrSum += s.HeartRate
		tempSum += s.Temperature
	}

	n := float64(len(samples))
	gsrMean := gsrSum / n

	return models.FeatureVector{
		GSRMax:    gsrMax,
		GSRMin:    gsrMin,
		GSRMean:   gsrMean,
		GSRStdDev: sampleStdDev(samples, gsrMean),
		HRateMean: hrSum / n,
		TempAvg:   tempSum / n,
	}, nil
}

// sampleStdDev 样本标准差（n-1）；单采样窗口返回 0.0
func sampleStdDev(samples []models.SensorData, mean float64) float64 {
	if len(samples) < 2 {
		return 0.0
	}
	var sumSq float64
	for _, s := range samples {
		d := s.GSR - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(samples)-1))
}
