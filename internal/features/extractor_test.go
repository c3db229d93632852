package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wan-elmus/AutiCare/internal/models"
)

func makeSamples(values [][3]float64) []models.SensorData {
	samples := make([]models.SensorData, 0, len(values))
	now := time.Now()
	for i, v := range values {
		samples = append(samples, models.SensorData{
			UserID:      1,
			Timestamp:   now.Add(-time.Duration(i) * time.Second),
			GSR:         v[0],
			HeartRate:   v[1],
			Temperature: v[2],
		})
	}
	return samples
}

func TestExtract_EmptyWindow(t *testing.T) {
	_, err := Extract(nil)
	require.ErrorIs(t, err, ErrEmptyWindow)

	_, err = Extract([]models.SensorData{})
	require.ErrorIs(t, err, ErrEmptyWindow)
}

func TestExtract_ThreeSampleWindow(t *testing.T) {
	samples := makeSamples([][3]float64{
		{2.32, 84.93, 38.8},
		{1.93, 79.54, 38.7},
		{2.81, 98.91, 37.9},
	})

	fv, err := Extract(samples)
	require.NoError(t, err)

	assert.InDelta(t, 2.81, fv.GSRMax, 1e-9)
	assert.InDelta(t, 1.93, fv.GSRMin, 1e-9)
	assert.InDelta(t, 2.3533333333, fv.GSRMean, 1e-6)
	assert.InDelta(t, 87.7933333333, fv.HRateMean, 1e-6)
	assert.InDelta(t, 38.4666666667, fv.TempAvg, 1e-6)

	// 样本标准差（n-1）
	mean := fv.GSRMean
	want := math.Sqrt(((2.32-mean)*(2.32-mean) + (1.93-mean)*(1.93-mean) + (2.81-mean)*(2.81-mean)) / 2)
	assert.InDelta(t, want, fv.GSRStdDev, 1e-9)
}

func TestExtract_SingleSampleStdDevIsZero(t *testing.T) {
	samples := makeSamples([][3]float64{{1.5, 80, 36.6}})

	fv, err := Extract(samples)
	require.NoError(t, err)

	assert.Equal(t, 0.0, fv.GSRStdDev)
	assert.Equal(t, 1.5, fv.GSRMax)
	assert.Equal(t, 1.5, fv.GSRMin)
	assert.Equal(t, 1.5, fv.GSRMean)
}

func TestExtract_MeanBetweenMinAndMax(t *testing.T) {
	cases := [][][3]float64{
		{{0.5, 60, 36.0}, {3.2, 90, 37.0}},
		{{1.1, 70, 36.5}, {1.1, 71, 36.6}, {1.1, 72, 36.7}},
		{{5.0, 110, 39.0}, {0.1, 55, 35.5}, {2.4, 82, 37.1}, {3.3, 95, 38.2}},
	}

	for _, c := range cases {
		fv, err := Extract(makeSamples(c))
		require.NoError(t, err)
		assert.LessOrEqual(t, fv.GSRMin, fv.GSRMean)
		assert.LessOrEqual(t, fv.GSRMean, fv.GSRMax)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	samples := makeSamples([][3]float64{
		{2.32, 84.93, 38.8},
		{1.93, 79.54, 38.7},
		{2.81, 98.91, 37.9},
	})

	first, err := Extract(samples)
	require.NoError(t, err)
	second, err := Extract(samples)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
