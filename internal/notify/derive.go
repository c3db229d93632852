package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/wan-elmus/AutiCare/internal/models"
)

// ErrUnknownStressClass 压力等级超出封闭集合 {0,1,2,3}
// 防御性错误：该用户本轮处理中止，不允许静默兜底
var ErrUnknownStressClass = errors.New("unknown stress class")

// Derive 从压力等级派生通知（确定性纯映射）
// 0 → normal, 1|2 → slight, 3 → high
func Derive(userID int64, predictionID int64, stressLevel int, ts time.Time) (models.Notification, error) {
	n := models.Notification{
		UserID:       userID,
		PredictionID: predictionID,
		Timestamp:    ts,
	}

	switch stressLevel {
	case 0:
		n.Level = models.LevelNormal
		n.Message = fmt.Sprintf("Normal: Stress level at %d", stressLevel)
		n.Recommendation = "No action needed; continue with regular activities and monitor trends."
	case 1, 2:
		n.Level = models.LevelSlight
		n.Message = fmt.Sprintf("Slight Stress Detected: Stress level at %d", stressLevel)
		n.Recommendation = "Encourage calm activities such as listening to soft music or playing with sensory toys. " +
			"Suggest a short break, deep breathing, or a change of environment. Monitor for any escalation."
	case 3:
		n.Level = models.LevelHigh
		n.Message = fmt.Sprintf("High Stress Detected: Stress level at %d", stressLevel)
		n.Recommendation = "Notify the caregiver immediately and move the child to a safe, quiet space. " +
			"Use de-escalation techniques (e.g., speaking softly, providing comforting items). " +
			"If distress persists, seek medical attention or contact the child's therapist."
	default:
		return models.Notification{}, fmt.Errorf("%w: %d", ErrUnknownStressClass, stressLevel)
	}

	return n, nil
}
