package models

import (
	"time"

	"gorm.io/gorm"
)

// AIInsightHistory 智能洞察历史（单次生成的洞察列表，JSON 存储）
type AIInsightHistory struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	AIModelID      uint           `json:"ai_model_id" gorm:"index;not null"`
	UserID         uint           `json:"user_id" gorm:"index;not null"`
	ContextVersion string         `json:"context_version" gorm:"size:10"`
	Fallback       bool           `json:"fallback" gorm:"default:false"` // 是否为解析失败后的回退洞察
	Result         string         `json:"result" gorm:"type:longtext;not null"` // 洞察 JSON 数组
	CreatedAt      time.Time      `json:"created_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	AIModel AIModel `json:"-" gorm:"foreignKey:AIModelID"`
}

// TableName 设置表名
func (AIInsightHistory) TableName() string {
	return "ai_insight_histories"
}
