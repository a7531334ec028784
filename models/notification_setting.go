package models

import (
	"time"
)

// NotificationSetting 通知设置（每用户一条）
type NotificationSetting struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	BudgetAlerts  bool      `json:"budget_alerts" gorm:"default:true"`  // 预算/限额超阈值提醒
	MonthlyReport bool      `json:"monthly_report" gorm:"default:false"` // 月度报告邮件
	AlertEmail    string    `json:"alert_email" gorm:"size:100"`         // 为空时使用账号邮箱
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 设置表名
func (NotificationSetting) TableName() string {
	return "notification_settings"
}
