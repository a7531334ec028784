package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	// BudgetTypeMonthly 月度预算
	BudgetTypeMonthly = "monthly"
	// BudgetTypeGoal 目标预算
	BudgetTypeGoal = "goal"
	// BudgetTypeEvent 活动预算
	BudgetTypeEvent = "event"
	// BudgetTypeSavings 储蓄预算
	BudgetTypeSavings = "savings"
)

// Budget 预算
// spent_amount 为派生字段：等于当前关联的 expense 交易金额绝对值之和，
// 由 service.Ledger 在交易增删改时维护，不接受客户端直接写入
type Budget struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	UserID      uint           `json:"user_id" gorm:"index;not null"`
	Name        string         `json:"name" gorm:"size:100;not null"`
	Type        string         `json:"type" gorm:"size:20;not null;default:monthly"` // monthly/goal/event/savings
	TotalAmount float64        `json:"total_amount" gorm:"type:decimal(10,2);not null"`
	SpentAmount float64        `json:"spent_amount" gorm:"type:decimal(10,2);default:0"`
	StartDate   time.Time      `json:"start_date" gorm:"not null"`
	EndDate     time.Time      `json:"end_date" gorm:"not null"` // 必须严格晚于 start_date
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
	User        User           `json:"-" gorm:"foreignKey:UserID"`
}

// TableName 设置表名
func (Budget) TableName() string {
	return "budgets"
}

// ValidBudgetType 校验预算类型
func ValidBudgetType(t string) bool {
	switch t {
	case BudgetTypeMonthly, BudgetTypeGoal, BudgetTypeEvent, BudgetTypeSavings:
		return true
	}
	return false
}
