package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	// CategoryTypeIncome 收入类别
	CategoryTypeIncome = "income"
	// CategoryTypeExpense 支出类别
	CategoryTypeExpense = "expense"
)

// UncategorizedName 分类被删除后交易的展示名
const UncategorizedName = "未分类"

// Category 收支分类
// alert_threshold 仅在 alert_enabled 且 monthly_limit > 0 时有意义
type Category struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	UserID         uint           `json:"user_id" gorm:"index;not null"`
	Name           string         `json:"name" gorm:"size:50;not null;index"`
	Type           string         `json:"type" gorm:"size:10;not null;index"`                // income/expense
	Color          string         `json:"color" gorm:"size:20;default:#64748b"`              // 颜色代码，如 #ef4444
	MonthlyLimit   float64        `json:"monthly_limit" gorm:"type:decimal(10,2);default:0"` // 月限额，0 表示不限
	AlertEnabled   bool           `json:"alert_enabled" gorm:"default:false"`
	AlertThreshold int            `json:"alert_threshold" gorm:"default:80"` // 提醒阈值百分比 1-100
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
	User           User           `json:"-" gorm:"foreignKey:UserID"`
}

// TableName 设置表名
func (Category) TableName() string {
	return "categories"
}

// ValidCategoryType 校验分类类型
func ValidCategoryType(t string) bool {
	return t == CategoryTypeIncome || t == CategoryTypeExpense
}
