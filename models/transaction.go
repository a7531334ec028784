package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

const (
	// TransactionTypeIncome 收入
	TransactionTypeIncome = "income"
	// TransactionTypeExpense 支出
	TransactionTypeExpense = "expense"
)

// Transaction 交易记录
// amount 按符号存储：支出为负、收入为正；汇总与展示一律取绝对值。
// budget_id 可空，且仅对 expense 类型有意义
type Transaction struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	UserID          uint           `json:"user_id" gorm:"index;not null"`
	Description     string         `json:"description" gorm:"size:255"`
	Amount          float64        `json:"amount" gorm:"type:decimal(10,2);not null"`
	Type            string         `json:"type" gorm:"size:10;not null;index"` // income/expense
	CategoryID      uint           `json:"category_id" gorm:"index;not null"`
	CategoryName    string         `json:"category_name" gorm:"size:50"` // 冗余快照，分类被删后用于展示
	BudgetID        *uint          `json:"budget_id" gorm:"index"`
	TransactionTime time.Time      `json:"transaction_time" gorm:"not null;index"`
	Notes           string         `json:"notes" gorm:"type:text"`
	Tags            string         `json:"tags" gorm:"size:255"` // 逗号拼接，如 "早餐,工作日"
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
	User            User           `json:"-" gorm:"foreignKey:UserID"`
	Category        Category       `json:"-" gorm:"foreignKey:CategoryID"`
}

// TableName 设置表名
func (Transaction) TableName() string {
	return "transactions"
}

// AbsAmount 金额绝对值
func (t *Transaction) AbsAmount() float64 {
	return math.Abs(t.Amount)
}

// IsExpense 是否支出
func (t *Transaction) IsExpense() bool {
	return t.Type == TransactionTypeExpense
}
