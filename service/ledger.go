package service

import (
	"fmt"
	"math"

	"minty/models"

	"gorm.io/gorm"
)

// Ledger 预算台账对账器
// 负责在交易增删改时维护 Budget.spent_amount，使其始终收敛于
// 当前关联的 expense 交易金额绝对值之和。
// 增量一律通过服务端原子自增（spent_amount = spent_amount + ?）落库，
// 避免客户端读改写竞态
type Ledger struct {
	db *gorm.DB
}

// NewLedger 创建台账对账器
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// ApplyCreate 交易创建后调账：支出且关联预算时，预算累计消费加上金额绝对值
func (l *Ledger) ApplyCreate(txn *models.Transaction) error {
	if !txn.IsExpense() || txn.BudgetID == nil {
		return nil
	}
	return l.addSpent(txn.UserID, *txn.BudgetID, txn.AbsAmount())
}

// ApplyDelete 交易删除后调账：被删交易为支出且关联预算时，预算累计消费减去金额绝对值
func (l *Ledger) ApplyDelete(txn *models.Transaction) error {
	if !txn.IsExpense() || txn.BudgetID == nil {
		return nil
	}
	return l.addSpent(txn.UserID, *txn.BudgetID, -txn.AbsAmount())
}

// ApplyUpdate 交易更新后调账，等价于 Remove(old) + Add(new)：
//   - 换预算：旧预算减旧金额，新预算加新金额
//   - 同预算改金额：净效果为带符号增量，合并成一次写
//   - 收支类型切换：自然归并为单边的加或减
func (l *Ledger) ApplyUpdate(oldTxn, newTxn *models.Transaction) error {
	deltas := make(map[uint]float64)
	if oldTxn.IsExpense() && oldTxn.BudgetID != nil {
		deltas[*oldTxn.BudgetID] -= oldTxn.AbsAmount()
	}
	if newTxn.IsExpense() && newTxn.BudgetID != nil {
		deltas[*newTxn.BudgetID] += newTxn.AbsAmount()
	}
	for budgetID, delta := range deltas {
		if delta == 0 {
			continue
		}
		if err := l.addSpent(newTxn.UserID, budgetID, delta); err != nil {
			return err
		}
	}
	return nil
}

// addSpent 服务端原子增减预算累计消费
func (l *Ledger) addSpent(userID, budgetID uint, delta float64) error {
	result := l.db.Model(&models.Budget{}).
		Where("id = ? AND user_id = ?", budgetID, userID).
		Update("spent_amount", gorm.Expr("spent_amount + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("更新预算累计消费失败: %w", result.Error)
	}
	return nil
}

// CountLinked 统计引用某预算的交易数（用于删除前确认）
func (l *Ledger) CountLinked(userID, budgetID uint) (int64, error) {
	var count int64
	err := l.db.Model(&models.Transaction{}).
		Where("user_id = ? AND budget_id = ?", userID, budgetID).
		Count(&count).Error
	return count, err
}

// UnlinkBudget 解除所有交易对某预算的引用（budget_id 置 NULL），返回解除数量。
// 预算删除前必须先调用，保证不留悬挂引用
func (l *Ledger) UnlinkBudget(userID, budgetID uint) (int64, error) {
	result := l.db.Model(&models.Transaction{}).
		Where("user_id = ? AND budget_id = ?", userID, budgetID).
		Update("budget_id", nil)
	if result.Error != nil {
		return 0, fmt.Errorf("解除预算关联失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// RecalcBudget 按当前关联交易全量重算预算累计消费（对账失败后的自愈入口）
func (l *Ledger) RecalcBudget(userID, budgetID uint) (float64, error) {
	var total float64
	err := l.db.Model(&models.Transaction{}).
		Where("user_id = ? AND budget_id = ? AND type = ?", userID, budgetID, models.TransactionTypeExpense).
		Select("COALESCE(SUM(ABS(amount)), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("重算预算累计消费失败: %w", err)
	}
	total = math.Round(total*100) / 100
	err = l.db.Model(&models.Budget{}).
		Where("id = ? AND user_id = ?", budgetID, userID).
		Update("spent_amount", total).Error
	if err != nil {
		return 0, fmt.Errorf("写回预算累计消费失败: %w", err)
	}
	return total, nil
}
