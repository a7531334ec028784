package service

import (
	"fmt"
	"strings"
	"time"

	"minty/models"

	"gorm.io/gorm"
)

// ContextSchemaVersion 财务上下文 schema 版本
// 提示词结构变化时递增，落库后可追溯洞察/聊天基于的上下文形状
const ContextSchemaVersion = "v1"

// recentTransactionLimit 注入上下文的最近交易条数上限
const recentTransactionLimit = 15

// BudgetOverview 上下文中的预算概要
type BudgetOverview struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	TotalAmount float64 `json:"total_amount"`
	SpentAmount float64 `json:"spent_amount"`
	Utilization float64 `json:"utilization"`
	Status      string  `json:"status"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
}

// CategoryOverview 上下文中的分类概要
type CategoryOverview struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	MonthlyLimit float64 `json:"monthly_limit"`
	MonthSpend   float64 `json:"month_spend"`
}

// TransactionBrief 上下文中的交易概要
type TransactionBrief struct {
	Date        string  `json:"date"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"` // 绝对值
	Category    string  `json:"category"`
	Description string  `json:"description"`
}

// FinancialContext 交给大模型的财务状态快照（有界、显式 schema）
type FinancialContext struct {
	SchemaVersion      string             `json:"schema_version"`
	GeneratedAt        time.Time          `json:"generated_at"`
	Currency           string             `json:"currency"`
	MonthIncome        float64            `json:"month_income"`
	MonthExpense       float64            `json:"month_expense"`
	Trend              []MonthBucket      `json:"trend"`
	TopCategories      []CategorySpend    `json:"top_categories"`
	Budgets            []BudgetOverview   `json:"budgets"`
	Categories         []CategoryOverview `json:"categories"`
	RecentTransactions []TransactionBrief `json:"recent_transactions"`
	Projection         Projection         `json:"projection"`
}

// BuildFinancialContext 从数据库装载某用户的财务上下文
// 交易窗口取最近 6 个自然月；任何集合为空都只会得到零值聚合，不报错
func BuildFinancialContext(db *gorm.DB, userID uint, now time.Time) (*FinancialContext, error) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	windowStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -5, 0)
	var txns []models.Transaction
	if err := db.Where("user_id = ? AND transaction_time >= ?", userID, windowStart).
		Order("transaction_time DESC").
		Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("查询交易失败: %w", err)
	}

	var cats []models.Category
	if err := db.Where("user_id = ?", userID).Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("查询分类失败: %w", err)
	}

	var budgets []models.Budget
	if err := db.Where("user_id = ?", userID).Find(&budgets).Error; err != nil {
		return nil, fmt.Errorf("查询预算失败: %w", err)
	}

	catByID := make(map[uint]*models.Category, len(cats))
	for i := range cats {
		catByID[cats[i].ID] = &cats[i]
	}

	fc := &FinancialContext{
		SchemaVersion: ContextSchemaVersion,
		GeneratedAt:   now,
		Currency:      user.Currency,
		Trend:         MonthlyTrend(txns, now, 6),
		TopCategories: AggregateCategorySpend(txns, cats, 5),
	}

	// 当月收支与分类月支出
	currentMonth := CurrentMonth(now)
	monthSpendByCat := make(map[uint]float64)
	for i := range txns {
		txn := &txns[i]
		if txn.TransactionTime.Format("2006-01") != currentMonth {
			continue
		}
		if txn.IsExpense() {
			fc.MonthExpense += txn.AbsAmount()
			monthSpendByCat[txn.CategoryID] += txn.AbsAmount()
		} else {
			fc.MonthIncome += txn.AbsAmount()
		}
	}
	fc.Projection = ProjectMonthlySpend(fc.MonthExpense, now)

	for i := range budgets {
		b := &budgets[i]
		u := BudgetUtilization(b.SpentAmount, b.TotalAmount)
		fc.Budgets = append(fc.Budgets, BudgetOverview{
			Name:        b.Name,
			Type:        b.Type,
			TotalAmount: b.TotalAmount,
			SpentAmount: b.SpentAmount,
			Utilization: u,
			Status:      BudgetStatus(u),
			StartDate:   b.StartDate.Format("2006-01-02"),
			EndDate:     b.EndDate.Format("2006-01-02"),
		})
	}

	for i := range cats {
		cat := &cats[i]
		fc.Categories = append(fc.Categories, CategoryOverview{
			Name:         cat.Name,
			Type:         cat.Type,
			MonthlyLimit: cat.MonthlyLimit,
			MonthSpend:   monthSpendByCat[cat.ID],
		})
	}

	limit := recentTransactionLimit
	if len(txns) < limit {
		limit = len(txns)
	}
	for i := 0; i < limit; i++ {
		txn := &txns[i]
		name := models.UncategorizedName
		if cat, ok := catByID[txn.CategoryID]; ok {
			name = cat.Name
		} else if txn.CategoryName != "" {
			name = txn.CategoryName
		}
		fc.RecentTransactions = append(fc.RecentTransactions, TransactionBrief{
			Date:        txn.TransactionTime.Format("2006-01-02"),
			Type:        txn.Type,
			Amount:      txn.AbsAmount(),
			Category:    name,
			Description: txn.Description,
		})
	}

	return fc, nil
}

// Render 渲染为交给大模型的中文文本块
func (fc *FinancialContext) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "【财务上下文 %s】生成时间：%s，货币：%s\n",
		fc.SchemaVersion, fc.GeneratedAt.Format("2006-01-02 15:04"), fc.Currency)

	fmt.Fprintf(&b, "\n本月收支：收入 %.2f，支出 %.2f，结余 %.2f\n",
		fc.MonthIncome, fc.MonthExpense, fc.MonthIncome-fc.MonthExpense)
	fmt.Fprintf(&b, "本月日均消费 %.2f（已过 %d 天），按 31 天推算全月支出约 %.2f\n",
		fc.Projection.DailyRate, fc.Projection.DaysElapsed, fc.Projection.Projected)

	b.WriteString("\n近6个月趋势：\n")
	for _, m := range fc.Trend {
		fmt.Fprintf(&b, "- %s: 收入 %.2f，支出 %.2f，结余 %.2f\n", m.Month, m.Income, m.Expense, m.Net)
	}

	if len(fc.TopCategories) > 0 {
		b.WriteString("\n支出最多的分类：\n")
		for _, cs := range fc.TopCategories {
			fmt.Fprintf(&b, "- %s: %.2f（%d 笔，占 %.1f%%）\n", cs.Name, cs.Total, cs.Count, cs.Percentage)
		}
	}

	if len(fc.Budgets) > 0 {
		b.WriteString("\n预算执行情况：\n")
		for _, bo := range fc.Budgets {
			fmt.Fprintf(&b, "- %s（%s，%s 至 %s）: 已用 %.2f / %.2f，使用率 %.1f%%，状态 %s\n",
				bo.Name, bo.Type, bo.StartDate, bo.EndDate, bo.SpentAmount, bo.TotalAmount, bo.Utilization, bo.Status)
		}
	}

	if len(fc.Categories) > 0 {
		b.WriteString("\n分类设置：\n")
		for _, co := range fc.Categories {
			if co.MonthlyLimit > 0 {
				fmt.Fprintf(&b, "- %s（%s）: 月限额 %.2f，本月已用 %.2f\n", co.Name, co.Type, co.MonthlyLimit, co.MonthSpend)
			} else {
				fmt.Fprintf(&b, "- %s（%s）: 无月限额，本月 %.2f\n", co.Name, co.Type, co.MonthSpend)
			}
		}
	}

	if len(fc.RecentTransactions) > 0 {
		b.WriteString("\n最近交易：\n")
		for _, t := range fc.RecentTransactions {
			desc := t.Description
			if desc == "" {
				desc = "（无描述）"
			}
			fmt.Fprintf(&b, "- %s %s %.2f 元，分类：%s，%s\n", t.Date, t.Type, t.Amount, t.Category, desc)
		}
	}

	return b.String()
}
