package service

import (
	"math"
	"sort"
	"time"

	"minty/models"
)

// 预算使用率状态分级（固定设计常量，不可配置）
const (
	BudgetStatusOver    = "over"    // >= 100%
	BudgetStatusWarning = "warning" // >= 90%
	BudgetStatusCaution = "caution" // >= 75%
	BudgetStatusGood    = "good"
)

// 使用率分级阈值
const (
	thresholdOver    = 100.0
	thresholdWarning = 90.0
	thresholdCaution = 75.0
)

// projectionDays 月消费推算按固定 31 天计（沿用原设计的简化，不按实际月长）
const projectionDays = 31

// CategorySpend 单个分类的支出聚合
type CategorySpend struct {
	CategoryID uint    `json:"category_id"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Total      float64 `json:"total"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// MonthBucket 单月收支汇总
type MonthBucket struct {
	Month   string  `json:"month"` // YYYY-MM
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

// Projection 本月消费推算
type Projection struct {
	MonthExpense float64 `json:"month_expense"`
	DaysElapsed  int     `json:"days_elapsed"`
	DailyRate    float64 `json:"daily_rate"`
	Projected    float64 `json:"projected"`
}

// CurrentMonth 当前月份（YYYY-MM），一律取真实时钟
func CurrentMonth(now time.Time) string {
	return now.Format("2006-01")
}

// AggregateCategorySpend 按分类聚合支出
// 仅统计 expense 交易；分类名按 category_id 解析，解析不到回退到交易
// 冗余的分类名快照，再不行用「未分类」。结果按金额降序（同额按名称升序，
// 保证与输入顺序无关），topN > 0 时截断
func AggregateCategorySpend(txns []models.Transaction, cats []models.Category, topN int) []CategorySpend {
	byID := make(map[uint]*models.Category, len(cats))
	for i := range cats {
		byID[cats[i].ID] = &cats[i]
	}

	agg := make(map[string]*CategorySpend)
	var total float64
	for i := range txns {
		txn := &txns[i]
		if !txn.IsExpense() {
			continue
		}
		name := models.UncategorizedName
		color := ""
		var catID uint
		if cat, ok := byID[txn.CategoryID]; ok {
			name = cat.Name
			color = cat.Color
			catID = cat.ID
		} else if txn.CategoryName != "" {
			name = txn.CategoryName
		}
		cs, ok := agg[name]
		if !ok {
			cs = &CategorySpend{CategoryID: catID, Name: name, Color: color}
			agg[name] = cs
		}
		cs.Total += txn.AbsAmount()
		cs.Count++
		total += txn.AbsAmount()
	}

	result := make([]CategorySpend, 0, len(agg))
	for _, cs := range agg {
		if total > 0 {
			cs.Percentage = math.Round(cs.Total/total*10000) / 100
		}
		result = append(result, *cs)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Total != result[j].Total {
			return result[i].Total > result[j].Total
		}
		return result[i].Name < result[j].Name
	})
	if topN > 0 && len(result) > topN {
		result = result[:topN]
	}
	return result
}

// MonthlyTrend 近 N 个月（含当月）的收支趋势
// 按 YYYY-MM 分桶，income/expense 均取绝对值汇总，net = income - expense，
// 升序返回固定 N 桶（无数据的月份为零值）
func MonthlyTrend(txns []models.Transaction, now time.Time, months int) []MonthBucket {
	if months <= 0 {
		months = 6
	}
	buckets := make([]MonthBucket, months)
	index := make(map[string]*MonthBucket, months)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(months - 1), 0)
	for i := 0; i < months; i++ {
		month := first.AddDate(0, i, 0).Format("2006-01")
		buckets[i] = MonthBucket{Month: month}
		index[month] = &buckets[i]
	}

	for i := range txns {
		txn := &txns[i]
		b, ok := index[txn.TransactionTime.Format("2006-01")]
		if !ok {
			continue // 窗口外的月份
		}
		if txn.IsExpense() {
			b.Expense += txn.AbsAmount()
		} else {
			b.Income += txn.AbsAmount()
		}
	}
	for i := range buckets {
		buckets[i].Net = buckets[i].Income - buckets[i].Expense
	}
	return buckets
}

// BudgetUtilization 预算使用率百分比（total <= 0 时为 0）
func BudgetUtilization(spent, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return spent / total * 100
}

// BudgetStatus 按固定阈值分级使用率
func BudgetStatus(utilization float64) string {
	switch {
	case utilization >= thresholdOver:
		return BudgetStatusOver
	case utilization >= thresholdWarning:
		return BudgetStatusWarning
	case utilization >= thresholdCaution:
		return BudgetStatusCaution
	default:
		return BudgetStatusGood
	}
}

// ProjectMonthlySpend 本月消费推算
// 日均 = 月内支出 / max(已过天数, 1)，推算值 = 日均 * 31
func ProjectMonthlySpend(monthExpense float64, now time.Time) Projection {
	days := now.Day()
	if days < 1 {
		days = 1
	}
	daily := monthExpense / float64(days)
	return Projection{
		MonthExpense: monthExpense,
		DaysElapsed:  days,
		DailyRate:    math.Round(daily*100) / 100,
		Projected:    math.Round(daily*projectionDays*100) / 100,
	}
}
