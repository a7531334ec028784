package service

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gdb, mock, func() { _ = db.Close() }
}

func TestBuildFinancialContext(t *testing.T) {
	gdb, mock, cleanup := newMockGorm(t)
	defer cleanup()

	now := time.Date(2025, 8, 15, 12, 0, 0, 0, time.Local)

	mock.ExpectQuery("SELECT .* FROM `users`").
		WithArgs(uint(1), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "currency"}).
			AddRow(1, "testuser", "CNY"))

	mock.ExpectQuery("SELECT .* FROM `transactions`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "type", "category_id", "category_name", "description", "transaction_time"}).
			AddRow(1, 1, -120, "expense", 2, "餐饮", "聚餐", now.AddDate(0, 0, -1)).
			AddRow(2, 1, -30, "expense", 2, "餐饮", "早饭", now.AddDate(0, 0, -2)).
			AddRow(3, 1, 8000, "income", 3, "工资", "八月工资", now.AddDate(0, 0, -10)).
			AddRow(4, 1, -500, "expense", 2, "餐饮", "上月餐饮", now.AddDate(0, -1, 0)))

	mock.ExpectQuery("SELECT .* FROM `categories`").
		WithArgs(uint(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "type", "monthly_limit"}).
			AddRow(2, 1, "餐饮", "expense", 1500).
			AddRow(3, 1, "工资", "income", 0))

	mock.ExpectQuery("SELECT .* FROM `budgets`").
		WithArgs(uint(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "type", "total_amount", "spent_amount", "start_date", "end_date"}).
			AddRow(7, 1, "八月生活费", "monthly", 3000, 2800, now.AddDate(0, 0, -14), now.AddDate(0, 0, 16)))

	fc, err := BuildFinancialContext(gdb, 1, now)
	require.NoError(t, err)

	assert.Equal(t, ContextSchemaVersion, fc.SchemaVersion)
	assert.Equal(t, "CNY", fc.Currency)

	// 当月收支只统计当月交易
	assert.InDelta(t, 8000.0, fc.MonthIncome, 0.001)
	assert.InDelta(t, 150.0, fc.MonthExpense, 0.001)

	// 趋势固定 6 桶升序
	require.Len(t, fc.Trend, 6)
	assert.Equal(t, "2025-03", fc.Trend[0].Month)
	assert.Equal(t, "2025-08", fc.Trend[5].Month)
	assert.InDelta(t, 500.0, fc.Trend[4].Expense, 0.001) // 2025-07

	// 预算概要带使用率与状态
	require.Len(t, fc.Budgets, 1)
	assert.InDelta(t, 93.33, fc.Budgets[0].Utilization, 0.01)
	assert.Equal(t, BudgetStatusWarning, fc.Budgets[0].Status)

	// 分类月支出
	require.Len(t, fc.Categories, 2)
	assert.InDelta(t, 150.0, fc.Categories[0].MonthSpend, 0.001)

	// 最近交易取绝对值
	require.NotEmpty(t, fc.RecentTransactions)
	assert.Greater(t, fc.RecentTransactions[0].Amount, 0.0)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinancialContextRender(t *testing.T) {
	fc := &FinancialContext{
		SchemaVersion: ContextSchemaVersion,
		GeneratedAt:   time.Date(2025, 8, 15, 12, 0, 0, 0, time.Local),
		Currency:      "CNY",
		MonthIncome:   8000,
		MonthExpense:  150,
		Trend:         []MonthBucket{{Month: "2025-08", Income: 8000, Expense: 150, Net: 7850}},
		TopCategories: []CategorySpend{{Name: "餐饮", Total: 150, Count: 2, Percentage: 100}},
		Budgets: []BudgetOverview{{
			Name: "八月生活费", Type: "monthly", TotalAmount: 3000, SpentAmount: 2800,
			Utilization: 93.33, Status: BudgetStatusWarning,
			StartDate: "2025-08-01", EndDate: "2025-08-31",
		}},
		RecentTransactions: []TransactionBrief{{Date: "2025-08-14", Type: "expense", Amount: 120, Category: "餐饮", Description: "聚餐"}},
	}

	text := fc.Render()
	assert.Contains(t, text, ContextSchemaVersion)
	assert.Contains(t, text, "本月收支")
	assert.Contains(t, text, "八月生活费")
	assert.Contains(t, text, "warning")
	assert.Contains(t, text, "聚餐")
}
