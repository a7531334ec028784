package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"minty/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransactionRouter() *gin.Engine {
	r := gin.New()
	r.Use(setUserIDMiddleware(1))
	h := NewTransactionHandler(service.NewFeedHub())
	r.POST("/transactions", h.Create)
	r.GET("/transactions", h.List)
	r.GET("/transactions/:id", h.Get)
	r.DELETE("/transactions/:id", h.Delete)
	return r
}

func categoryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "name", "type", "color", "monthly_limit", "alert_enabled", "alert_threshold"})
}

func TestTransactionCreate_ExpenseWithBudget(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	// 分类归属与类型校验
	mock.ExpectQuery("SELECT .* FROM `categories`").
		WithArgs(uint(2), uint(1), 1).
		WillReturnRows(categoryRows().AddRow(2, 1, "餐饮", "expense", "#ef4444", 0, false, 80))

	// 预算归属校验
	mock.ExpectQuery("SELECT .* FROM `budgets`").
		WithArgs(uint(7), uint(1), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "total_amount", "spent_amount"}).
			AddRow(7, 1, "八月生活费", 3000, 0))

	// 交易落库
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `transactions`").
		WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectCommit()

	// 对账：预算累计消费原子自增
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `spent_amount`=spent_amount \\+ \\?").
		WithArgs(25.5, sqlmock.AnyArg(), uint(7), uint(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := `{"amount":25.5,"type":"expense","category_id":2,"budget_id":7,"description":"午饭"}`
	req := httptest.NewRequest("POST", "/transactions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newTransactionRouter().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "创建成功", resp["message"])

	// 支出按负数落库
	data := resp["data"].(map[string]interface{})
	assert.InDelta(t, -25.5, data["amount"].(float64), 0.001)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionCreate_IncomeSkipsLedger(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .* FROM `categories`").
		WithArgs(uint(3), uint(1), 1).
		WillReturnRows(categoryRows().AddRow(3, 1, "工资", "income", "#22c55e", 0, false, 80))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `transactions`").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()
	// 没有预算更新语句

	body := `{"amount":8000,"type":"income","category_id":3}`
	req := httptest.NewRequest("POST", "/transactions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newTransactionRouter().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.InDelta(t, 8000.0, data["amount"].(float64), 0.001)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionCreate_IncomeWithBudgetRejected(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .* FROM `categories`").
		WithArgs(uint(3), uint(1), 1).
		WillReturnRows(categoryRows().AddRow(3, 1, "工资", "income", "#22c55e", 0, false, 80))

	body := `{"amount":8000,"type":"income","category_id":3,"budget_id":7}`
	req := httptest.NewRequest("POST", "/transactions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newTransactionRouter().ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "仅支出交易可关联预算")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionCreate_CategoryTypeMismatch(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	// 分类是 income，交易是 expense
	mock.ExpectQuery("SELECT .* FROM `categories`").
		WithArgs(uint(3), uint(1), 1).
		WillReturnRows(categoryRows().AddRow(3, 1, "工资", "income", "#22c55e", 0, false, 80))

	body := `{"amount":100,"type":"expense","category_id":3}`
	req := httptest.NewRequest("POST", "/transactions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newTransactionRouter().ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "收支类型与交易不一致")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionCreate_OtherUsersCategory(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	// 用户隔离：别人的分类查不到
	mock.ExpectQuery("SELECT .* FROM `categories`").
		WithArgs(uint(5), uint(1), 1).
		WillReturnRows(categoryRows())

	body := `{"amount":100,"type":"expense","category_id":5}`
	req := httptest.NewRequest("POST", "/transactions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newTransactionRouter().ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "分类不存在")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionDelete_RefundsBudget(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM `transactions`").
		WithArgs(uint(10), uint(1), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "type", "category_id", "budget_id", "transaction_time"}).
			AddRow(10, 1, -25.5, "expense", 2, 7, now))

	// 软删除
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `transactions` SET `deleted_at`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// 对账回退
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `spent_amount`=spent_amount \\+ \\?").
		WithArgs(-25.5, sqlmock.AnyArg(), uint(7), uint(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := httptest.NewRequest("DELETE", "/transactions/10", nil)
	w := httptest.NewRecorder()
	newTransactionRouter().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionGet_NotFound(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .* FROM `transactions`").
		WithArgs(uint(999), uint(1), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest("GET", "/transactions/999", nil)
	w := httptest.NewRecorder()
	newTransactionRouter().ServeHTTP(w, req)

	assert.Equal(t, 404, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}
