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

func newBudgetRouter() *gin.Engine {
	r := gin.New()
	r.Use(setUserIDMiddleware(1))
	h := NewBudgetHandler(service.NewFeedHub())
	r.GET("/budgets", h.List)
	r.POST("/budgets", h.Create)
	r.DELETE("/budgets/:id", h.Delete)
	r.POST("/budgets/:id/recalc", h.Recalc)
	return r
}

func budgetRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "name", "type", "total_amount", "spent_amount", "start_date", "end_date"})
}

func TestBudgetCreate(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `budgets`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	body := `{"name":"八月生活费","type":"monthly","total_amount":3000,"start_date":"2025-08-01","end_date":"2025-08-31"}`
	req := httptest.NewRequest("POST", "/budgets", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newBudgetRouter().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	// 新预算累计消费从 0 开始，状态 good
	assert.Zero(t, data["spent_amount"].(float64))
	assert.Equal(t, "good", data["status"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetCreate_EndDateNotAfterStart(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	body := `{"name":"坏日期","total_amount":1000,"start_date":"2025-08-31","end_date":"2025-08-01"}`
	req := httptest.NewRequest("POST", "/budgets", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newBudgetRouter().ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "结束日期必须晚于开始日期")
}

func TestBudgetCreate_InvalidType(t *testing.T) {
	_, cleanup := setupMockDB(t)
	defer cleanup()

	body := `{"name":"预算","type":"weekly","total_amount":1000,"start_date":"2025-08-01","end_date":"2025-08-31"}`
	req := httptest.NewRequest("POST", "/budgets", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newBudgetRouter().ServeHTTP(w, req)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "类型错误")
}

func TestBudgetList_UtilizationAndStatus(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM `budgets`").
		WithArgs(uint(1)).
		WillReturnRows(budgetRows().
			AddRow(1, 1, "生活费", "monthly", 1000, 950, now, now.AddDate(0, 1, 0)).
			AddRow(2, 1, "旅行", "goal", 5000, 1000, now, now.AddDate(0, 3, 0)))

	req := httptest.NewRequest("GET", "/budgets", nil)
	w := httptest.NewRecorder()
	newBudgetRouter().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp struct {
		Data []struct {
			Name        string  `json:"name"`
			Utilization float64 `json:"utilization"`
			Status      string  `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.InDelta(t, 95.0, resp.Data[0].Utilization, 0.001)
	assert.Equal(t, "warning", resp.Data[0].Status)
	assert.InDelta(t, 20.0, resp.Data[1].Utilization, 0.001)
	assert.Equal(t, "good", resp.Data[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetDelete_LinkedRequiresConfirm(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM `budgets`").
		WithArgs(uint(5), uint(1), 1).
		WillReturnRows(budgetRows().AddRow(5, 1, "生活费", "monthly", 1000, 200, now, now.AddDate(0, 1, 0)))

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `transactions`").
		WithArgs(uint(1), uint(5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	req := httptest.NewRequest("DELETE", "/budgets/5", nil)
	w := httptest.NewRecorder()
	newBudgetRouter().ServeHTTP(w, req)

	// 未确认：409 + 关联数量，预算保留
	assert.Equal(t, 409, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.InDelta(t, 3.0, data["linked_count"].(float64), 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetDelete_ConfirmedUnlinksFirst(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM `budgets`").
		WithArgs(uint(5), uint(1), 1).
		WillReturnRows(budgetRows().AddRow(5, 1, "生活费", "monthly", 1000, 200, now, now.AddDate(0, 1, 0)))

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `transactions`").
		WithArgs(uint(1), uint(5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	// 先解除关联
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `transactions` SET `budget_id`=\\?").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	// 再软删除预算
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `deleted_at`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := httptest.NewRequest("DELETE", "/budgets/5?confirm=true", nil)
	w := httptest.NewRecorder()
	newBudgetRouter().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.InDelta(t, 3.0, data["unlinked_count"].(float64), 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetDelete_UnlinkedDeletesDirectly(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM `budgets`").
		WithArgs(uint(6), uint(1), 1).
		WillReturnRows(budgetRows().AddRow(6, 1, "空预算", "goal", 1000, 0, now, now.AddDate(0, 1, 0)))

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `transactions`").
		WithArgs(uint(1), uint(6)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `deleted_at`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := httptest.NewRequest("DELETE", "/budgets/6", nil)
	w := httptest.NewRecorder()
	newBudgetRouter().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBudgetRecalc(t *testing.T) {
	mock, cleanup := setupMockDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM `budgets`").
		WithArgs(uint(5), uint(1), 1).
		WillReturnRows(budgetRows().AddRow(5, 1, "生活费", "monthly", 1000, 999, now, now.AddDate(0, 1, 0)))

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(ABS\\(amount\\)\\), 0\\) FROM `transactions`").
		WithArgs(uint(1), uint(5), "expense").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(300))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `budgets` SET `spent_amount`=\\?").
		WithArgs(300.0, sqlmock.AnyArg(), uint(5), uint(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := httptest.NewRequest("POST", "/budgets/5/recalc", nil)
	w := httptest.NewRecorder()
	newBudgetRouter().ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.InDelta(t, 300.0, data["spent_amount"].(float64), 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}
