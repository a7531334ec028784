package api

import (
	"strconv"
	"time"

	"minty/database"
	"minty/middleware"
	"minty/models"
	"minty/service"

	"github.com/gin-gonic/gin"
)

// SummaryHandler 统计处理器
type SummaryHandler struct{}

// NewSummaryHandler 创建统计处理器
func NewSummaryHandler() *SummaryHandler {
	return &SummaryHandler{}
}

// MonthSummaryResponse 当月收支汇总返回
type MonthSummaryResponse struct {
	Month        string  `json:"month" example:"2025-08"`
	TotalIncome  float64 `json:"total_income" example:"8000.00"`
	TotalExpense float64 `json:"total_expense" example:"2345.67"`
	Net          float64 `json:"net" example:"5654.33"`
	Count        int     `json:"count" example:"42"`
}

// monthRange 某月的 [起, 止) 时间窗口
func monthRange(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}

// loadMonthTransactions 加载当前用户某月的全部交易
func loadMonthTransactions(userID uint, now time.Time) ([]models.Transaction, error) {
	start, end := monthRange(now)
	var txns []models.Transaction
	err := database.DB.Where("user_id = ? AND transaction_time >= ? AND transaction_time < ?", userID, start, end).
		Find(&txns).Error
	return txns, err
}

// GetSummary 获取当月收支汇总
// @Summary 获取当月收支汇总
// @Description 统计当前用户当月（真实时钟）的收入总和、支出总和与净额
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=MonthSummaryResponse} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/summary [get]
func (h *SummaryHandler) GetSummary(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	now := time.Now()

	txns, err := loadMonthTransactions(userID, now)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	resp := MonthSummaryResponse{Month: service.CurrentMonth(now), Count: len(txns)}
	for i := range txns {
		if txns[i].IsExpense() {
			resp.TotalExpense += txns[i].AbsAmount()
		} else {
			resp.TotalIncome += txns[i].AbsAmount()
		}
	}
	resp.Net = resp.TotalIncome - resp.TotalExpense
	Success(c, resp)
}

// GetCategoryStats 获取分类支出统计
// @Summary 获取分类支出统计
// @Description 按分类聚合当月支出，含占比与笔数，金额降序。已删除分类归入「未分类」
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Param top query int false "仅返回前 N 个分类，0 为全部" default(0)
// @Success 200 {object} Response{data=[]service.CategorySpend} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/summary/categories [get]
func (h *SummaryHandler) GetCategoryStats(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	now := time.Now()
	topN, _ := strconv.Atoi(c.DefaultQuery("top", "0"))

	txns, err := loadMonthTransactions(userID, now)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	var cats []models.Category
	if err := database.DB.Where("user_id = ?", userID).Find(&cats).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	Success(c, service.AggregateCategorySpend(txns, cats, topN))
}

// GetMonthlyTrend 获取近六个月收支趋势
// @Summary 获取近六个月收支趋势
// @Description 近 6 个月（含当月）按月分桶的收入/支出/净额，升序返回，无数据月份为零
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]service.MonthBucket} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/summary/trend [get]
func (h *SummaryHandler) GetMonthlyTrend(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	now := time.Now()

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -5, 0)
	var txns []models.Transaction
	if err := database.DB.Where("user_id = ? AND transaction_time >= ?", userID, first).
		Find(&txns).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	Success(c, service.MonthlyTrend(txns, now, 6))
}

// GetBudgetUsage 获取预算使用情况
// @Summary 获取预算使用情况
// @Description 当前用户全部预算的使用率与状态分级（over/warning/caution/good）
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]BudgetResponse} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/summary/budgets [get]
func (h *SummaryHandler) GetBudgetUsage(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var budgets []models.Budget
	if err := database.DB.Where("user_id = ?", userID).Order("start_date DESC, id DESC").
		Find(&budgets).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	list := make([]BudgetResponse, 0, len(budgets))
	for _, b := range budgets {
		list = append(list, toBudgetResponse(b))
	}
	Success(c, list)
}

// GetProjection 获取本月消费推算
// @Summary 获取本月消费推算
// @Description 按当月支出与已过天数推算整月消费（日均 × 31）
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=service.Projection} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/summary/projection [get]
func (h *SummaryHandler) GetProjection(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	now := time.Now()

	txns, err := loadMonthTransactions(userID, now)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	var monthExpense float64
	for i := range txns {
		if txns[i].IsExpense() {
			monthExpense += txns[i].AbsAmount()
		}
	}

	Success(c, service.ProjectMonthlySpend(monthExpense, now))
}
