package api

import (
	"log"
	"strconv"
	"strings"
	"time"

	"minty/database"
	"minty/middleware"
	"minty/models"
	"minty/service"

	"github.com/gin-gonic/gin"
)

// BudgetHandler 预算处理器
type BudgetHandler struct {
	feed *service.FeedHub
}

// NewBudgetHandler 创建预算处理器
func NewBudgetHandler(feed *service.FeedHub) *BudgetHandler {
	return &BudgetHandler{feed: feed}
}

// BudgetCreateRequest 创建预算请求
type BudgetCreateRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=100" example:"八月生活费"`
	Type        string  `json:"type" binding:"omitempty" example:"monthly"` // monthly/goal/event/savings
	TotalAmount float64 `json:"total_amount" binding:"required,gt=0" example:"3000"`
	StartDate   string  `json:"start_date" binding:"required" example:"2025-08-01"`
	EndDate     string  `json:"end_date" binding:"required" example:"2025-08-31"`
}

// BudgetUpdateRequest 更新预算请求
// spent_amount 为派生字段，不接受客户端写入
type BudgetUpdateRequest struct {
	Name        string   `json:"name" binding:"omitempty,min=1,max=100"`
	Type        string   `json:"type" binding:"omitempty"`
	TotalAmount *float64 `json:"total_amount" binding:"omitempty,gt=0"`
	StartDate   string   `json:"start_date" binding:"omitempty"`
	EndDate     string   `json:"end_date" binding:"omitempty"`
}

// BudgetResponse 预算返回（附使用率与状态）
type BudgetResponse struct {
	models.Budget
	Utilization float64 `json:"utilization"`
	Status      string  `json:"status"`
}

func toBudgetResponse(b models.Budget) BudgetResponse {
	u := service.BudgetUtilization(b.SpentAmount, b.TotalAmount)
	return BudgetResponse{Budget: b, Utilization: u, Status: service.BudgetStatus(u)}
}

// List 获取预算列表
// @Summary 获取预算列表
// @Description 获取当前用户的全部预算，附使用率与状态分级
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param type query string false "类型筛选 monthly/goal/event/savings"
// @Success 200 {object} Response{data=[]BudgetResponse} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/budgets [get]
func (h *BudgetHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	query := database.DB.Where("user_id = ?", userID)
	if t := c.Query("type"); t != "" {
		query = query.Where("type = ?", t)
	}

	var budgets []models.Budget
	if err := query.Order("start_date DESC, id DESC").Find(&budgets).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	list := make([]BudgetResponse, 0, len(budgets))
	for _, b := range budgets {
		list = append(list, toBudgetResponse(b))
	}
	Success(c, list)
}

// Get 获取单个预算
// @Summary 获取单个预算
// @Description 根据ID获取预算详情，附使用率与状态
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response{data=BudgetResponse} "获取成功"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id} [get]
func (h *BudgetHandler) Get(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var budget models.Budget
	if err := database.DB.Where("id = ? AND user_id = ?", uint(id64), userID).First(&budget).Error; err != nil {
		NotFound(c, "预算不存在")
		return
	}
	Success(c, toBudgetResponse(budget))
}

// Create 创建预算
// @Summary 创建预算
// @Description 创建新预算，结束日期必须严格晚于开始日期，累计消费从 0 开始
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BudgetCreateRequest true "预算信息"
// @Success 200 {object} Response{data=BudgetResponse} "创建成功"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/budgets [post]
func (h *BudgetHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req BudgetCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		BadRequest(c, "名称不能为空")
		return
	}

	budgetType := req.Type
	if budgetType == "" {
		budgetType = models.BudgetTypeMonthly
	}
	if !models.ValidBudgetType(budgetType) {
		BadRequest(c, "类型错误，可选值：monthly、goal、event、savings")
		return
	}

	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.Local)
	if err != nil {
		BadRequest(c, "开始日期格式错误，应为: 2006-01-02")
		return
	}
	endDate, err := time.ParseInLocation("2006-01-02", req.EndDate, time.Local)
	if err != nil {
		BadRequest(c, "结束日期格式错误，应为: 2006-01-02")
		return
	}
	if !endDate.After(startDate) {
		BadRequest(c, "结束日期必须晚于开始日期")
		return
	}

	budget := models.Budget{
		UserID:      userID,
		Name:        req.Name,
		Type:        budgetType,
		TotalAmount: req.TotalAmount,
		SpentAmount: 0,
		StartDate:   startDate,
		EndDate:     endDate,
	}
	if err := database.DB.Create(&budget).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建失败"))
		return
	}

	h.feed.Publish(userID, service.FeedEvent{Resource: service.FeedResourceBudget, Action: service.FeedActionCreated, ID: budget.ID})
	SuccessWithMessage(c, "创建成功", toBudgetResponse(budget))
}

// Update 更新预算
// @Summary 更新预算
// @Description 更新指定预算的名称、类型、总金额与日期范围
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param request body BudgetUpdateRequest true "预算信息"
// @Success 200 {object} Response{data=BudgetResponse} "更新成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id} [put]
func (h *BudgetHandler) Update(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var budget models.Budget
	if err := database.DB.Where("id = ? AND user_id = ?", uint(id64), userID).First(&budget).Error; err != nil {
		NotFound(c, "预算不存在")
		return
	}

	var req BudgetUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = strings.TrimSpace(req.Name)
	}
	if req.Type != "" {
		if !models.ValidBudgetType(req.Type) {
			BadRequest(c, "类型错误，可选值：monthly、goal、event、savings")
			return
		}
		updates["type"] = req.Type
	}
	if req.TotalAmount != nil {
		updates["total_amount"] = *req.TotalAmount
	}

	startDate := budget.StartDate
	endDate := budget.EndDate
	if req.StartDate != "" {
		startDate, err = time.ParseInLocation("2006-01-02", req.StartDate, time.Local)
		if err != nil {
			BadRequest(c, "开始日期格式错误，应为: 2006-01-02")
			return
		}
		updates["start_date"] = startDate
	}
	if req.EndDate != "" {
		endDate, err = time.ParseInLocation("2006-01-02", req.EndDate, time.Local)
		if err != nil {
			BadRequest(c, "结束日期格式错误，应为: 2006-01-02")
			return
		}
		updates["end_date"] = endDate
	}
	if !endDate.After(startDate) {
		BadRequest(c, "结束日期必须晚于开始日期")
		return
	}

	if len(updates) == 0 {
		SuccessWithMessage(c, "无需更新", toBudgetResponse(budget))
		return
	}

	if err := database.DB.Model(&budget).Updates(updates).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}
	database.DB.First(&budget, budget.ID)

	h.feed.Publish(userID, service.FeedEvent{Resource: service.FeedResourceBudget, Action: service.FeedActionUpdated, ID: budget.ID})
	SuccessWithMessage(c, "更新成功", toBudgetResponse(budget))
}

// Delete 删除预算
// @Summary 删除预算
// @Description 删除指定预算。存在关联交易且未带 confirm=true 时返回 409 与关联数量；
// @Description 确认后先将关联交易的 budget_id 置空（交易本身保留），再删除预算
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param confirm query bool false "确认解除关联并删除"
// @Success 200 {object} Response "删除成功"
// @Failure 404 {object} Response "预算不存在"
// @Failure 409 {object} Response "存在关联交易，需要确认"
// @Router /api/v1/budgets/{id} [delete]
func (h *BudgetHandler) Delete(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var budget models.Budget
	if err := database.DB.Where("id = ? AND user_id = ?", uint(id64), userID).First(&budget).Error; err != nil {
		NotFound(c, "预算不存在")
		return
	}

	ledger := service.NewLedger(database.DB)
	linked, err := ledger.CountLinked(userID, budget.ID)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "查询关联交易失败"))
		return
	}

	if linked > 0 {
		if c.Query("confirm") != "true" {
			Conflict(c, "该预算存在关联交易，删除前将解除关联，请确认", gin.H{"linked_count": linked})
			return
		}
		// 先解除关联，再删除预算，不留悬挂引用
		if _, err := ledger.UnlinkBudget(userID, budget.ID); err != nil {
			InternalError(c, SafeErrorMessage(err, "解除交易关联失败"))
			return
		}
	}

	if err := database.DB.Delete(&budget).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}

	h.feed.Publish(userID, service.FeedEvent{Resource: service.FeedResourceBudget, Action: service.FeedActionDeleted, ID: budget.ID})
	SuccessWithMessage(c, "删除成功", gin.H{"unlinked_count": linked})
}

// Recalc 重算预算累计消费
// @Summary 重算预算累计消费
// @Description 按当前关联的支出交易全量重算 spent_amount（对账自愈入口）
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response{data=BudgetResponse} "重算成功"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id}/recalc [post]
func (h *BudgetHandler) Recalc(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var budget models.Budget
	if err := database.DB.Where("id = ? AND user_id = ?", uint(id64), userID).First(&budget).Error; err != nil {
		NotFound(c, "预算不存在")
		return
	}

	ledger := service.NewLedger(database.DB)
	total, err := ledger.RecalcBudget(userID, budget.ID)
	if err != nil {
		log.Printf("预算重算失败 (budget=%d): %v", budget.ID, err)
		InternalError(c, SafeErrorMessage(err, "重算失败"))
		return
	}
	budget.SpentAmount = total

	h.feed.Publish(userID, service.FeedEvent{Resource: service.FeedResourceBudget, Action: service.FeedActionUpdated, ID: budget.ID})
	SuccessWithMessage(c, "重算成功", toBudgetResponse(budget))
}
