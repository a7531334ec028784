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

// TransactionHandler 交易处理器
type TransactionHandler struct {
	feed *service.FeedHub
}

// NewTransactionHandler 创建交易处理器
func NewTransactionHandler(feed *service.FeedHub) *TransactionHandler {
	return &TransactionHandler{feed: feed}
}

// TransactionCreateRequest 创建交易请求
// amount 一律传正数，方向由 type 决定
type TransactionCreateRequest struct {
	Description     string  `json:"description" binding:"omitempty,max=255" example:"午饭"`
	Amount          float64 `json:"amount" binding:"required,gt=0" example:"25.5"`
	Type            string  `json:"type" binding:"required" example:"expense"` // income/expense
	CategoryID      uint    `json:"category_id" binding:"required" example:"1"`
	BudgetID        *uint   `json:"budget_id" example:"1"`
	TransactionTime string  `json:"transaction_time" binding:"omitempty" example:"2025-08-28 12:30:00"`
	Notes           string  `json:"notes" binding:"omitempty,max=1000"`
	Tags            string  `json:"tags" binding:"omitempty,max=255" example:"早餐,工作日"`
}

// TransactionUpdateRequest 更新交易请求
// budget_id 传 0 表示解除预算关联
type TransactionUpdateRequest struct {
	Description     *string  `json:"description" binding:"omitempty,max=255"`
	Amount          *float64 `json:"amount" binding:"omitempty,gt=0"`
	Type            *string  `json:"type"`
	CategoryID      *uint    `json:"category_id"`
	BudgetID        *uint    `json:"budget_id"`
	TransactionTime *string  `json:"transaction_time"`
	Notes           *string  `json:"notes" binding:"omitempty,max=1000"`
	Tags            *string  `json:"tags" binding:"omitempty,max=255"`
}

// signedAmount 按类型赋符号：支出存负数，收入存正数
func signedAmount(amount float64, txnType string) float64 {
	if txnType == models.TransactionTypeExpense {
		return -amount
	}
	return amount
}

// loadCategory 校验分类归属与收支类型一致
func loadCategory(userID, categoryID uint, txnType string) (*models.Category, string) {
	var cat models.Category
	if err := database.DB.Where("id = ? AND user_id = ?", categoryID, userID).First(&cat).Error; err != nil {
		return nil, "分类不存在"
	}
	if cat.Type != txnType {
		return nil, "分类的收支类型与交易不一致"
	}
	return &cat, ""
}

// validateBudgetLink 校验预算关联：仅支出可挂预算，且预算必须属于当前用户
func validateBudgetLink(userID uint, budgetID *uint, txnType string) string {
	if budgetID == nil {
		return ""
	}
	if txnType != models.TransactionTypeExpense {
		return "仅支出交易可关联预算"
	}
	var budget models.Budget
	if err := database.DB.Where("id = ? AND user_id = ?", *budgetID, userID).First(&budget).Error; err != nil {
		return "预算不存在"
	}
	return ""
}

// List 获取交易列表
// @Summary 获取交易列表
// @Description 分页获取当前用户的交易，支持按类型、分类、预算、日期范围与关键字筛选
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Param type query string false "类型筛选 income/expense"
// @Param category_id query int false "分类ID"
// @Param budget_id query int false "预算ID"
// @Param start_date query string false "开始日期 (格式: 2006-01-02)"
// @Param end_date query string false "结束日期 (格式: 2006-01-02)"
// @Param keyword query string false "描述/备注关键字"
// @Success 200 {object} Response{data=PageResponse{list=[]models.Transaction}} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := database.DB.Model(&models.Transaction{}).Where("user_id = ?", userID)
	if t := c.Query("type"); t != "" {
		query = query.Where("type = ?", t)
	}
	if cid := c.Query("category_id"); cid != "" {
		query = query.Where("category_id = ?", cid)
	}
	if bid := c.Query("budget_id"); bid != "" {
		query = query.Where("budget_id = ?", bid)
	}
	if startDate := c.Query("start_date"); startDate != "" {
		if t, err := time.ParseInLocation("2006-01-02", startDate, time.Local); err == nil {
			query = query.Where("transaction_time >= ?", t)
		}
	}
	if endDate := c.Query("end_date"); endDate != "" {
		if t, err := time.ParseInLocation("2006-01-02", endDate, time.Local); err == nil {
			query = query.Where("transaction_time < ?", t.AddDate(0, 0, 1))
		}
	}
	if keyword := strings.TrimSpace(c.Query("keyword")); keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("description LIKE ? OR notes LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	var list []models.Transaction
	if err := query.Order("transaction_time DESC, id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	Success(c, PageResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		List:     list,
	})
}

// Get 获取单笔交易
// @Summary 获取单笔交易
// @Description 根据ID获取交易详情
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Success 200 {object} Response{data=models.Transaction} "获取成功"
// @Failure 404 {object} Response "交易不存在"
// @Router /api/v1/transactions/{id} [get]
func (h *TransactionHandler) Get(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var txn models.Transaction
	if err := database.DB.Where("id = ? AND user_id = ?", uint(id64), userID).First(&txn).Error; err != nil {
		NotFound(c, "交易不存在")
		return
	}
	Success(c, txn)
}

// Create 创建交易
// @Summary 创建交易
// @Description 记一笔收入或支出。金额传正数，支出按负数落库；
// @Description 关联预算的支出会同步累加预算的累计消费
// @Tags 交易
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TransactionCreateRequest true "交易信息"
// @Success 200 {object} Response{data=models.Transaction} "创建成功"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/transactions [post]
func (h *TransactionHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req TransactionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	if req.Type != models.TransactionTypeIncome && req.Type != models.TransactionTypeExpense {
		BadRequest(c, "类型错误，可选值：income、expense")
		return
	}

	cat, msg := loadCategory(userID, req.CategoryID, req.Type)
	if msg != "" {
		BadRequest(c, msg)
		return
	}
	if msg := validateBudgetLink(userID, req.BudgetID, req.Type); msg != "" {
		BadRequest(c, msg)
		return
	}

	txnTime := time.Now()
	if req.TransactionTime != "" {
		var err error
		txnTime, err = time.ParseInLocation("2006-01-02 15:04:05", req.TransactionTime, time.Local)
		if err != nil {
			txnTime, err = time.ParseInLocation("2006-01-02", req.TransactionTime, time.Local)
			if err != nil {
				BadRequest(c, "时间格式错误，应为: 2006-01-02 15:04:05 或 2006-01-02")
				return
			}
		}
	}

	txn := models.Transaction{
		UserID:          userID,
		Description:     strings.TrimSpace(req.Description),
		Amount:          signedAmount(req.Amount, req.Type),
		Type:            req.Type,
		CategoryID:      cat.ID,
		CategoryName:    cat.Name,
		BudgetID:        req.BudgetID,
		TransactionTime: txnTime,
		Notes:           req.Notes,
		Tags:            req.Tags,
	}
	if err := database.DB.Create(&txn).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建失败"))
		return
	}

	// 对账失败不回滚交易本身，仅告警，可通过预算重算接口自愈
	if err := service.NewLedger(database.DB).ApplyCreate(&txn); err != nil {
		log.Printf("交易创建后对账失败 (txn=%d): %v", txn.ID, err)
	}

	h.feed.Publish(userID, service.FeedEvent{Resource: service.FeedResourceTransaction, Action: service.FeedActionCreated, ID: txn.ID})
	SuccessWithMessage(c, "创建成功", txn)
}

// Update 更新交易
// @Summary 更新交易
// @Description 更新指定交易。金额、类型、预算关联变化时按差额同步预算累计消费
// @Tags 交易
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Param request body TransactionUpdateRequest true "交易信息"
// @Success 200 {object} Response{data=models.Transaction} "更新成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 404 {object} Response "交易不存在"
// @Router /api/v1/transactions/{id} [put]
func (h *TransactionHandler) Update(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var txn models.Transaction
	if err := database.DB.Where("id = ? AND user_id = ?", uint(id64), userID).First(&txn).Error; err != nil {
		NotFound(c, "交易不存在")
		return
	}
	oldTxn := txn

	var req TransactionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	// 先算出更新后的目标状态，再整体校验
	newType := txn.Type
	if req.Type != nil {
		if *req.Type != models.TransactionTypeIncome && *req.Type != models.TransactionTypeExpense {
			BadRequest(c, "类型错误，可选值：income、expense")
			return
		}
		newType = *req.Type
	}
	newAmount := txn.AbsAmount()
	if req.Amount != nil {
		newAmount = *req.Amount
	}
	newCategoryID := txn.CategoryID
	if req.CategoryID != nil {
		newCategoryID = *req.CategoryID
	}
	newBudgetID := txn.BudgetID
	if req.BudgetID != nil {
		if *req.BudgetID == 0 {
			newBudgetID = nil // 0 表示解除关联
		} else {
			newBudgetID = req.BudgetID
		}
	}
	// 类型切回收入时预算关联自动失效
	if newType != models.TransactionTypeExpense {
		newBudgetID = nil
	}

	cat, msg := loadCategory(userID, newCategoryID, newType)
	if msg != "" {
		BadRequest(c, msg)
		return
	}
	if msg := validateBudgetLink(userID, newBudgetID, newType); msg != "" {
		BadRequest(c, msg)
		return
	}

	txn.Type = newType
	txn.Amount = signedAmount(newAmount, newType)
	txn.CategoryID = cat.ID
	txn.CategoryName = cat.Name
	txn.BudgetID = newBudgetID
	if req.Description != nil {
		txn.Description = strings.TrimSpace(*req.Description)
	}
	if req.Notes != nil {
		txn.Notes = *req.Notes
	}
	if req.Tags != nil {
		txn.Tags = *req.Tags
	}
	if req.TransactionTime != nil && *req.TransactionTime != "" {
		t, err := time.ParseInLocation("2006-01-02 15:04:05", *req.TransactionTime, time.Local)
		if err != nil {
			t, err = time.ParseInLocation("2006-01-02", *req.TransactionTime, time.Local)
			if err != nil {
				BadRequest(c, "时间格式错误，应为: 2006-01-02 15:04:05 或 2006-01-02")
				return
			}
		}
		txn.TransactionTime = t
	}

	// Save 全量落库，budget_id 置 NULL 才能生效
	if err := database.DB.Save(&txn).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}

	if err := service.NewLedger(database.DB).ApplyUpdate(&oldTxn, &txn); err != nil {
		log.Printf("交易更新后对账失败 (txn=%d): %v", txn.ID, err)
	}

	h.feed.Publish(userID, service.FeedEvent{Resource: service.FeedResourceTransaction, Action: service.FeedActionUpdated, ID: txn.ID})
	SuccessWithMessage(c, "更新成功", txn)
}

// Delete 删除交易
// @Summary 删除交易
// @Description 软删除指定交易，关联预算的支出同步回退预算累计消费
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Success 200 {object} Response "删除成功"
// @Failure 404 {object} Response "交易不存在"
// @Router /api/v1/transactions/{id} [delete]
func (h *TransactionHandler) Delete(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var txn models.Transaction
	if err := database.DB.Where("id = ? AND user_id = ?", uint(id64), userID).First(&txn).Error; err != nil {
		NotFound(c, "交易不存在")
		return
	}

	if err := database.DB.Delete(&txn).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}

	if err := service.NewLedger(database.DB).ApplyDelete(&txn); err != nil {
		log.Printf("交易删除后对账失败 (txn=%d): %v", txn.ID, err)
	}

	h.feed.Publish(userID, service.FeedEvent{Resource: service.FeedResourceTransaction, Action: service.FeedActionDeleted, ID: txn.ID})
	SuccessWithMessage(c, "删除成功", nil)
}
