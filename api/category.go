package api

import (
	"strconv"
	"strings"

	"minty/database"
	"minty/middleware"
	"minty/models"
	"minty/service"

	"github.com/gin-gonic/gin"
)

// CategoryHandler 收支分类处理器
type CategoryHandler struct {
	feed *service.FeedHub
}

// NewCategoryHandler 创建收支分类处理器
func NewCategoryHandler(feed *service.FeedHub) *CategoryHandler {
	return &CategoryHandler{feed: feed}
}

// CategoryCreateRequest 创建分类请求
type CategoryCreateRequest struct {
	Name           string  `json:"name" binding:"required,min=1,max=50" example:"餐饮"`
	Type           string  `json:"type" binding:"required" example:"expense"` // income/expense
	Color          string  `json:"color" binding:"omitempty,max=20" example:"#ef4444"`
	MonthlyLimit   float64 `json:"monthly_limit" binding:"omitempty,gte=0" example:"1500"`
	AlertEnabled   bool    `json:"alert_enabled"`
	AlertThreshold int     `json:"alert_threshold" binding:"omitempty,min=1,max=100" example:"80"`
}

// CategoryUpdateRequest 更新分类请求
type CategoryUpdateRequest struct {
	Name           string   `json:"name" binding:"omitempty,min=1,max=50"`
	Color          *string  `json:"color" binding:"omitempty,max=20"`
	MonthlyLimit   *float64 `json:"monthly_limit" binding:"omitempty,gte=0"`
	AlertEnabled   *bool    `json:"alert_enabled"`
	AlertThreshold *int     `json:"alert_threshold" binding:"omitempty,min=1,max=100"`
}

// List 获取分类列表
// @Summary 获取分类列表
// @Description 获取当前用户的全部收支分类，可按类型筛选
// @Tags 分类
// @Produce json
// @Security BearerAuth
// @Param type query string false "类型筛选 income/expense"
// @Success 200 {object} Response{data=[]models.Category} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	query := database.DB.Where("user_id = ?", userID)
	if t := c.Query("type"); t != "" {
		query = query.Where("type = ?", t)
	}

	var list []models.Category
	if err := query.Order("name ASC, id ASC").Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}
	Success(c, list)
}

// Create 创建分类
// @Summary 创建分类
// @Description 创建新的收支分类。开启提醒时必须同时设置月限额
// @Tags 分类
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CategoryCreateRequest true "分类信息"
// @Success 200 {object} Response{data=models.Category} "创建成功"
// @Failure 400 {object} Response "参数错误或分类名称已存在"
// @Router /api/v1/categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req CategoryCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		BadRequest(c, "名称不能为空")
		return
	}
	if !models.ValidCategoryType(req.Type) {
		BadRequest(c, "类型错误，可选值：income、expense")
		return
	}
	// 提醒阈值仅在开启提醒且有月限额时有意义
	if req.AlertEnabled && req.MonthlyLimit <= 0 {
		BadRequest(c, "开启限额提醒需要先设置月限额")
		return
	}

	// 同用户同类型内名称唯一
	var existing models.Category
	if err := database.DB.Where("user_id = ? AND name = ? AND type = ?", userID, req.Name, req.Type).
		First(&existing).Error; err == nil {
		BadRequest(c, "分类名称已存在")
		return
	}

	color := req.Color
	if color == "" {
		color = "#64748b" // 默认灰色
	}
	threshold := req.AlertThreshold
	if threshold == 0 {
		threshold = 80
	}
	cat := models.Category{
		UserID:         userID,
		Name:           req.Name,
		Type:           req.Type,
		Color:          color,
		MonthlyLimit:   req.MonthlyLimit,
		AlertEnabled:   req.AlertEnabled,
		AlertThreshold: threshold,
	}
	if err := database.DB.Create(&cat).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "创建失败"))
		return
	}

	h.feed.Publish(userID, service.FeedEvent{Resource: service.FeedResourceCategory, Action: service.FeedActionCreated, ID: cat.ID})
	SuccessWithMessage(c, "创建成功", cat)
}

// Update 更新分类
// @Summary 更新分类
// @Description 更新指定分类的名称、颜色、月限额与提醒设置（类型不可变更）
// @Tags 分类
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Param request body CategoryUpdateRequest true "更新的分类信息"
// @Success 200 {object} Response{data=models.Category} "更新成功"
// @Failure 400 {object} Response "参数错误或分类名称已存在"
// @Failure 404 {object} Response "分类不存在"
// @Router /api/v1/categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var cat models.Category
	if err := database.DB.Where("id = ? AND user_id = ?", uint(id64), userID).First(&cat).Error; err != nil {
		NotFound(c, "分类不存在")
		return
	}

	var req CategoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			BadRequest(c, "名称不能为空")
			return
		}
		var existing models.Category
		if err := database.DB.Where("user_id = ? AND name = ? AND type = ? AND id != ?", userID, req.Name, cat.Type, cat.ID).
			First(&existing).Error; err == nil {
			BadRequest(c, "分类名称已存在")
			return
		}
		updates["name"] = req.Name
	}
	if req.Color != nil {
		color := *req.Color
		if color == "" {
			color = "#64748b" // 默认灰色
		}
		updates["color"] = color
	}
	if req.MonthlyLimit != nil {
		updates["monthly_limit"] = *req.MonthlyLimit
	}
	if req.AlertEnabled != nil {
		updates["alert_enabled"] = *req.AlertEnabled
	}
	if req.AlertThreshold != nil {
		updates["alert_threshold"] = *req.AlertThreshold
	}

	// 校验更新后的提醒设置不变式
	alertEnabled := cat.AlertEnabled
	if req.AlertEnabled != nil {
		alertEnabled = *req.AlertEnabled
	}
	monthlyLimit := cat.MonthlyLimit
	if req.MonthlyLimit != nil {
		monthlyLimit = *req.MonthlyLimit
	}
	if alertEnabled && monthlyLimit <= 0 {
		BadRequest(c, "开启限额提醒需要先设置月限额")
		return
	}

	if len(updates) == 0 {
		SuccessWithMessage(c, "无需更新", cat)
		return
	}

	if err := database.DB.Model(&cat).Updates(updates).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}
	database.DB.First(&cat, cat.ID)

	// 名称变更时同步交易上的冗余快照
	if name, ok := updates["name"]; ok {
		_ = database.DB.Model(&models.Transaction{}).
			Where("user_id = ? AND category_id = ?", userID, cat.ID).
			Update("category_name", name).Error
	}

	h.feed.Publish(userID, service.FeedEvent{Resource: service.FeedResourceCategory, Action: service.FeedActionUpdated, ID: cat.ID})
	SuccessWithMessage(c, "更新成功", cat)
}

// Delete 删除分类
// @Summary 删除分类
// @Description 软删除指定分类。不级联删除交易，关联交易此后按「未分类」展示
// @Tags 分类
// @Produce json
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Success 200 {object} Response "删除成功"
// @Failure 400 {object} Response "无效的ID"
// @Failure 404 {object} Response "分类不存在"
// @Router /api/v1/categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}
	var cat models.Category
	if err := database.DB.Where("id = ? AND user_id = ?", uint(id64), userID).First(&cat).Error; err != nil {
		NotFound(c, "分类不存在")
		return
	}
	if err := database.DB.Delete(&cat).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}

	h.feed.Publish(userID, service.FeedEvent{Resource: service.FeedResourceCategory, Action: service.FeedActionDeleted, ID: cat.ID})
	SuccessWithMessage(c, "删除成功", nil)
}
