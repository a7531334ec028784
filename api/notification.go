package api

import (
	"minty/database"
	"minty/middleware"
	"minty/models"
	"minty/service"

	"github.com/gin-gonic/gin"
)

// NotificationHandler 通知设置处理器
type NotificationHandler struct {
	email *service.EmailService
}

// NewNotificationHandler 创建通知设置处理器
func NewNotificationHandler(email *service.EmailService) *NotificationHandler {
	return &NotificationHandler{email: email}
}

// NotificationUpdateRequest 更新通知设置请求
type NotificationUpdateRequest struct {
	BudgetAlerts  *bool   `json:"budget_alerts"`
	MonthlyReport *bool   `json:"monthly_report"`
	AlertEmail    *string `json:"alert_email" binding:"omitempty,email"`
}

// GetSettings 获取通知设置
// @Summary 获取通知设置
// @Description 获取当前用户的通知设置，不存在时返回默认值（预算提醒开启）
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=models.NotificationSetting} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/notifications/settings [get]
func (h *NotificationHandler) GetSettings(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var setting models.NotificationSetting
	if err := database.DB.Where("user_id = ?", userID).First(&setting).Error; err != nil {
		// 历史用户可能没有设置记录，按默认值返回
		setting = models.NotificationSetting{UserID: userID, BudgetAlerts: true}
	}
	Success(c, setting)
}

// UpdateSettings 更新通知设置
// @Summary 更新通知设置
// @Description 更新当前用户的通知设置，不存在时创建
// @Tags 通知
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body NotificationUpdateRequest true "通知设置"
// @Success 200 {object} Response{data=models.NotificationSetting} "更新成功"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/notifications/settings [put]
func (h *NotificationHandler) UpdateSettings(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req NotificationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	var setting models.NotificationSetting
	if err := database.DB.Where("user_id = ?", userID).First(&setting).Error; err != nil {
		setting = models.NotificationSetting{UserID: userID, BudgetAlerts: true}
		if err := database.DB.Create(&setting).Error; err != nil {
			InternalError(c, SafeErrorMessage(err, "创建设置失败"))
			return
		}
	}

	updates := make(map[string]interface{})
	if req.BudgetAlerts != nil {
		updates["budget_alerts"] = *req.BudgetAlerts
	}
	if req.MonthlyReport != nil {
		updates["monthly_report"] = *req.MonthlyReport
	}
	if req.AlertEmail != nil {
		updates["alert_email"] = *req.AlertEmail
	}
	if len(updates) == 0 {
		SuccessWithMessage(c, "无需更新", setting)
		return
	}

	if err := database.DB.Model(&setting).Updates(updates).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "更新失败"))
		return
	}
	database.DB.First(&setting, setting.ID)
	SuccessWithMessage(c, "更新成功", setting)
}

// SendTestEmail 发送测试邮件
// @Summary 发送测试邮件
// @Description 向当前用户的提醒邮箱发送一封测试邮件，验证邮件配置
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "发送成功"
// @Failure 400 {object} Response "未配置邮箱"
// @Failure 500 {object} Response "发送失败"
// @Router /api/v1/notifications/test-email [post]
func (h *NotificationHandler) SendTestEmail(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		NotFound(c, "用户不存在")
		return
	}

	to := user.Email
	var setting models.NotificationSetting
	if err := database.DB.Where("user_id = ?", userID).First(&setting).Error; err == nil && setting.AlertEmail != "" {
		to = setting.AlertEmail
	}
	if to == "" {
		BadRequest(c, "请先设置提醒邮箱")
		return
	}

	if err := h.email.SendTestEmail(to); err != nil {
		InternalError(c, SafeErrorMessage(err, "发送失败"))
		return
	}
	SuccessWithMessage(c, "发送成功", nil)
}
