package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"minty/database"
	"minty/middleware"
	"minty/models"
	"minty/service"

	"github.com/gin-gonic/gin"
)

// AIInsightHandler 智能洞察处理器
type AIInsightHandler struct{}

// NewAIInsightHandler 创建智能洞察处理器
func NewAIInsightHandler() *AIInsightHandler {
	return &AIInsightHandler{}
}

// InsightRequest 生成洞察请求
type InsightRequest struct {
	ModelID uint `json:"model_id" binding:"required"`
}

// InsightResponse 生成洞察返回
type InsightResponse struct {
	Insights       []service.Insight `json:"insights"`
	Fallback       bool              `json:"fallback"`        // 模型输出无法解析时为 true
	ContextVersion string            `json:"context_version"` // 生成所用的财务上下文版本
	HistoryID      uint              `json:"history_id"`
}

const insightPrompt = `你是一个个人财务分析师。请基于下面的用户财务数据生成 2~4 条个性化财务洞察。

只输出一个 JSON 数组，不要输出任何其他文字。每个元素包含字段：
- type: tip/warning/achievement/alert 之一
- icon: 图标名（如 lightbulb、trending-up、alert-triangle）
- title: 简短标题
- description: 一两句话的说明
- actionTip: 可执行的建议
- trend: up/down/stable 之一
- category: 相关分类名，没有就留空

财务数据如下：

`

// GenerateInsights 生成智能洞察
// @Summary 生成智能洞察
// @Description 基于当前用户的财务画像调用AI生成洞察列表（非流式）。
// @Description 模型输出无法解析为JSON数组时返回确定性的回退洞察并标注 fallback。
// @Tags AI
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body InsightRequest true "洞察请求"
// @Success 200 {object} Response{data=InsightResponse} "生成成功"
// @Failure 400 {object} Response "参数错误"
// @Failure 404 {object} Response "AI模型不存在"
// @Failure 502 {object} Response "AI服务不可用"
// @Router /api/v1/ai/insights [post]
func (h *AIInsightHandler) GenerateInsights(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req InsightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	var aiModel models.AIModel
	if err := database.DB.Where("id = ? AND enabled = ?", req.ModelID, true).First(&aiModel).Error; err != nil {
		NotFound(c, "AI模型不存在")
		return
	}

	fc, err := service.BuildFinancialContext(database.DB, userID, time.Now())
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "构建财务画像失败"))
		return
	}

	raw, err := h.callCompletion(c, aiModel, insightPrompt+fc.Render())
	if err != nil {
		Error(c, http.StatusBadGateway, SafeErrorMessage(err, "AI服务不可用"))
		return
	}

	insights, fallback := service.ParseInsights(raw)

	resultJSON, err := json.Marshal(insights)
	if err != nil {
		InternalError(c, "序列化洞察失败")
		return
	}
	his := models.AIInsightHistory{
		AIModelID:      aiModel.ID,
		UserID:         userID,
		ContextVersion: fc.SchemaVersion,
		Fallback:       fallback,
		Result:         string(resultJSON),
	}
	// 历史落库失败不影响本次返回
	_ = database.DB.Create(&his).Error

	Success(c, InsightResponse{
		Insights:       insights,
		Fallback:       fallback,
		ContextVersion: fc.SchemaVersion,
		HistoryID:      his.ID,
	})
}

// callCompletion 非流式调用 OpenAI 兼容接口，返回首个 choice 的文本
func (h *AIInsightHandler) callCompletion(c *gin.Context, aiModel models.AIModel, prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"model": aiModel.Name,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream":      false,
		"temperature": 0.3,
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("构建请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(c.Request.Context(), "POST",
		strings.TrimRight(aiModel.BaseURL, "/")+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+aiModel.APIKey)

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("请求AI服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("AI服务返回错误: %d %s", resp.StatusCode, string(body))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("解析AI响应失败: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("AI响应为空")
	}
	return completion.Choices[0].Message.Content, nil
}

// ListInsightHistory 获取洞察历史
// @Summary 获取洞察历史
// @Description 分页获取当前用户的智能洞察历史记录
// @Tags AI
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码，默认1"
// @Param page_size query int false "每页条数，默认20，最大100"
// @Success 200 {object} Response{data=PageResponse{list=[]models.AIInsightHistory}} "获取成功"
// @Router /api/v1/ai/insights/history [get]
func (h *AIInsightHandler) ListInsightHistory(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := database.DB.Model(&models.AIInsightHistory{}).Where("user_id = ?", userID)
	var total int64
	query.Count(&total)

	var list []models.AIInsightHistory
	if err := query.Order("created_at DESC").
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

// DeleteInsightHistory 删除洞察历史
// @Summary 删除洞察历史
// @Description 软删除当前用户的指定洞察历史记录
// @Tags AI
// @Produce json
// @Security BearerAuth
// @Param id path int true "历史记录ID"
// @Success 200 {object} Response "删除成功"
// @Failure 400 {object} Response "无效的ID"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/ai/insights/history/{id} [delete]
func (h *AIInsightHandler) DeleteInsightHistory(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var his models.AIInsightHistory
	if err := database.DB.Where("id = ? AND user_id = ?", uint(id64), userID).First(&his).Error; err != nil {
		NotFound(c, "记录不存在")
		return
	}

	if err := database.DB.Delete(&his).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}

	SuccessWithMessage(c, "删除成功", nil)
}
