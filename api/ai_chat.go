package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
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

type sseChatFrame struct {
	Type    string `json:"type"`              // delta | done | error
	Content string `json:"content,omitempty"` // delta内容或错误信息
}

func writeSSEJSON(c *gin.Context, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = c.Writer.WriteString("data: " + string(b) + "\n\n")
	c.Writer.Flush()
}

// AIChatHandler AI聊天处理器
type AIChatHandler struct{}

func NewAIChatHandler() *AIChatHandler {
	return &AIChatHandler{}
}

// AIChatRequest AI聊天请求
type AIChatRequest struct {
	ModelID uint   `json:"model_id" binding:"required"`
	Message string `json:"message" binding:"required,min=1"`
}

const chatSystemPrompt = "你是一个专业、友好、简洁的个人财务助手。请结合下面的用户财务数据回答问题，用中文回答。\n\n"

// ChatStream AI聊天（SSE流式返回），结束后写入聊天记录
// @Summary AI聊天（流式）
// @Description 选择AI模型与AI对话。系统提示词注入当前用户的财务画像（当月收支、
// @Description 预算使用、分类占比、近期交易），SSE流式返回JSON帧（delta/done/error），
// @Description 结束后保存聊天记录并标注画像版本。
// @Tags AI
// @Accept json
// @Produce text/event-stream
// @Security BearerAuth
// @Param request body AIChatRequest true "聊天请求"
// @Success 200 {string} string "SSE流：data: {\"type\":\"delta\",\"content\":\"...\"}"
// @Failure 400 {object} Response "参数错误"
// @Failure 404 {object} Response "AI模型不存在"
// @Router /api/v1/ai/chat [post]
func (h *AIChatHandler) ChatStream(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req AIChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	// 读取模型配置（包含密钥）
	var aiModel models.AIModel
	if err := database.DB.Where("id = ? AND enabled = ?", req.ModelID, true).First(&aiModel).Error; err != nil {
		NotFound(c, "AI模型不存在")
		return
	}

	// 注入用户财务画像；构建失败时降级为纯对话，不阻塞聊天
	systemPrompt := chatSystemPrompt
	fc, err := service.BuildFinancialContext(database.DB, userID, time.Now())
	if err != nil {
		log.Printf("构建财务画像失败 (user=%d): %v", userID, err)
		systemPrompt = "你是一个专业、友好、简洁的个人财务助手。请用中文回答。"
	} else {
		systemPrompt += fc.Render()
	}

	// SSE响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// 构建请求（OpenAI兼容 chat/completions）
	requestBody := map[string]interface{}{
		"model": aiModel.Name,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": req.Message},
		},
		"stream":      true,
		"temperature": 0.3,
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		writeSSEJSON(c, sseChatFrame{Type: "error", Content: "构建请求失败"})
		writeSSEJSON(c, sseChatFrame{Type: "done"})
		return
	}

	httpReq, err := http.NewRequest("POST", strings.TrimRight(aiModel.BaseURL, "/")+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		writeSSEJSON(c, sseChatFrame{Type: "error", Content: "创建请求失败"})
		writeSSEJSON(c, sseChatFrame{Type: "done"})
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+aiModel.APIKey)

	client := &http.Client{Timeout: 300 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		writeSSEJSON(c, sseChatFrame{Type: "error", Content: "请求AI服务失败: " + err.Error()})
		writeSSEJSON(c, sseChatFrame{Type: "done"})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		writeSSEJSON(c, sseChatFrame{Type: "error", Content: fmt.Sprintf("AI服务返回错误: %d %s", resp.StatusCode, string(body))})
		writeSSEJSON(c, sseChatFrame{Type: "done"})
		return
	}

	saveMessage := func(aiText string) {
		msg := models.AIChatMessage{
			AIModelID:      req.ModelID,
			UserID:         userID,
			UserText:       req.Message,
			AIText:         aiText,
			ContextVersion: service.ContextSchemaVersion,
		}
		_ = database.DB.Create(&msg).Error
	}

	ctx := c.Request.Context()
	reader := bufio.NewReader(resp.Body)
	var aiText strings.Builder

	finishedNormally := false
	for {
		select {
		case <-ctx.Done():
			// 客户端断开：不落库（避免保存半截内容）
			return
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// 有些兼容接口不会发送 [DONE]，EOF 视为结束
				finishedNormally = true
				break
			}
			// 读取异常：不落库
			return
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		// OpenAI SSE: data: {...}
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}

		data := bytes.TrimPrefix(line, []byte("data: "))
		if string(data) == "[DONE]" {
			finishedNormally = false
			saveMessage(aiText.String())
			writeSSEJSON(c, sseChatFrame{Type: "done"})
			break
		}

		var streamData map[string]interface{}
		if err := json.Unmarshal(data, &streamData); err != nil {
			continue
		}

		// choices[0].delta.content
		content := ""
		if choices, ok := streamData["choices"].([]interface{}); ok && len(choices) > 0 {
			if choice, ok := choices[0].(map[string]interface{}); ok {
				if delta, ok := choice["delta"].(map[string]interface{}); ok {
					if v, ok := delta["content"].(string); ok {
						content = v
					}
				}
			}
		}

		if content == "" {
			continue
		}

		aiText.WriteString(content)
		writeSSEJSON(c, sseChatFrame{Type: "delta", Content: content})
	}

	// EOF 正常结束但没收到 [DONE]，这里补一次 done + 落库
	if finishedNormally {
		saveMessage(aiText.String())
		writeSSEJSON(c, sseChatFrame{Type: "done"})
	}
}

// ChatHistory 获取聊天历史（按模型分页）
// @Summary 获取AI聊天历史
// @Description 获取当前用户的AI聊天历史记录，按model_id分页返回（软删除不返回）
// @Tags AI
// @Produce json
// @Security BearerAuth
// @Param model_id query int true "AI模型ID"
// @Param page query int false "页码，默认1"
// @Param page_size query int false "每页条数，默认20，最大100"
// @Success 200 {object} Response{data=PageResponse{list=[]models.AIChatMessage}} "获取成功"
// @Failure 400 {object} Response "参数错误"
// @Router /api/v1/ai/chat/history [get]
func (h *AIChatHandler) ChatHistory(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	modelIDStr := c.Query("model_id")
	if modelIDStr == "" {
		BadRequest(c, "缺少 model_id")
		return
	}
	modelID64, err := strconv.ParseUint(modelIDStr, 10, 32)
	if err != nil {
		BadRequest(c, "无效的 model_id")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := database.DB.Model(&models.AIChatMessage{}).
		Where("ai_model_id = ? AND user_id = ?", uint(modelID64), userID)
	var total int64
	query.Count(&total)

	var list []models.AIChatMessage
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

// DeleteChatHistory 软删除聊天记录
// @Summary 删除AI聊天记录
// @Description 软删除当前用户的指定AI聊天记录
// @Tags AI
// @Produce json
// @Security BearerAuth
// @Param id path int true "聊天记录ID"
// @Success 200 {object} Response "删除成功"
// @Failure 400 {object} Response "无效的ID"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/ai/chat/history/{id} [delete]
func (h *AIChatHandler) DeleteChatHistory(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	id64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var msg models.AIChatMessage
	if err := database.DB.Where("id = ? AND user_id = ?", uint(id64), userID).First(&msg).Error; err != nil {
		NotFound(c, "记录不存在")
		return
	}

	if err := database.DB.Delete(&msg).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "删除失败"))
		return
	}

	SuccessWithMessage(c, "删除成功", nil)
}
