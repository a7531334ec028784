package service

import (
	"encoding/json"
	"strings"
)

// Insight 单条智能洞察
type Insight struct {
	Type        string `json:"type"`        // tip/warning/achievement/alert
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ActionTip   string `json:"actionTip"`
	Trend       string `json:"trend"` // up/down/stable
	Category    string `json:"category"`
}

// 洞察字段缺省值
const (
	defaultInsightType = "tip"
	defaultInsightIcon = "lightbulb"
	defaultTrend       = "stable"
)

// FallbackInsights 确定性回退洞察：模型响应无法解析为数组时整体替换为这一条
func FallbackInsights() []Insight {
	return []Insight{{
		Type:        "tip",
		Icon:        "lightbulb",
		Title:       "保持记账好习惯",
		Description: "暂时无法生成个性化洞察，持续记录收支是掌握财务状况的第一步。",
		ActionTip:   "坚持每天记录交易，下次再来看看专属分析。",
		Trend:       "stable",
	}}
}

// ParseInsights 解析模型返回的洞察 JSON
// 剥掉 markdown 代码围栏后要求顶层为数组；解析失败或顶层不是数组时
// 返回回退洞察（fallback=true），绝不向上抛解析错误。
// 成功解析的每条洞察按缺省值补齐缺失字段
func ParseInsights(raw string) (insights []Insight, fallback bool) {
	cleaned := stripCodeFence(raw)

	var list []Insight
	if err := json.Unmarshal([]byte(cleaned), &list); err != nil {
		return FallbackInsights(), true
	}
	if len(list) == 0 {
		return FallbackInsights(), true
	}

	for i := range list {
		if list[i].Type == "" {
			list[i].Type = defaultInsightType
		}
		if list[i].Icon == "" {
			list[i].Icon = defaultInsightIcon
		}
		if list[i].Trend == "" {
			list[i].Trend = defaultTrend
		}
		if list[i].Title == "" {
			list[i].Title = "理财小贴士"
		}
	}
	return list, false
}

// stripCodeFence 剥掉 ```json ... ``` 这类围栏，模型经常带着它返回
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:] // 去掉 ```json 这一行
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
