package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInsights_ValidArray(t *testing.T) {
	raw := `[
		{"type":"warning","icon":"alert-triangle","title":"餐饮超支","description":"本月餐饮已超限额","actionTip":"控制外卖频率","trend":"up","category":"餐饮"},
		{"type":"achievement","icon":"trophy","title":"储蓄达标","description":"储蓄目标完成 80%","actionTip":"","trend":"up","category":""}
	]`

	insights, fallback := ParseInsights(raw)
	assert.False(t, fallback)
	require.Len(t, insights, 2)
	assert.Equal(t, "warning", insights[0].Type)
	assert.Equal(t, "餐饮超支", insights[0].Title)
	assert.Equal(t, "餐饮", insights[0].Category)
}

func TestParseInsights_ObjectFallsBack(t *testing.T) {
	// 顶层不是数组：整体替换为确定性的回退洞察
	insights, fallback := ParseInsights(`{}`)
	assert.True(t, fallback)
	require.Len(t, insights, 1)
	assert.Equal(t, "tip", insights[0].Type)
	assert.NotEmpty(t, insights[0].Title)
}

func TestParseInsights_GarbageFallsBack(t *testing.T) {
	for _, raw := range []string{"", "不是 JSON", `{"insights": []}`, "[]"} {
		insights, fallback := ParseInsights(raw)
		assert.True(t, fallback, "raw=%q", raw)
		require.Len(t, insights, 1)
		assert.Equal(t, "tip", insights[0].Type)
	}
}

func TestParseInsights_FillsDefaults(t *testing.T) {
	insights, fallback := ParseInsights(`[{"description":"只有描述"}]`)
	assert.False(t, fallback)
	require.Len(t, insights, 1)
	assert.Equal(t, "tip", insights[0].Type)
	assert.Equal(t, "lightbulb", insights[0].Icon)
	assert.Equal(t, "stable", insights[0].Trend)
	assert.NotEmpty(t, insights[0].Title)
}

func TestParseInsights_StripsCodeFence(t *testing.T) {
	raw := "```json\n[{\"type\":\"tip\",\"title\":\"标题\"}]\n```"
	insights, fallback := ParseInsights(raw)
	assert.False(t, fallback)
	require.Len(t, insights, 1)
	assert.Equal(t, "标题", insights[0].Title)
}

func TestParseInsights_Deterministic(t *testing.T) {
	a, _ := ParseInsights("垃圾输入一")
	b, _ := ParseInsights("垃圾输入二")
	assert.Equal(t, a, b)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `[1]`, stripCodeFence("```json\n[1]\n```"))
	assert.Equal(t, `[1]`, stripCodeFence("```\n[1]\n```"))
	assert.Equal(t, `[1]`, stripCodeFence("[1]"))
}
