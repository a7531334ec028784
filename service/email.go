package service

import (
	"fmt"
	"strings"

	"minty/config"

	"gopkg.in/gomail.v2"
)

// EmailService 邮件服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendBudgetAlertEmail 发送预算超阈值提醒邮件
func (s *EmailService) SendBudgetAlertEmail(toEmail, username, budgetName string, spent, total, utilization float64) error {
	if !s.cfg.Enabled {
		return fmt.Errorf("邮件服务未启用，请配置 EMAIL_ENABLED=true")
	}

	subject := "【Minty 记账】预算提醒"
	highlight := fmt.Sprintf("您的预算「%s」已使用 %.2f / %.2f 元（%.1f%%）", budgetName, spent, total, utilization)
	tip := "建议检查近期支出，适当控制该预算下的消费。"
	if utilization >= 100 {
		subject = "【Minty 记账】预算超支提醒"
		tip = "该预算已超支，建议调整预算金额或削减后续支出。"
	}
	return s.sendEmail(toEmail, subject, s.generateAlertEmailBody(username, highlight, tip))
}

// SendCategoryLimitEmail 发送分类月限额超阈值提醒邮件
func (s *EmailService) SendCategoryLimitEmail(toEmail, username, categoryName string, spent, limit float64, threshold int) error {
	if !s.cfg.Enabled {
		return fmt.Errorf("邮件服务未启用，请配置 EMAIL_ENABLED=true")
	}

	subject := "【Minty 记账】分类限额提醒"
	highlight := fmt.Sprintf("分类「%s」本月已消费 %.2f 元，达到月限额 %.2f 元的 %d%% 提醒线",
		categoryName, spent, limit, threshold)
	tip := "该分类的消费接近限额，建议放缓相关支出。"
	return s.sendEmail(toEmail, subject, s.generateAlertEmailBody(username, highlight, tip))
}

// SendMonthlyReportEmail 发送月度报告邮件
func (s *EmailService) SendMonthlyReportEmail(toEmail, username, month string, income, expense float64, topCategories []CategorySpend) error {
	if !s.cfg.Enabled {
		return fmt.Errorf("邮件服务未启用，请配置 EMAIL_ENABLED=true")
	}

	var rows strings.Builder
	for _, cs := range topCategories {
		rows.WriteString(fmt.Sprintf(
			`<tr><td style="padding:8px 12px;border-bottom:1px solid #eee;">%s</td>`+
				`<td style="padding:8px 12px;border-bottom:1px solid #eee;text-align:right;">%.2f 元</td>`+
				`<td style="padding:8px 12px;border-bottom:1px solid #eee;text-align:right;">%.1f%%</td></tr>`,
			cs.Name, cs.Total, cs.Percentage))
	}

	subject := fmt.Sprintf("【Minty 记账】%s 月度报告", month)
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Microsoft YaHei', Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; box-shadow: 0 4px 20px rgba(0,0,0,0.1); }
        .header { background: linear-gradient(135deg, #10b981, #059669); color: white; padding: 30px; text-align: center; }
        .header h1 { margin: 0; font-size: 24px; }
        .content { padding: 40px 30px; }
        .content p { color: #333; line-height: 1.8; margin: 0 0 20px; }
        .summary { background: linear-gradient(135deg, #f0fdf4, #dcfce7); border-radius: 12px; padding: 20px; margin: 20px 0; }
        .summary p { margin: 4px 0; }
        table { width: 100%%; border-collapse: collapse; }
        .footer { background: #f8f9fa; padding: 20px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>🌿 Minty 记账</h1>
        </div>
        <div class="content">
            <p>尊敬的 <strong>%s</strong>，这是您 %s 的月度报告：</p>
            <div class="summary">
                <p>收入：<strong>%.2f 元</strong></p>
                <p>支出：<strong>%.2f 元</strong></p>
                <p>结余：<strong>%.2f 元</strong></p>
            </div>
            <p>支出最多的分类：</p>
            <table>%s</table>
        </div>
        <div class="footer">
            <p>此邮件由系统自动发送，请勿回复</p>
            <p>© Minty 记账 - 您的个人财务管理助手</p>
        </div>
    </div>
</body>
</html>
`, username, month, income, expense, income-expense, rows.String())

	return s.sendEmail(toEmail, subject, body)
}

// generateAlertEmailBody 生成提醒邮件内容
func (s *EmailService) generateAlertEmailBody(username, highlight, tip string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Microsoft YaHei', Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; box-shadow: 0 4px 20px rgba(0,0,0,0.1); }
        .header { background: linear-gradient(135deg, #2563eb, #1d4ed8); color: white; padding: 30px; text-align: center; }
        .header h1 { margin: 0; font-size: 24px; }
        .content { padding: 40px 30px; }
        .content p { color: #333; line-height: 1.8; margin: 0 0 20px; }
        .warning { background: #fff3cd; border-left: 4px solid #ffc107; padding: 15px; margin: 20px 0; border-radius: 4px; }
        .warning p { margin: 0; color: #856404; font-size: 14px; }
        .footer { background: #f8f9fa; padding: 20px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>🌿 Minty 记账</h1>
        </div>
        <div class="content">
            <p>尊敬的 <strong>%s</strong>，您好！</p>
            <div class="warning">
                <p>⚠️ %s</p>
            </div>
            <p>%s</p>
        </div>
        <div class="footer">
            <p>此邮件由系统自动发送，请勿回复</p>
            <p>© Minty 记账 - 您的个人财务管理助手</p>
        </div>
    </div>
</body>
</html>
`, username, highlight, tip)
}

// sendEmail 发送邮件
func (s *EmailService) sendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.Username, s.cfg.From))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}

	return nil
}

// SendTestEmail 发送测试邮件
func (s *EmailService) SendTestEmail(toEmail string) error {
	if !s.cfg.Enabled {
		return fmt.Errorf("邮件服务未启用")
	}

	subject := "【Minty 记账】邮件配置测试"
	body := `
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; padding: 20px;">
    <h2>✅ 邮件配置成功</h2>
    <p>如果您收到这封邮件，说明邮件服务配置正确。</p>
    <p style="color: #666;">—— Minty 记账</p>
</body>
</html>
`
	return s.sendEmail(toEmail, subject, body)
}
