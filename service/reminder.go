package service

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"minty/config"
	"minty/models"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// ReminderService 周期提醒服务
// 按固定间隔扫描预算与分类限额，超过提醒阈值时发送邮件；每月 1 日发送
// 上月月度报告。启动带随机抖动延迟，避免多实例同时发起扫描；
// singleflight 按操作名去重，保证同一时刻至多一个扫描在途
type ReminderService struct {
	db    *gorm.DB
	email *EmailService
	cfg   *config.ReminderConfig

	sf   singleflight.Group
	stop chan struct{}
	once sync.Once

	mu   sync.Mutex
	sent map[string]bool // 已发送标记，key 如 "budget:3:2025-08"，防止同周期重复提醒
}

// NewReminderService 创建周期提醒服务
func NewReminderService(db *gorm.DB, email *EmailService, cfg *config.ReminderConfig) *ReminderService {
	return &ReminderService{
		db:    db,
		email: email,
		cfg:   cfg,
		stop:  make(chan struct{}),
		sent:  make(map[string]bool),
	}
}

// Start 启动后台扫描
func (s *ReminderService) Start() {
	if !s.cfg.Enabled {
		log.Println("提醒服务未启用")
		return
	}
	go func() {
		// 启动抖动 [0, jitter)
		jitter := time.Duration(rand.Intn(s.cfg.JitterSeconds)) * time.Second
		select {
		case <-time.After(jitter):
		case <-s.stop:
			return
		}

		interval := time.Duration(s.cfg.IntervalMinutes) * time.Minute
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.runOnce()
		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stop:
				return
			}
		}
	}()
	log.Printf("提醒服务已启动（间隔 %d 分钟）", s.cfg.IntervalMinutes)
}

// Stop 停止后台扫描
func (s *ReminderService) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// runOnce 执行一轮扫描（singleflight 去重在途扫描）
func (s *ReminderService) runOnce() {
	_, _, _ = s.sf.Do("reminder-scan", func() (interface{}, error) {
		if err := s.scan(time.Now()); err != nil {
			log.Printf("提醒扫描失败: %v", err)
		}
		return nil, nil
	})
}

// scan 扫描所有开启提醒的用户
func (s *ReminderService) scan(now time.Time) error {
	var settings []models.NotificationSetting
	if err := s.db.Find(&settings).Error; err != nil {
		return fmt.Errorf("查询通知设置失败: %w", err)
	}

	for i := range settings {
		setting := &settings[i]
		var user models.User
		if err := s.db.First(&user, setting.UserID).Error; err != nil {
			continue
		}
		to := setting.AlertEmail
		if to == "" {
			to = user.Email
		}
		if to == "" {
			continue
		}

		if setting.BudgetAlerts {
			s.checkBudgets(&user, to, now)
			s.checkCategoryLimits(&user, to, now)
		}
		if setting.MonthlyReport && now.Day() == 1 {
			s.sendMonthlyReport(&user, to, now)
		}
	}
	return nil
}

// checkBudgets 预算使用率达到 warning 及以上时提醒（每预算每月一次）
func (s *ReminderService) checkBudgets(user *models.User, to string, now time.Time) {
	var budgets []models.Budget
	if err := s.db.Where("user_id = ?", user.ID).Find(&budgets).Error; err != nil {
		return
	}
	for i := range budgets {
		b := &budgets[i]
		u := BudgetUtilization(b.SpentAmount, b.TotalAmount)
		status := BudgetStatus(u)
		if status != BudgetStatusWarning && status != BudgetStatusOver {
			continue
		}
		key := fmt.Sprintf("budget:%d:%s", b.ID, CurrentMonth(now))
		if s.alreadySent(key) {
			continue
		}
		if err := s.email.SendBudgetAlertEmail(to, user.Username, b.Name, b.SpentAmount, b.TotalAmount, u); err != nil {
			log.Printf("发送预算提醒失败 (budget=%d): %v", b.ID, err)
			continue
		}
		s.markSent(key)
	}
}

// checkCategoryLimits 分类月消费达到限额的提醒阈值时提醒（每分类每月一次）
func (s *ReminderService) checkCategoryLimits(user *models.User, to string, now time.Time) {
	var cats []models.Category
	if err := s.db.Where("user_id = ? AND alert_enabled = ? AND monthly_limit > 0", user.ID, true).
		Find(&cats).Error; err != nil {
		return
	}
	if len(cats) == 0 {
		return
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := range cats {
		cat := &cats[i]
		var spend float64
		s.db.Model(&models.Transaction{}).
			Where("user_id = ? AND category_id = ? AND type = ? AND transaction_time >= ?",
				user.ID, cat.ID, models.TransactionTypeExpense, monthStart).
			Select("COALESCE(SUM(ABS(amount)), 0)").
			Scan(&spend)

		threshold := cat.MonthlyLimit * float64(cat.AlertThreshold) / 100
		if spend < threshold {
			continue
		}
		key := fmt.Sprintf("category:%d:%s", cat.ID, CurrentMonth(now))
		if s.alreadySent(key) {
			continue
		}
		if err := s.email.SendCategoryLimitEmail(to, user.Username, cat.Name, spend, cat.MonthlyLimit, cat.AlertThreshold); err != nil {
			log.Printf("发送分类限额提醒失败 (category=%d): %v", cat.ID, err)
			continue
		}
		s.markSent(key)
	}
}

// sendMonthlyReport 发送上月月度报告（每用户每月一次）
func (s *ReminderService) sendMonthlyReport(user *models.User, to string, now time.Time) {
	lastMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
	month := lastMonth.Format("2006-01")
	key := fmt.Sprintf("report:%d:%s", user.ID, month)
	if s.alreadySent(key) {
		return
	}

	monthEnd := lastMonth.AddDate(0, 1, 0)
	var txns []models.Transaction
	if err := s.db.Where("user_id = ? AND transaction_time >= ? AND transaction_time < ?",
		user.ID, lastMonth, monthEnd).Find(&txns).Error; err != nil {
		return
	}

	var income, expense float64
	for i := range txns {
		if txns[i].IsExpense() {
			expense += txns[i].AbsAmount()
		} else {
			income += txns[i].AbsAmount()
		}
	}

	var cats []models.Category
	_ = s.db.Where("user_id = ?", user.ID).Find(&cats).Error
	top := AggregateCategorySpend(txns, cats, 5)

	if err := s.email.SendMonthlyReportEmail(to, user.Username, month, income, expense, top); err != nil {
		log.Printf("发送月度报告失败 (user=%d): %v", user.ID, err)
		return
	}
	s.markSent(key)
}

func (s *ReminderService) alreadySent(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[key]
}

func (s *ReminderService) markSent(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[key] = true
}
