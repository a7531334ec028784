package database

import (
	"fmt"
	"log"

	"minty/config"
	"minty/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// DefaultCategory 新用户初始分类
type DefaultCategory struct {
	Name  string
	Type  string
	Color string
}

// DefaultCategories 新用户注册时写入的初始分类（与前端 CSS 颜色保持一致）
var DefaultCategories = []DefaultCategory{
	{"餐饮", models.CategoryTypeExpense, "#ef4444"}, // 红色
	{"交通", models.CategoryTypeExpense, "#3b82f6"}, // 蓝色
	{"购物", models.CategoryTypeExpense, "#a855f7"}, // 紫色
	{"娱乐", models.CategoryTypeExpense, "#ec4899"}, // 粉色
	{"医疗", models.CategoryTypeExpense, "#10b981"}, // 绿色
	{"住房", models.CategoryTypeExpense, "#14b8a6"}, // 青色
	{"其他", models.CategoryTypeExpense, "#64748b"}, // 灰色
	{"工资", models.CategoryTypeIncome, "#10b981"},
	{"奖金", models.CategoryTypeIncome, "#3b82f6"},
	{"理财", models.CategoryTypeIncome, "#a855f7"},
}

// Init 初始化数据库连接
func Init(cfg *config.Config) error {
	// 构建 MySQL DSN 连接字符串
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
		cfg.Database.Charset,
	)

	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	// 获取底层 *sql.DB 连接池配置
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	// 设置连接池参数
	sqlDB.SetMaxIdleConns(10)  // 最大空闲连接数
	sqlDB.SetMaxOpenConns(100) // 最大打开连接数

	// 自动迁移数据库表
	if err := DB.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Budget{},
		&models.Transaction{},
		&models.NotificationSetting{},
		&models.AIModel{},
		&models.AIChatMessage{},
		&models.AIInsightHistory{},
	); err != nil {
		return err
	}

	// 兼容历史数据：老版本没有 status 字段，默认设置为 active，避免升级后无法登录
	_ = DB.Model(&models.User{}).
		Where("status IS NULL OR status = ''").
		Update("status", models.UserStatusActive).Error

	// 兼容历史数据：老版本交易没有冗余分类名，从分类表回填
	_ = DB.Exec("UPDATE transactions t LEFT JOIN categories c ON t.category_id = c.id " +
		"SET t.category_name = c.name WHERE (t.category_name IS NULL OR t.category_name = '') AND c.id IS NOT NULL").Error

	log.Println("数据库初始化成功")
	return nil
}

// SeedUserCategories 为新用户写入初始分类（仅当该用户还没有分类时）
func SeedUserCategories(userID uint) error {
	var count int64
	DB.Model(&models.Category{}).Where("user_id = ?", userID).Count(&count)
	if count > 0 {
		return nil
	}
	var cats []models.Category
	for _, d := range DefaultCategories {
		cats = append(cats, models.Category{
			UserID: userID,
			Name:   d.Name,
			Type:   d.Type,
			Color:  d.Color,
		})
	}
	return DB.Create(&cats).Error
}

// GetDB 获取数据库连接
func GetDB() *gorm.DB {
	return DB
}
