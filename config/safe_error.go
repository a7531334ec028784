package config

// SafeErrorMessage 根据运行模式决定是否暴露错误详情
// release 模式下返回 fallback，避免内部错误信息泄露给客户端
func SafeErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if GlobalConfig != nil && GlobalConfig.Server.Mode == "release" {
		return fallback
	}
	return err.Error()
}
