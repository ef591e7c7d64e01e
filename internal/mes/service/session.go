package service

// Session 当前请求的会话身份（来自 JWT）
type Session struct {
	UserID string
	Name   string
}
