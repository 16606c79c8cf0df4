package admin

import "github.com/invite-center/internal/provider"

// Handler 后台管理接口处理器入口
// 说明：鉴权与权限校验由路由中间件完成，处理器只读取上下文中的管理员信息。
type Handler struct {
	*provider.Container
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
