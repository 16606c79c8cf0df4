package public

import "github.com/invite-center/internal/provider"

// Handler 玩家侧与游戏服回调接口处理器
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
