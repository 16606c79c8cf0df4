package service

import "errors"

// 调用方错误，直接返回给前端展示
var (
	ErrInviteCodeInvalid    = errors.New("邀请码无效")
	ErrSelfInvite           = errors.New("不能邀请自己")
	ErrAlreadyInvited       = errors.New("已经使用过邀请码")
	ErrInviteUserInvalid    = errors.New("用户标识无效")
	ErrInviteConfigInvalid  = errors.New("邀请奖励配置无效")
	ErrInviteConfigNotFound = errors.New("邀请奖励配置版本不存在")
	ErrNotAuthorized        = errors.New("无权限执行该操作")
)

// 基础设施错误，需整体重试
var (
	ErrStoreUnavailable  = errors.New("存储不可用")
	ErrLedgerUnavailable = errors.New("金币账本不可用")
	ErrLockUnavailable   = errors.New("获取锁失败")
)

// IsInviteCallerError 判断是否调用方错误
func IsInviteCallerError(err error) bool {
	return errors.Is(err, ErrInviteCodeInvalid) ||
		errors.Is(err, ErrSelfInvite) ||
		errors.Is(err, ErrAlreadyInvited) ||
		errors.Is(err, ErrInviteUserInvalid) ||
		errors.Is(err, ErrInviteConfigInvalid) ||
		errors.Is(err, ErrInviteConfigNotFound)
}
