package service

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = repository.ErrNotFound
	// ErrOperatorRequired 工单未指定操作工
	ErrOperatorRequired = entity.ErrOperatorRequired
	// ErrAccessDenied 当前用户无权执行该动作
	ErrAccessDenied = errors.New("access denied")
	// ErrExpectedSingleton 动作要求恰好一条记录
	ErrExpectedSingleton = errors.New("expected singleton")
	// ErrNoRecords 未选择任何记录
	ErrNoRecords = errors.New("no records selected")
	// ErrInvalidState 当前状态不允许该操作
	ErrInvalidState = errors.New("invalid state")
	// ErrLineLocked 移动已完成，明细不可修改
	ErrLineLocked = errors.New("move line is locked")
	// ErrStorageNotConfigured 未配置对象存储
	ErrStorageNotConfigured = errors.New("storage not configured")
)

// ensureOne 单记录动作的前置检查
func ensureOne(ids []string) (string, error) {
	if len(ids) != 1 {
		return "", fmt.Errorf("%w: expected one record, got %d", ErrExpectedSingleton, len(ids))
	}
	return ids[0], nil
}

func ensureAny(ids []string) error {
	if len(ids) == 0 {
		return ErrNoRecords
	}
	return nil
}
