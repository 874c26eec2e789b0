// Package store 基于 gorm 的持久层：会话、投票记录与计票
package store

import (
	"emperror.dev/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound 查询的记录不存在
var ErrNotFound = errors.Sentinel("record not found")

// ErrStatusChanged 条件更新时会话状态已被其他请求修改
var ErrStatusChanged = errors.Sentinel("session status changed")

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// validID 非法 UUID 直接视为不存在，避免 postgres 的 uuid 列报类型错误
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
