package domain

import "errors"

var (
	ErrValidation = errors.New("参数错误")
	ErrNotFound   = errors.New("资源不存在")
	ErrConflict   = errors.New("资源冲突")
)
