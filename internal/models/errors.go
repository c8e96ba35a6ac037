package models

import "errors"

var (
	// ErrJobNotFound 作业不存在错误
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidJobStatus 无效的作业状态错误
	ErrInvalidJobStatus = errors.New("invalid job status")
)
