package model

import (
	"mime/multipart"
)

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// ValidateRequest 文档校验上传请求
type ValidateRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"` // 待校验文档
}

// ProgressRequest 进度查询请求
type ProgressRequest struct {
	Key string `uri:"key" binding:"required"` // 任务标识
}

// DownloadRequest 结果文件下载请求
type DownloadRequest struct {
	Filename string `uri:"filename" binding:"required"` // 结果文件名
}

// JobListRequest 任务列表请求
type JobListRequest struct {
	PaginationRequest
	Status   string `form:"status" json:"status" binding:"omitempty"`     // 任务状态过滤
	Filename string `form:"filename" json:"filename" binding:"omitempty"` // 文件名模糊过滤
}
