package service

import (
	"context"
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/internal/repository"
	"kkx-toolkit-go/pkg/log"
)

// PreferenceService 管理每台设备的显示语言。
type PreferenceService interface {
	// ResolveLanguage 优先返回已保存的偏好，否则根据 Accept-Language 推断。
	ResolveLanguage(ctx context.Context, deviceID, acceptLanguage string) model.Language
	SetLanguage(ctx context.Context, deviceID string, lang model.Language) error
}

type preferenceService struct {
	repo repository.PreferenceRepository
}

// NewPreferenceService 创建一个新的 PreferenceService。
func NewPreferenceService(repo repository.PreferenceRepository) PreferenceService {
	return &preferenceService{repo: repo}
}

func (s *preferenceService) ResolveLanguage(ctx context.Context, deviceID, acceptLanguage string) model.Language {
	lang, ok, err := s.repo.GetLanguage(ctx, deviceID)
	if err != nil {
		log.Warnf("读取语言偏好失败，改用浏览器语言: %v", err)
	}
	if ok {
		return lang
	}
	return model.DetectLanguage(acceptLanguage)
}

func (s *preferenceService) SetLanguage(ctx context.Context, deviceID string, lang model.Language) error {
	return s.repo.SetLanguage(ctx, deviceID, lang)
}
