package repository

import (
	"context"
	"fmt"
	"kkx-toolkit-go/internal/model"
)

// LanguageKeyPrefix 是显示语言偏好的固定键前缀，后接设备 ID。
const LanguageKeyPrefix = "kkx_pref_lang:"

// PreferenceRepository 保存每台设备的显示语言偏好。
type PreferenceRepository interface {
	GetLanguage(ctx context.Context, deviceID string) (model.Language, bool, error)
	SetLanguage(ctx context.Context, deviceID string, lang model.Language) error
}

type kvPreferenceRepository struct {
	kv KVStore
}

// NewPreferenceRepository 创建一个新的 PreferenceRepository 实例。
func NewPreferenceRepository(kv KVStore) PreferenceRepository {
	return &kvPreferenceRepository{kv: kv}
}

// GetLanguage 只认可受支持的语言，其余值视为没有偏好。
func (r *kvPreferenceRepository) GetLanguage(ctx context.Context, deviceID string) (model.Language, bool, error) {
	raw, ok, err := r.kv.Get(ctx, LanguageKeyPrefix+deviceID)
	if err != nil {
		return "", false, fmt.Errorf("failed to get language preference: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	lang, err := model.ParseLanguage(raw)
	if err != nil {
		return "", false, nil
	}
	return lang, true, nil
}

func (r *kvPreferenceRepository) SetLanguage(ctx context.Context, deviceID string, lang model.Language) error {
	if err := r.kv.Set(ctx, LanguageKeyPrefix+deviceID, string(lang)); err != nil {
		return fmt.Errorf("failed to set language preference: %w", err)
	}
	return nil
}
