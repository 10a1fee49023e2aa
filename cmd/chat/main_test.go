package main

import (
	"context"
	"kkx-toolkit-go/internal/repository"
	"testing"
)

func TestLoadDeviceIDIsStable(t *testing.T) {
	kv := repository.NewMemoryKVStore()
	first, err := loadDeviceID(context.Background(), kv)
	if err != nil || first == "" {
		t.Fatalf("first id = %q, %v", first, err)
	}
	second, err := loadDeviceID(context.Background(), kv)
	if err != nil || second != first {
		t.Fatalf("second id = %q, want %q (%v)", second, first, err)
	}
}

func TestLocaleFromEnv(t *testing.T) {
	tests := []struct {
		name        string
		lcAll, lang string
		want        string
	}{
		{"posix locale", "", "ja_JP.UTF-8", "ja-JP"},
		{"lc_all wins", "zh_CN.UTF-8", "en_US.UTF-8", "zh-CN"},
		{"C locale skipped", "C", "en_GB", "en-GB"},
		{"unset", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LC_ALL", tt.lcAll)
			t.Setenv("LC_MESSAGES", "")
			t.Setenv("LANG", tt.lang)
			if got := localeFromEnv(); got != tt.want {
				t.Errorf("localeFromEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}
