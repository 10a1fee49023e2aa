// Command chat 是聊天会话与资讯抓取的终端客户端，状态保存在本地 sqlite 文件中。
package main

import (
	"context"
	"flag"
	"fmt"
	"kkx-toolkit-go/internal/config"
	"kkx-toolkit-go/internal/repository"
	"kkx-toolkit-go/internal/service"
	"kkx-toolkit-go/internal/tui"
	"kkx-toolkit-go/pkg/llm"
	"kkx-toolkit-go/pkg/log"
	"kkx-toolkit-go/pkg/retry"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// deviceIDKey 保存本机的设备 ID，与服务端 cookie 的作用相同。
const deviceIDKey = "kkx_device_id"

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径，不存在时使用默认值")
	dbPath := flag.String("db", "", "sqlite 文件路径，默认取 storage.sqlite_path")
	flag.Parse()

	path := *configPath
	if _, err := os.Stat(path); err != nil {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 日志只写文件，避免打乱终端界面
	log.InitFileOnly(cfg.Log.Level, cfg.Log.OutputPath)
	defer log.Sync()

	if *dbPath == "" {
		*dbPath = cfg.Storage.SQLitePath
	}
	kv, err := repository.NewSQLiteKVStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer kv.Close()

	ctx := context.Background()
	deviceID, err := loadDeviceID(ctx, kv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "device id: %v\n", err)
		os.Exit(1)
	}

	llmClient := llm.NewClient(cfg.LLM,
		retry.WithRetries(cfg.Retry.Retries),
		retry.WithDelay(cfg.Retry.Delay()),
		retry.WithMaxDelay(cfg.Retry.MaxDelay()),
	)
	preferenceService := service.NewPreferenceService(repository.NewPreferenceRepository(kv))
	chatService := service.NewChatService(llmClient, kv, cfg.Chat)
	newsService := service.NewNewsService(llmClient, cfg.News)

	lang := preferenceService.ResolveLanguage(ctx, deviceID, localeFromEnv())
	session, err := chatService.NewSession(ctx, deviceID, lang)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start session: %v\n", err)
		os.Exit(1)
	}

	program := tea.NewProgram(tui.NewModel(session, newsService, preferenceService, deviceID))

	// 收到中断信号时退出界面
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}

// loadDeviceID 读取本机设备 ID，首次运行时生成并保存。
func loadDeviceID(ctx context.Context, kv repository.KVStore) (string, error) {
	id, ok, err := kv.Get(ctx, deviceIDKey)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := kv.Set(ctx, deviceIDKey, id); err != nil {
		return "", err
	}
	return id, nil
}

// localeFromEnv 把 LANG=ja_JP.UTF-8 这类 POSIX locale 转成 BCP 47 标签。
func localeFromEnv() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		return strings.ReplaceAll(v, "_", "-")
	}
	return ""
}
