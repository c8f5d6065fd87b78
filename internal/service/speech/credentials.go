package speech

import (
	"fmt"
	"strings"

	speechmodel "github.com/zhouzirui/voice-agent/internal/model/speech"
)

// resolveCredentials 返回火山引擎 AppID 与 AccessToken，AccessToken 缺失时回退到 APIKey。
func resolveCredentials(cfg *speechmodel.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", fmt.Errorf("火山引擎语音配置未初始化")
	}

	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		token = strings.TrimSpace(cfg.APIKey)
	}
	if appID == "" || token == "" {
		return "", "", fmt.Errorf("%w: 火山引擎语音配置缺少 AppID 或 AccessToken", ErrNotConfigured)
	}
	return appID, token, nil
}
