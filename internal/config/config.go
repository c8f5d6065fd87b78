package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/voice-agent/internal/model/speech"
)

// DefaultSystemPrompt 是语音助手的默认人设。
const DefaultSystemPrompt = "You are a friendly and empathetic voice assistant. Speak naturally and conversationally, like a trusted friend. Keep responses concise but warm and engaging. Remember to maintain a friendly vibe in all interactions. Use a casual, approachable tone while staying helpful and informative. When appropriate, show personality and humor, but always prioritize being helpful and clear."

// AI provider names accepted by AI_PROVIDER.
const (
	AIProviderOpenAI = "openai"
	AIProviderArk    = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Speech speech.SpeechConfig
	Agent  AgentConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speechCfg, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	agent, err := loadAgentConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Speech: speechCfg, Agent: agent}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr      string
	StaticDir string
}

// loadServerConfig 解析服务器监听地址。SERVER_HOST/SERVER_PORT 优先，其次 PORT。
func loadServerConfig() (ServerConfig, error) {
	staticDir := getEnvOrDefault("STATIC_DIR", "static")

	host := getEnvOrDefault("SERVER_HOST", "127.0.0.1")
	if port := strings.TrimSpace(os.Getenv("SERVER_PORT")); port != "" {
		if err := validatePort("SERVER_PORT", port); err != nil {
			return ServerConfig{}, err
		}
		return ServerConfig{Addr: net.JoinHostPort(host, port), StaticDir: staticDir}, nil
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return ServerConfig{Addr: net.JoinHostPort(host, "3000"), StaticDir: staticDir}, nil
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, StaticDir: staticDir}, nil
	}

	if err := validatePort("PORT", port); err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{Addr: ":" + port, StaticDir: staticDir}, nil
}

func validatePort(key, raw string) error {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid %s value: %q", key, raw)
	}
	return nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string

	// OpenAI
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Ark
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string

	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// ArkEnabled 表示是否提供了 Ark 所需的密钥。
func (c AIConfig) ArkEnabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// Enabled 表示当前选中的 provider 是否可用。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case AIProviderArk:
		return c.ArkEnabled()
	case AIProviderOpenAI:
		return c.OpenAIAPIKey != ""
	default:
		return false
	}
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.ArkEnabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		val := 0.7
		temperature = &val
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL: getEnvOrDefault("OPENAI_BASE_URL", ""),
		OpenAIModel:   getEnvOrDefault("OPENAI_CHAT_MODEL", "gpt-4.1"),
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:         strings.TrimSpace(os.Getenv("Model")),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:   temperature,
		TopP:          topP,
		MaxTokens:     maxTokens,
	}

	provider := strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER")))
	switch provider {
	case "":
		// 未显式指定时：有 OpenAI key 用 OpenAI，否则尝试 Ark。
		if cfg.OpenAIAPIKey == "" && cfg.ArkEnabled() {
			provider = AIProviderArk
		} else {
			provider = AIProviderOpenAI
		}
	case AIProviderOpenAI, AIProviderArk:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}
	cfg.Provider = provider

	return cfg, nil
}

func loadSpeechConfig() (speech.SpeechConfig, error) {
	// 解析超时设置
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return speech.SpeechConfig{}, err
	}
	timeoutSeconds := 30 // 默认30秒
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	// 解析TTS速度和音量
	speed, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED")
	if err != nil {
		return speech.SpeechConfig{}, err
	}
	ttsSpeed := float32(1.0)
	if speed != nil {
		ttsSpeed = *speed
	}

	volume, err := parseOptionalFloat32Env("SPEECH_TTS_VOLUME")
	if err != nil {
		return speech.SpeechConfig{}, err
	}
	ttsVolume := float32(1.0)
	if volume != nil {
		ttsVolume = *volume
	}

	sampleRate, err := parseOptionalIntEnv("SPEECH_TTS_SAMPLE_RATE")
	if err != nil {
		return speech.SpeechConfig{}, err
	}
	ttsSampleRate := 24000
	if sampleRate != nil && *sampleRate > 0 {
		ttsSampleRate = *sampleRate
	}

	concurrent, err := parseBoolEnv("SPEECH_ASR_CONCURRENT", false)
	if err != nil {
		return speech.SpeechConfig{}, err
	}

	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	apiKey := strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	if accessToken == "" {
		accessToken = apiKey
	}

	cfg := speech.SpeechConfig{
		OpenAIAPIKey:   strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:  getEnvOrDefault("OPENAI_BASE_URL", ""),
		STTModel:       getEnvOrDefault("SPEECH_STT_MODEL", "whisper-1"),
		TTSModel:       getEnvOrDefault("SPEECH_TTS_MODEL", "gpt-4o-mini-tts"),
		AppID:          strings.TrimSpace(os.Getenv("SPEECH_APP_ID")),
		AccessToken:    accessToken,
		APIKey:         apiKey,
		Region:         getEnvOrDefault("SPEECH_REGION", "cn-beijing"),
		ConcurrentMode: concurrent,
		ASRLanguage:    getEnvOrDefault("SPEECH_ASR_LANGUAGE", ""),
		TTSVoice:       getEnvOrDefault("SPEECH_TTS_VOICE", ""),
		TTSSpeed:       ttsSpeed,
		TTSVolume:      ttsVolume,
		TTSLanguage:    getEnvOrDefault("SPEECH_TTS_LANGUAGE", ""),
		TTSSampleRate:  ttsSampleRate,
		Timeout:        timeoutSeconds,
	}

	provider := speech.Provider(strings.ToLower(strings.TrimSpace(os.Getenv("SPEECH_PROVIDER"))))
	switch provider {
	case "":
		if cfg.OpenAIAPIKey == "" && cfg.AppID != "" && cfg.AccessToken != "" {
			provider = speech.ProviderVolcengine
		} else {
			provider = speech.ProviderOpenAI
		}
	case speech.ProviderOpenAI, speech.ProviderVolcengine:
	default:
		return speech.SpeechConfig{}, fmt.Errorf("invalid SPEECH_PROVIDER value %q", provider)
	}
	cfg.Provider = provider

	if cfg.TTSVoice == "" && provider == speech.ProviderOpenAI {
		cfg.TTSVoice = "sage"
	}

	return cfg, nil
}

// AgentConfig 描述语音代理流水线配置。
type AgentConfig struct {
	SystemPrompt string
	// FFmpegPath 为空时不做格式转换，直接把上传的音频交给识别服务。
	FFmpegPath   string
	HistoryLimit int
}

func loadAgentConfig() (AgentConfig, error) {
	convert, err := parseBoolEnv("AGENT_CONVERT_AUDIO", true)
	if err != nil {
		return AgentConfig{}, err
	}

	limit := 10
	if override, err := parseOptionalIntEnv("AGENT_HISTORY_LIMIT"); err != nil {
		return AgentConfig{}, err
	} else if override != nil && *override > 0 {
		limit = *override
	}

	cfg := AgentConfig{
		SystemPrompt: getEnvOrDefault("AGENT_SYSTEM_PROMPT", DefaultSystemPrompt),
		HistoryLimit: limit,
	}
	if convert {
		cfg.FFmpegPath = getEnvOrDefault("FFMPEG_PATH", "ffmpeg")
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
