package speech

// Provider 标识语音能力的实现方
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderVolcengine Provider = "volcengine"
)

// SpeechConfig 语音服务配置
type SpeechConfig struct {
	Provider Provider `json:"provider"`

	// OpenAI 配置
	OpenAIAPIKey  string `json:"-"`
	OpenAIBaseURL string `json:"openaiBaseUrl,omitempty"`
	STTModel      string `json:"sttModel"`
	TTSModel      string `json:"ttsModel"`

	// Volcengine 配置
	AppID          string `json:"appId"`            // 火山引擎 APP ID
	AccessToken    string `json:"accessToken"`      // 火山引擎 Access Token
	APIKey         string `json:"apiKey,omitempty"` // 兼容旧配置的 API Key
	Region         string `json:"region"`
	ConcurrentMode bool   `json:"concurrentMode"` // ASR并发模式（false为小时版）

	// ASR 配置
	ASRLanguage string `json:"asrLanguage"`

	// TTS 配置
	TTSVoice      string  `json:"ttsVoice"`
	TTSSpeed      float32 `json:"ttsSpeed"`
	TTSVolume     float32 `json:"ttsVolume"`
	TTSLanguage   string  `json:"ttsLanguage"`
	TTSSampleRate int     `json:"ttsSampleRate"`

	// 通用配置
	Timeout int `json:"timeout"` // seconds
}
