package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/voice-agent/internal/audio"
	"github.com/zhouzirui/voice-agent/internal/config"
	"github.com/zhouzirui/voice-agent/internal/service/speech"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	mode := flag.String("mode", "", "测试模式: asr 或 tts")
	audioPath := flag.String("audio", "", "ASR 输入音频文件路径")
	text := flag.String("text", "", "TTS 输入文本")
	outputPath := flag.String("out", "", "TTS 输出 WAV 文件路径 (默认自动生成)")
	format := flag.String("format", "", "ASR 输入音频格式，默认取文件扩展名")
	language := flag.String("lang", "", "语言代码，默认使用配置中的语言")
	voice := flag.String("voice", "", "TTS 声音 ID，默认使用配置中的 TTSVoice")
	session := flag.String("session", "", "自定义 sessionID，留空则自动生成")
	convert := flag.Bool("convert", false, "ASR 前用 ffmpeg 转为 16kHz 单声道 WAV")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")

	flag.Parse()

	if *mode != "asr" && *mode != "tts" {
		flag.Usage()
		log.Fatal("请通过 -mode=asr 或 -mode=tts 指定测试模式")
	}

	sessionID := *session
	if sessionID == "" {
		sessionID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}

	speechCfg := cfg.Speech
	svc, err := speech.NewService(&speechCfg)
	if err != nil {
		log.Fatalf("语音服务不可用: %v", err)
	}
	log.Printf("使用语音 provider: %s", svc.ProviderName())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "asr":
		ffmpeg := ""
		if *convert {
			ffmpeg = cfg.Agent.FFmpegPath
			if ffmpeg == "" {
				ffmpeg = "ffmpeg"
			}
		}
		runASR(ctx, svc, sessionID, *audioPath, *format, *language, ffmpeg)
	case "tts":
		runTTS(ctx, svc, sessionID, *text, *voice, *language, *outputPath)
	}
}

func runASR(ctx context.Context, svc *speech.Service, sessionID, audioPath, format, language, ffmpeg string) {
	if audioPath == "" {
		log.Fatal("ASR 模式需要通过 -audio 指定音频文件路径")
	}

	data, err := os.ReadFile(audioPath)
	if err != nil {
		log.Fatalf("读取音频文件失败: %v", err)
	}

	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(audioPath)), ".")
		if format == "" {
			format = "wav"
		}
	}

	if ffmpeg != "" && !audio.IsWAV(data) {
		data, err = audio.NewConverter(ffmpeg).ToWAV(ctx, data)
		if err != nil {
			log.Fatalf("音频转换失败: %v", err)
		}
		format = "wav"
	}

	log.Printf("开始进行 ASR 测试: session=%s format=%s bytes=%d", sessionID, format, len(data))

	resp, err := svc.TranscribeBuffer(ctx, sessionID, data, format, language)
	if err != nil {
		log.Fatalf("ASR 调用失败: %v", err)
	}

	log.Printf("ASR 识别成功: text=%q confidence=%.2f duration=%dms", resp.Text, resp.Confidence, resp.Duration)
}

func runTTS(ctx context.Context, svc *speech.Service, sessionID, text, voice, language, outputPath string) {
	if strings.TrimSpace(text) == "" {
		log.Fatal("TTS 模式需要通过 -text 提供待合成文本")
	}

	if outputPath == "" {
		outputPath = fmt.Sprintf("tts-output-%d.wav", time.Now().Unix())
	}

	log.Printf("开始进行 TTS 测试: session=%s voice=%s", sessionID, voice)

	resp, err := svc.SynthesizeToBuffer(ctx, sessionID, text, voice, language)
	if err != nil {
		log.Fatalf("TTS 调用失败: %v", err)
	}

	if err := os.WriteFile(outputPath, resp.AudioData, 0o644); err != nil {
		log.Fatalf("写入音频文件失败: %v", err)
	}

	log.Printf("TTS 合成成功: 输出文件 %s, 时长=%dms, 格式=%s", outputPath, resp.Duration, resp.Format)
}
