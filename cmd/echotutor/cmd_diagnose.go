package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/echotutor/tutor-service/internal/config"
	"github.com/echotutor/tutor-service/internal/dashscope"
)

// diagnosis is one line of the diagnose report
type diagnosis struct {
	ok     bool
	label  string
	detail string
}

func newDiagnoseCmd() *cobra.Command {
	var ping bool

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check configuration and provider connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			results := diagnoseConfig(cfg, fileExists(".env"))
			if ping {
				results = append(results, pingChat(cmd.Context(), cfg))
			}

			failed := printDiagnoses(cmd.OutOrStdout(), results)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&ping, "ping", false, "send a short chat request to the provider")
	return cmd
}

// diagnoseConfig inspects the loaded configuration without network access
func diagnoseConfig(cfg *config.Config, envFile bool) []diagnosis {
	var out []diagnosis

	if envFile {
		out = append(out, diagnosis{true, ".env file", "found"})
	} else {
		out = append(out, diagnosis{true, ".env file", "not found, using process environment"})
	}

	key := cfg.DashScopeAPIKey
	switch {
	case key == "":
		out = append(out, diagnosis{false, "DashScope API key", "not set (DASHSCOPE_API_KEY or MODELSCOPE_API_KEY)"})
	case strings.HasPrefix(key, "ms-"):
		out = append(out, diagnosis{false, "DashScope API key", "looks like a ModelScope token (ms-...), DashScope keys start with sk-"})
	case strings.HasPrefix(key, "sk-"):
		out = append(out, diagnosis{true, "DashScope API key", maskKey(key) + keySource()})
	default:
		out = append(out, diagnosis{true, "DashScope API key", maskKey(key) + " (unrecognized prefix)"})
	}

	if cfg.DeepgramAPIKey != "" {
		out = append(out, diagnosis{true, "Deepgram API key", maskKey(cfg.DeepgramAPIKey)})
	} else {
		out = append(out, diagnosis{true, "Deepgram API key", "not set, practice transcription disabled"})
	}

	for _, dir := range []struct{ label, path string }{
		{"upload dir", cfg.UploadDir},
		{"audio dir", cfg.AudioDir},
	} {
		if err := os.MkdirAll(dir.path, 0o755); err != nil {
			out = append(out, diagnosis{false, dir.label, err.Error()})
			continue
		}
		if err := checkWritable(dir.path); err != nil {
			out = append(out, diagnosis{false, dir.label, err.Error()})
			continue
		}
		out = append(out, diagnosis{true, dir.label, dir.path})
	}

	out = append(out, diagnosis{true, "models", fmt.Sprintf("chat=%s ocr=%s tts=%s/%s", cfg.ChatModel, cfg.OCRModel, cfg.TTSModel, cfg.TTSVoice)})
	return out
}

// keySource names the legacy variable when it supplied the key
func keySource() string {
	if config.GetEnv("DASHSCOPE_API_KEY", "") == "" && config.GetEnv("MODELSCOPE_API_KEY", "") != "" {
		return " (from MODELSCOPE_API_KEY)"
	}
	return ""
}

func pingChat(ctx context.Context, cfg *config.Config) diagnosis {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, config.Seconds(cfg.ChatTimeout))
	defer cancel()

	start := time.Now()
	res := dashscope.NewClient(cfg).Converse(ctx, []dashscope.Message{
		{Role: "user", Content: "Reply with the single word: ok"},
	})
	if res.Degraded {
		return diagnosis{false, "chat ping", fmt.Sprintf("failed: %v", res.Err)}
	}
	return diagnosis{true, "chat ping", fmt.Sprintf("%q in %s", truncate(res.Value, 40), time.Since(start).Round(time.Millisecond))}
}

func printDiagnoses(w io.Writer, results []diagnosis) int {
	failed := 0
	for _, d := range results {
		mark := "ok  "
		if !d.ok {
			mark = "FAIL"
			failed++
		}
		fmt.Fprintf(w, "[%s] %-18s %s\n", mark, d.label, d.detail)
	}
	return failed
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:5] + strings.Repeat("*", 4) + key[len(key)-3:]
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
