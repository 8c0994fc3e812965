// Package registration assembles the orchestrator from configuration:
// which provider adapters exist, the auto-mode fallback order, and the
// optional audio and image paths.
package registration

import (
	"log/slog"

	"github.com/tjfontaine/ledgerlens/internal/config"
	"github.com/tjfontaine/ledgerlens/internal/domain"
	"github.com/tjfontaine/ledgerlens/internal/orchestrator"
	"github.com/tjfontaine/ledgerlens/internal/provider"
	"github.com/tjfontaine/ledgerlens/internal/provider/groq"
	"github.com/tjfontaine/ledgerlens/internal/provider/manual"
	"github.com/tjfontaine/ledgerlens/internal/provider/openrouter"
	"github.com/tjfontaine/ledgerlens/internal/storage"
	"github.com/tjfontaine/ledgerlens/internal/stt/elevenlabs"
	"github.com/tjfontaine/ledgerlens/internal/usage"
)

// BuildOrchestrator wires providers, transcription, and usage recording
// from configuration. A provider with no credentials is disabled rather
// than failing startup; the manual parser is always available and anchors
// the auto chain.
func BuildOrchestrator(cfg *config.Config, store storage.Store, logger *slog.Logger) (*orchestrator.Orchestrator, error) {
	manualProvider, err := buildManual(cfg.Providers.Manual, logger)
	if err != nil {
		return nil, err
	}

	byMode := map[domain.Mode]provider.Extractor{
		domain.ModeManual: manualProvider,
	}

	// Auto-mode priority: cheaper Groq-hosted model first, then the larger
	// model behind OpenRouter, exhausting to the deterministic parser.
	var chain []provider.Extractor
	var vision provider.ImageExtractor

	if cfg.Providers.Groq.APIKey != "" {
		groqProvider, err := buildGroq(cfg.Providers.Groq, logger)
		if err != nil {
			return nil, err
		}
		byMode[domain.ModeGemma3] = groqProvider
		chain = append(chain, groqProvider)
		vision = groqProvider
	} else {
		logger.Warn("groq provider disabled: no API key configured")
	}

	if cfg.Providers.OpenRouter.APIKey != "" {
		openRouterProvider, err := buildOpenRouter(cfg.Providers.OpenRouter, logger)
		if err != nil {
			return nil, err
		}
		byMode[domain.ModeOpenRouter] = openRouterProvider
		chain = append(chain, openRouterProvider)
	} else {
		logger.Warn("openrouter provider disabled: no API key configured")
	}

	chain = append(chain, manualProvider)

	var stt orchestrator.Transcriber
	if keys := cfg.ElevenLabs.Keys(); len(keys) > 0 {
		var opts []elevenlabs.Option
		if cfg.ElevenLabs.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(cfg.ElevenLabs.BaseURL))
		}
		client, err := elevenlabs.New(keys, logger, opts...)
		if err != nil {
			return nil, err
		}
		stt = client
	} else {
		logger.Warn("audio processing disabled: no ElevenLabs keys configured")
	}

	recorder := usage.NewRecorder(store, logger)
	return orchestrator.New(chain, byMode, vision, stt, recorder, logger), nil
}

func buildGroq(cfg config.GroqConfig, logger *slog.Logger) (*groq.Provider, error) {
	var opts []groq.Option
	if cfg.BaseURL != "" {
		opts = append(opts, groq.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TextModel != "" {
		opts = append(opts, groq.WithTextModel(cfg.TextModel))
	}
	if cfg.VisionModel != "" {
		opts = append(opts, groq.WithVisionModel(cfg.VisionModel))
	}
	return groq.New(cfg.APIKey, logger, opts...)
}

func buildOpenRouter(cfg config.OpenRouterConfig, logger *slog.Logger) (*openrouter.Provider, error) {
	var opts []openrouter.Option
	if cfg.BaseURL != "" {
		opts = append(opts, openrouter.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openrouter.WithModel(cfg.Model))
	}
	return openrouter.New(cfg.APIKey, logger, opts...)
}

func buildManual(cfg config.ManualConfig, logger *slog.Logger) (*manual.Provider, error) {
	return manual.New(cfg.URL, logger)
}
