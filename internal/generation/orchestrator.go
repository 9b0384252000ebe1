package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/providers/genai"
)

// Strategy selects which provider path a generation request takes.
type Strategy string

const (
	// StrategyPrimary is the single multimodal call to the primary provider.
	StrategyPrimary Strategy = "primary"
	// StrategyFallback is the describe-then-generate two-provider path.
	StrategyFallback Strategy = "fallback"
	// StrategyAuto tries the primary path once and falls back on any error.
	StrategyAuto Strategy = "auto"
)

// ParseStrategy maps a client-supplied strategy name to a Strategy. The
// empty string is valid and means "use the configured default".
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case StrategyPrimary:
		return StrategyPrimary, nil
	case StrategyFallback:
		return StrategyFallback, nil
	case StrategyAuto:
		return StrategyAuto, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// Limiter counts a request against the caller's daily quota and returns the
// post-increment count.
type Limiter interface {
	Hit(ctx context.Context, userID string) (int64, error)
}

// SketchGenerator is the primary multimodal image capability.
type SketchGenerator interface {
	GenerateImage(ctx context.Context, prompt string, images []genai.InlineImage, cfg genai.ImageConfig) ([]byte, error)
}

// Describer turns an input image into a textual description.
type Describer interface {
	Describe(ctx context.Context, instruction string, img genai.InlineImage) (string, error)
}

// FallbackGenerator renders an image from text alone.
type FallbackGenerator interface {
	Generate(ctx context.Context, prompt, size, quality string) ([]byte, error)
}

// SavePublisher hands a finished image to the asynchronous persistence
// pipeline and returns the generation id it minted for it.
type SavePublisher interface {
	PublishSaveGeneration(ctx context.Context, userID, workflowID, materialID string, image []byte) (string, error)
}

// Options wires an Orchestrator.
type Options struct {
	Limiter   Limiter
	Primary   SketchGenerator
	Describer Describer
	Fallback  FallbackGenerator
	Publisher SavePublisher
	Logger    zerolog.Logger

	DailyLimit      int
	AspectRatio     string
	Resolution      string
	FallbackSize    string
	FallbackQuality string
	DefaultStrategy Strategy
}

// Orchestrator runs the full request pipeline: quota check, provider
// call(s), fire-and-forget persistence publish.
type Orchestrator struct {
	limiter   Limiter
	primary   SketchGenerator
	describer Describer
	fallback  FallbackGenerator
	publisher SavePublisher
	logger    zerolog.Logger

	dailyLimit      int
	aspectRatio     string
	resolution      string
	fallbackSize    string
	fallbackQuality string
	defaultStrategy Strategy
}

func New(opts Options) *Orchestrator {
	strategy := opts.DefaultStrategy
	if strategy == "" {
		strategy = StrategyPrimary
	}
	return &Orchestrator{
		limiter:         opts.Limiter,
		primary:         opts.Primary,
		describer:       opts.Describer,
		fallback:        opts.Fallback,
		publisher:       opts.Publisher,
		logger:          opts.Logger,
		dailyLimit:      opts.DailyLimit,
		aspectRatio:     opts.AspectRatio,
		resolution:      opts.Resolution,
		fallbackSize:    opts.FallbackSize,
		fallbackQuality: opts.FallbackQuality,
		defaultStrategy: strategy,
	}
}

// DefaultStrategy reports the strategy used when the request names none.
func (o *Orchestrator) DefaultStrategy() Strategy {
	return o.defaultStrategy
}

// Generate runs one sketch-to-image request end to end. The returned error
// is domain.ErrQuotaExceeded when the daily limit is reached before any
// provider call, domain.ErrGenerationEmpty when the primary provider
// answers without an image, and wraps domain.ErrGenerationFailed for every
// other provider failure. The quota hit is never refunded.
func (o *Orchestrator) Generate(ctx context.Context, req domain.GenerationRequest, strategy Strategy) (domain.GenerationResult, error) {
	if strategy == "" {
		strategy = o.defaultStrategy
	}

	count, err := o.limiter.Hit(ctx, req.UserID)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("rate limit check: %w", err)
	}
	if o.dailyLimit > 0 && count > int64(o.dailyLimit) {
		return domain.GenerationResult{}, domain.ErrQuotaExceeded
	}

	var result domain.GenerationResult
	switch strategy {
	case StrategyFallback:
		result, err = o.runFallback(ctx, req)
	case StrategyAuto:
		result, err = o.runPrimary(ctx, req)
		if err != nil {
			o.logger.Warn().Err(err).
				Str("workflow_id", req.WorkflowID).
				Msg("generation: primary path failed, falling back")
			result, err = o.runFallback(ctx, req)
		}
	default:
		result, err = o.runPrimary(ctx, req)
	}
	if err != nil {
		return domain.GenerationResult{}, err
	}

	generationID, pubErr := o.publisher.PublishSaveGeneration(ctx, req.UserID, req.WorkflowID, req.MaterialID, result.ImageBytes)
	if pubErr != nil {
		o.logger.Warn().Err(pubErr).
			Str("generation_id", generationID).
			Str("workflow_id", req.WorkflowID).
			Msg("generation: persistence publish failed, image still returned")
	} else {
		o.logger.Debug().
			Str("generation_id", generationID).
			Str("workflow_id", req.WorkflowID).
			Bool("used_fallback", result.UsedFallback).
			Msg("generation: persistence event published")
	}

	return result, nil
}

func (o *Orchestrator) runPrimary(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	images := make([]genai.InlineImage, 0, 2)
	images = append(images, genai.InlineImage{MIME: req.SketchMIME, Data: req.SketchBytes})
	materialID := ""
	if len(req.MaterialBytes) > 0 {
		images = append(images, genai.InlineImage{MIME: req.MaterialMIME, Data: req.MaterialBytes})
		materialID = req.MaterialID
	}

	data, err := o.primary.GenerateImage(ctx, PrimaryPrompt(materialID), images, genai.ImageConfig{
		AspectRatio: o.aspectRatio,
		ImageSize:   o.resolution,
	})
	if err != nil {
		if errors.Is(err, domain.ErrGenerationEmpty) {
			return domain.GenerationResult{}, err
		}
		return domain.GenerationResult{}, fmt.Errorf("%w: primary: %v", domain.ErrGenerationFailed, err)
	}
	return domain.GenerationResult{ImageBytes: data}, nil
}

func (o *Orchestrator) runFallback(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	description, err := o.describer.Describe(ctx, DescribeInstruction, genai.InlineImage{
		MIME: req.SketchMIME,
		Data: req.SketchBytes,
	})
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("%w: describe: %v", domain.ErrGenerationFailed, err)
	}

	data, err := o.fallback.Generate(ctx, ComposedPrompt(description, req.MaterialID), o.fallbackSize, o.fallbackQuality)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("%w: fallback: %v", domain.ErrGenerationFailed, err)
	}
	return domain.GenerationResult{ImageBytes: data, UsedFallback: true}, nil
}
