package extraction

import (
	"context"
	"log/slog"

	"github.com/Lllllllleong/knowledgeflow/internal/apperr"
)

// Orchestrator runs the configured strategies for a document in a fixed
// priority order until one produces a validated result. Strategy order is
// decided by classification alone; there is no runtime re-ranking.
type Orchestrator struct {
	parser    Strategy // structured document parser, nil when not deployed
	ocr       Strategy // nil when no OCR backend is configured
	vision    []Strategy
	pdfText   Strategy
	plainText Strategy

	configs         map[string]Config
	minResultLength int
	logger          *slog.Logger
	sleep           sleepFunc
}

// Options configures an Orchestrator. Any strategy slot may be nil; the
// orchestrator simply skips it when building the priority list. Configs
// overrides the per-strategy budget by strategy name.
type Options struct {
	Parser    Strategy
	OCR       Strategy
	Vision    []Strategy
	PDFText   Strategy
	PlainText Strategy

	Configs         map[string]Config
	MinResultLength int
	Logger          *slog.Logger
}

// NewOrchestrator resolves all strategy budgets once, at construction.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	minLength := opts.MinResultLength
	if minLength <= 0 {
		minLength = DefaultMinResultLength
	}
	return &Orchestrator{
		parser:          opts.Parser,
		ocr:             opts.OCR,
		vision:          opts.Vision,
		pdfText:         opts.PDFText,
		plainText:       opts.PlainText,
		configs:         opts.Configs,
		minResultLength: minLength,
		logger:          logger,
		sleep:           sleepContext,
	}
}

// strategiesFor builds the fixed priority list for a classified source.
// PDFs and images prefer the structured parser, then OCR, then (PDF only)
// the native text layer. Deployments without a structured parser use the
// vision providers in priority order instead.
func (o *Orchestrator) strategiesFor(src Source) ([]Strategy, error) {
	switch {
	case src.IsPlainText():
		return compact(o.plainText), nil
	case src.IsPDF():
		if o.parser != nil {
			return compact(o.parser, o.ocr, o.pdfText), nil
		}
		return append(compact(o.vision...), compact(o.pdfText)...), nil
	case src.IsImage():
		if o.parser != nil {
			return compact(o.parser, o.ocr), nil
		}
		return compact(o.vision...), nil
	default:
		return nil, apperr.Validationf("unsupported file type %q", src.MIMEType)
	}
}

// Run tries each strategy in order, applying its retry budget and per-attempt
// timeout, and returns the first validated result together with the name of
// the strategy that produced it. First success wins; partial results from
// different strategies are never merged.
func (o *Orchestrator) Run(ctx context.Context, src Source) (string, string, error) {
	strategies, err := o.strategiesFor(src)
	if err != nil {
		return "", "", err
	}
	if len(strategies) == 0 {
		return "", "", apperr.Validationf("no extraction strategy configured for file type %q", src.MIMEType)
	}

	logCtx := o.logger.With("filename", src.Filename, "mimeType", src.MIMEType)

	var lastName string
	var lastErr error
	for _, strategy := range strategies {
		cfg := o.configFor(strategy)
		stratLog := logCtx.With("strategy", strategy.Name())

		text, err := withRetry(ctx, cfg, stratLog, o.sleep, func(ctx context.Context) (string, error) {
			raw, err := strategy.Extract(ctx, src)
			if err != nil {
				return "", err
			}
			return Screen(raw, o.minResultLength)
		})
		if err == nil {
			stratLog.Info("Extraction succeeded.", "textLength", len(text))
			return text, strategy.Name(), nil
		}

		lastName, lastErr = strategy.Name(), err
		stratLog.Warn("Strategy exhausted. Falling back.", "error", err)
	}

	return "", "", &apperr.ExhaustedError{LastStrategy: lastName, LastErr: lastErr}
}

func (o *Orchestrator) configFor(s Strategy) Config {
	if cfg, ok := o.configs[s.Name()]; ok {
		return cfg
	}
	if s == o.pdfText || s == o.plainText {
		return DefaultLocalConfig()
	}
	return DefaultRemoteConfig()
}

func compact(strategies ...Strategy) []Strategy {
	out := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
