package service

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeovahfialho/t212-digrin/internal/acquisition"
	"github.com/jeovahfialho/t212-digrin/internal/config"
	"github.com/jeovahfialho/t212-digrin/internal/domain"
	"github.com/jeovahfialho/t212-digrin/internal/notify"
	"github.com/jeovahfialho/t212-digrin/internal/report"
	"github.com/jeovahfialho/t212-digrin/internal/transform"
	"github.com/jeovahfialho/t212-digrin/pkg/logger"
	"github.com/jeovahfialho/t212-digrin/pkg/metrics"
)

type Acquirer interface {
	Acquire(ctx context.Context, r domain.DateRange) (*acquisition.Result, error)
}

type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

type Notifier interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) error
}

type RunHistory interface {
	StartRun(ctx context.Context, run domain.RunRecord) error
	FinishRun(ctx context.Context, run domain.RunRecord) error
}

type RowArchive interface {
	LoadRows(ctx context.Context, runID, month string, table *report.Table) (int64, error)
}

// RunResult describes a completed pipeline run.
type RunResult struct {
	RunID          string          `json:"run_id"`
	Month          string          `json:"month"`
	ReportID       domain.ReportID `json:"report_id"`
	RawKey         string          `json:"raw_key"`
	TransformedKey string          `json:"transformed_key"`
	URL            string          `json:"url"`
	RowsIn         int             `json:"rows_in"`
	RowsOut        int             `json:"rows_out"`
	Archived       int64           `json:"archived"`
}

// Pipeline runs acquire, store raw, transform, store transformed, presign
// and notify for one month. Runs are serialized.
type Pipeline struct {
	mu sync.Mutex

	acquirer    Acquirer
	store       ObjectStore
	notifier    Notifier
	history     RunHistory
	archive     RowArchive
	transformer *transform.Transformer
	codec       *report.Codec

	bucket            string
	rawPrefix         string
	transformedPrefix string
	presignTTL        time.Duration
	recipient         string
	subject           string

	now func() time.Time
}

type PipelineOption func(*Pipeline)

func WithHistory(history RunHistory) PipelineOption {
	return func(p *Pipeline) {
		p.history = history
	}
}

func WithArchive(archive RowArchive) PipelineOption {
	return func(p *Pipeline) {
		p.archive = archive
	}
}

func WithTransformer(t *transform.Transformer) PipelineOption {
	return func(p *Pipeline) {
		p.transformer = t
	}
}

func WithNow(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

func NewPipeline(cfg *config.Config, acquirer Acquirer, store ObjectStore, notifier Notifier, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		acquirer:          acquirer,
		store:             store,
		notifier:          notifier,
		transformer:       NewTransformer(cfg),
		codec:             report.NewCodec(),
		bucket:            cfg.BucketName,
		rawPrefix:         cfg.RawPrefix,
		transformedPrefix: cfg.TransformedPrefix,
		presignTTL:        cfg.PresignTTL,
		recipient:         cfg.Recipient(),
		subject:           cfg.EmailSubject,
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// NewTransformer builds the transformer with the configured ticker overrides.
func NewTransformer(cfg *config.Config) *transform.Transformer {
	rules := transform.DefaultRules().With(cfg.ExtraTickerMap, cfg.ExtraTickerBlacklist)
	return transform.NewTransformer(rules)
}

// ObjectKey is the storage key of a month's report under prefix.
func ObjectKey(prefix, month string) string {
	return path.Join(prefix, month+".csv")
}

func (p *Pipeline) Run(ctx context.Context, month string) (*RunResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, err := domain.MonthRange(month)
	if err != nil {
		return nil, err
	}

	run := domain.RunRecord{
		ID:        uuid.NewString(),
		Month:     r.Month(),
		Status:    domain.RunRunning,
		StartedAt: p.now().UTC(),
	}
	ctx = logger.ContextWithRunID(ctx, run.ID)
	log := logger.WithContext(ctx)

	log.Info("Iniciando execução", zap.String("month", run.Month), zap.String("range", r.String()))

	if p.history != nil {
		if err := p.history.StartRun(ctx, run); err != nil {
			return nil, err
		}
	}

	result, err := p.execute(ctx, r, &run)
	p.finish(ctx, &run, err)
	if err != nil {
		log.Error("Execução falhou", zap.Error(err))
		return nil, err
	}

	log.Info("Execução concluída",
		zap.Int64("report_id", int64(result.ReportID)),
		zap.Int("rows_in", result.RowsIn),
		zap.Int("rows_out", result.RowsOut),
	)
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, r domain.DateRange, run *domain.RunRecord) (*RunResult, error) {
	res := &RunResult{
		RunID:          run.ID,
		Month:          run.Month,
		RawKey:         ObjectKey(p.rawPrefix, run.Month),
		TransformedKey: ObjectKey(p.transformedPrefix, run.Month),
	}

	acquired, err := step("acquire", func() (*acquisition.Result, error) {
		return p.acquirer.Acquire(ctx, r)
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao obter relatório: %w", err)
	}
	res.ReportID = acquired.Entry.ReportID
	run.ReportID = res.ReportID

	if err := p.put(ctx, "store_raw", res.RawKey, acquired.Data); err != nil {
		return nil, err
	}
	run.RawKey = res.RawKey

	input, err := p.codec.DecodeBytes(acquired.Data)
	if err != nil {
		return nil, fmt.Errorf("erro ao decodificar relatório: %w", err)
	}
	output, err := step("transform", func() (*report.Table, error) {
		return p.transformer.Transform(input)
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao transformar relatório: %w", err)
	}
	res.RowsIn, res.RowsOut = len(input.Rows), len(output.Rows)
	run.RowsIn, run.RowsOut = res.RowsIn, res.RowsOut
	metrics.RecordRows(res.RowsIn, res.RowsOut)

	encoded, err := p.codec.EncodeBytes(output)
	if err != nil {
		return nil, fmt.Errorf("erro ao codificar relatório: %w", err)
	}
	if err := p.put(ctx, "store_transformed", res.TransformedKey, encoded); err != nil {
		return nil, err
	}
	run.TransformedKey = res.TransformedKey

	if p.archive != nil {
		n, err := step("archive", func() (int64, error) {
			return p.archive.LoadRows(ctx, run.ID, run.Month, output)
		})
		if err != nil {
			return nil, fmt.Errorf("erro ao arquivar linhas: %w", err)
		}
		res.Archived = n
	}

	url, err := step("presign", func() (string, error) {
		return p.store.PresignGet(ctx, p.bucket, res.TransformedKey, p.presignTTL)
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao gerar link: %w", err)
	}
	res.URL = url

	body, err := notify.ReadyBody(url)
	if err != nil {
		return nil, err
	}
	if err := p.notifier.Send(ctx, p.recipient, p.subject, body); err != nil {
		return nil, fmt.Errorf("erro ao notificar: %w", err)
	}

	return res, nil
}

func (p *Pipeline) put(ctx context.Context, name, key string, data []byte) error {
	_, err := step(name, func() (struct{}, error) {
		return struct{}{}, p.store.Put(ctx, p.bucket, key, data)
	})
	if err != nil {
		return fmt.Errorf("erro ao gravar %s: %w", key, err)
	}
	return nil
}

func (p *Pipeline) finish(ctx context.Context, run *domain.RunRecord, err error) {
	finished := p.now().UTC()
	run.FinishedAt = &finished
	run.Status = domain.RunSucceeded
	if err != nil {
		run.Status = domain.RunFailed
		run.Error = err.Error()
	}
	metrics.RecordPipelineRun(string(run.Status))

	if p.history == nil {
		return
	}
	if herr := p.history.FinishRun(context.WithoutCancel(ctx), *run); herr != nil {
		logger.WithContext(ctx).Error("Erro ao registrar fim da execução", zap.Error(herr))
	}
}

// Transform converts a raw report into the tracker format without touching
// the reporting service or storage.
func (p *Pipeline) Transform(data []byte) ([]byte, *RunResult, error) {
	return TransformBytes(p.codec, p.transformer, data)
}

func TransformBytes(codec *report.Codec, t *transform.Transformer, data []byte) ([]byte, *RunResult, error) {
	input, err := codec.DecodeBytes(data)
	if err != nil {
		return nil, nil, fmt.Errorf("erro ao decodificar relatório: %w", err)
	}
	output, err := t.Transform(input)
	if err != nil {
		return nil, nil, err
	}
	encoded, err := codec.EncodeBytes(output)
	if err != nil {
		return nil, nil, fmt.Errorf("erro ao codificar relatório: %w", err)
	}
	metrics.RecordRows(len(input.Rows), len(output.Rows))
	return encoded, &RunResult{RowsIn: len(input.Rows), RowsOut: len(output.Rows)}, nil
}

func step[T any](name string, fn func() (T, error)) (T, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PipelineStepDuration.WithLabelValues(name))
	return fn()
}

