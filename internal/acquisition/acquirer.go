package acquisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeovahfialho/t212-digrin/internal/domain"
	"github.com/jeovahfialho/t212-digrin/pkg/metrics"
)

var (
	ErrAcquisitionTimedOut = errors.New("aquisição do relatório esgotou o prazo")
	ErrReportFailed        = errors.New("serviço não conseguiu gerar o relatório")

	errStalePending = errors.New("relatório pendente não consta na listagem")
)

// ReportService is the asynchronous, rate-limited reporting API. Over-limit
// calls return a zero id or an empty list with a nil error.
type ReportService interface {
	CreateReport(ctx context.Context, r domain.DateRange) (domain.ReportID, error)
	ListReports(ctx context.Context) ([]domain.ReportStatusEntry, error)
	Download(ctx context.Context, entry domain.ReportStatusEntry) ([]byte, error)
}

// PendingStore remembers the report requested for a month so an interrupted
// run can resume polling instead of requesting again.
type PendingStore interface {
	PendingReport(ctx context.Context, month string) (domain.ReportID, bool, error)
	SavePendingReport(ctx context.Context, month string, id domain.ReportID) error
	ClearPendingReport(ctx context.Context, month string) error
}

type Config struct {
	CreateRetryInterval time.Duration // wait after a rejected create (default: 10s)
	GenerationWait      time.Duration // wait between create and first list (default: 10s)
	PollInterval        time.Duration // wait after an empty or unfinished list (default: 10s)
	CreateEvery         time.Duration // service limit for create (default: 30s)
	ListEvery           time.Duration // service limit for list (default: 1m)
	MaxCreateAttempts   int           // per request, 0 = unbounded (default: 60)
	MaxPollAttempts     int           // per request, 0 = unbounded (default: 120)
	MaxRequests         int           // reports requested after service failures (default: 3)
	Timeout             time.Duration // whole acquisition, 0 = none (default: 2h)
}

func DefaultConfig() Config {
	return Config{
		CreateRetryInterval: 10 * time.Second,
		GenerationWait:      10 * time.Second,
		PollInterval:        10 * time.Second,
		CreateEvery:         30 * time.Second,
		ListEvery:           time.Minute,
		MaxCreateAttempts:   60,
		MaxPollAttempts:     120,
		MaxRequests:         3,
		Timeout:             2 * time.Hour,
	}
}

// Result is a finished acquisition and the calls it took.
type Result struct {
	Entry          domain.ReportStatusEntry
	Data           []byte
	Requests       int
	CreateAttempts int
	ListCalls      int
	EmptyLists     int
	Resumed        bool
}

// Acquirer drives one report through request, generation wait, polling and
// download. It is not safe for concurrent use.
type Acquirer struct {
	cfg     Config
	service ReportService
	pending PendingStore
	logger  *zap.Logger
	clock   Clock

	create *gate
	list   *gate

	deadline time.Time
}

type Option func(*Acquirer)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Acquirer) {
		a.logger = logger
	}
}

func WithClock(clock Clock) Option {
	return func(a *Acquirer) {
		a.clock = clock
	}
}

func WithPendingStore(store PendingStore) Option {
	return func(a *Acquirer) {
		a.pending = store
	}
}

func New(cfg Config, service ReportService, opts ...Option) *Acquirer {
	a := &Acquirer{
		cfg:     cfg,
		service: service,
		logger:  zap.NewNop(),
		clock:   realClock{},
		create:  newGate("create", cfg.CreateEvery),
		list:    newGate("list", cfg.ListEvery),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Acquire returns the finished report for r. It either returns the complete
// bytes or an error, never a partial report.
func (a *Acquirer) Acquire(ctx context.Context, r domain.DateRange) (*Result, error) {
	start := a.clock.Now()
	a.deadline = time.Time{}
	if a.cfg.Timeout > 0 {
		a.deadline = start.Add(a.cfg.Timeout)
	}

	log := a.logger.With(zap.String("month", r.Month()))
	res := &Result{}

	id, resumed := a.resume(ctx, r.Month())
	res.Resumed = resumed

	for {
		if !resumed {
			if a.cfg.MaxRequests > 0 && res.Requests >= a.cfg.MaxRequests {
				return nil, fmt.Errorf("%w: %d pedidos falharam", ErrReportFailed, res.Requests)
			}

			var err error
			id, err = a.request(ctx, r, res)
			if err != nil {
				return nil, err
			}
			res.Requests++
			a.remember(ctx, r.Month(), id)

			log.Info("relatório solicitado, aguardando geração",
				zap.Int64("report_id", int64(id)),
				zap.Duration("wait", a.cfg.GenerationWait))

			if err := a.sleep(ctx, a.cfg.GenerationWait); err != nil {
				return nil, err
			}
		}
		fromStore := resumed
		resumed = false

		entry, err := a.poll(ctx, id, fromStore, res)
		if errors.Is(err, errStalePending) {
			log.Warn("relatório pendente descartado, solicitando novamente",
				zap.Int64("report_id", int64(id)))
			a.forget(ctx, r.Month())
			res.Resumed = false
			continue
		}
		if errors.Is(err, ErrReportFailed) {
			log.Warn("serviço falhou ao gerar relatório, solicitando novamente",
				zap.Int64("report_id", int64(id)))
			a.forget(ctx, r.Month())
			continue
		}
		if err != nil {
			// A stored id that never finished must not be resumed again.
			if fromStore {
				a.forget(ctx, r.Month())
			}
			return nil, err
		}

		data, err := a.service.Download(ctx, entry)
		if err != nil {
			return nil, err
		}
		a.forget(ctx, r.Month())

		res.Entry = entry
		res.Data = data
		metrics.AcquisitionDuration.Observe(a.clock.Now().Sub(start).Seconds())

		log.Info("relatório adquirido",
			zap.Int64("report_id", int64(id)),
			zap.Int("bytes", len(data)),
			zap.Int("list_calls", res.ListCalls),
			zap.Int("empty_lists", res.EmptyLists))

		return res, nil
	}
}

func (a *Acquirer) request(ctx context.Context, r domain.DateRange, res *Result) (domain.ReportID, error) {
	var id domain.ReportID

	policy := Policy{Interval: a.cfg.CreateRetryInterval, MaxAttempts: a.cfg.MaxCreateAttempts}
	err := a.retry(ctx, policy, a.create, func(n int) (bool, error) {
		res.CreateAttempts++

		got, err := a.service.CreateReport(ctx, r)
		if err != nil {
			return false, err
		}
		if !got.Valid() {
			a.logger.Debug("pedido de relatório ainda não aceito", zap.Int("attempt", n))
			return false, nil
		}

		id = got
		return true, nil
	})

	return id, err
}

// poll lists reports until id finishes. A resumed id missing from a
// non-empty listing was requested by an earlier run and has expired, so it
// ends polling with errStalePending.
func (a *Acquirer) poll(ctx context.Context, id domain.ReportID, resumed bool, res *Result) (domain.ReportStatusEntry, error) {
	var entry domain.ReportStatusEntry

	policy := Policy{Interval: a.cfg.PollInterval, MaxAttempts: a.cfg.MaxPollAttempts}
	err := a.retry(ctx, policy, a.list, func(n int) (bool, error) {
		res.ListCalls++

		entries, err := a.service.ListReports(ctx)
		if err != nil {
			return false, err
		}
		if len(entries) == 0 {
			res.EmptyLists++
			a.logger.Debug("listagem vazia, limite atingido", zap.Int("attempt", n))
			return false, nil
		}

		found, ok := domain.FindLatest(entries, id)
		switch {
		case !ok && resumed:
			return false, fmt.Errorf("%w: relatório %d", errStalePending, id)
		case !ok:
			a.logger.Info("relatório ainda não listado", zap.Int64("report_id", int64(id)))
			return false, nil
		case found.Status.IsFinished():
			entry = found
			return true, nil
		case found.Status.IsFailed():
			return false, fmt.Errorf("%w: relatório %d com status %s", ErrReportFailed, id, found.Status)
		default:
			a.logger.Info("relatório ainda não está pronto",
				zap.Int64("report_id", int64(id)),
				zap.String("status", string(found.Status)))
			return false, nil
		}
	})

	return entry, err
}

func (a *Acquirer) resume(ctx context.Context, month string) (domain.ReportID, bool) {
	if a.pending == nil {
		return 0, false
	}

	id, ok, err := a.pending.PendingReport(ctx, month)
	if err != nil {
		a.logger.Warn("erro ao consultar relatório pendente", zap.Error(err))
		return 0, false
	}
	if !ok || !id.Valid() {
		return 0, false
	}

	a.logger.Info("retomando relatório pendente", zap.Int64("report_id", int64(id)))
	return id, true
}

func (a *Acquirer) remember(ctx context.Context, month string, id domain.ReportID) {
	if a.pending == nil {
		return
	}
	if err := a.pending.SavePendingReport(ctx, month, id); err != nil {
		a.logger.Warn("erro ao salvar relatório pendente", zap.Error(err))
	}
}

func (a *Acquirer) forget(ctx context.Context, month string) {
	if a.pending == nil {
		return
	}
	if err := a.pending.ClearPendingReport(ctx, month); err != nil {
		a.logger.Warn("erro ao limpar relatório pendente", zap.Error(err))
	}
}
