package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/jeovahfialho/t212-digrin/internal/domain"
	"github.com/jeovahfialho/t212-digrin/internal/report"
	"github.com/jeovahfialho/t212-digrin/internal/service"
	"github.com/jeovahfialho/t212-digrin/internal/transform"
	"github.com/jeovahfialho/t212-digrin/pkg/logger"
)

const version = "1.0.0"

type Runner interface {
	Run(ctx context.Context, month string) (*service.RunResult, error)
	Transform(data []byte) ([]byte, *service.RunResult, error)
}

type RunLister interface {
	ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.RunRecord, error)
}

type HealthCheckFunc func(ctx context.Context) error

type Handler struct {
	runner   Runner
	runs     RunLister
	checks   map[string]HealthCheckFunc
	validate *validator.Validate
	baseCtx  context.Context
	now      func() time.Time

	mu      sync.Mutex
	current *RunState
	wg      sync.WaitGroup
}

type HandlerOption func(*Handler)

// WithRunLister enables GET /runs. Without it the endpoint answers 503.
func WithRunLister(runs RunLister) HandlerOption {
	return func(h *Handler) {
		h.runs = runs
	}
}

func WithHealthCheck(name string, check HealthCheckFunc) HandlerOption {
	return func(h *Handler) {
		h.checks[name] = check
	}
}

// WithBaseContext sets the parent context of background runs.
func WithBaseContext(ctx context.Context) HandlerOption {
	return func(h *Handler) {
		h.baseCtx = ctx
	}
}

func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.now = now
	}
}

func NewHandler(runner Runner, opts ...HandlerOption) *Handler {
	h := &Handler{
		runner:   runner,
		checks:   make(map[string]HealthCheckFunc),
		validate: validator.New(),
		baseCtx:  context.Background(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   version,
		Timestamp: time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	services := make(map[string]ServiceHealth, len(h.checks))
	for name, check := range h.checks {
		start := time.Now()
		if err := check(ctx); err != nil {
			services[name] = ServiceHealth{
				Status: "unhealthy",
				Error:  err.Error(),
			}
			continue
		}
		services[name] = ServiceHealth{
			Status:  "healthy",
			Latency: time.Since(start).String(),
		}
	}

	status := "ready"
	for _, svc := range services {
		if svc.Status != "healthy" {
			status = "not_ready"
			break
		}
	}

	response := HealthResponse{
		Status:    status,
		Version:   version,
		Timestamp: time.Now(),
		Services:  services,
	}

	if status != "ready" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}

	return c.JSON(response)
}

// StartRun godoc
// @Summary Inicia o pipeline para um mês
// @Tags runs
// @Accept json
// @Produce json
// @Param request body RunRequest false "Mês no formato YYYY-MM (padrão: mês anterior)"
// @Success 202 {object} RunState
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /runs [post]
func (h *Handler) StartRun(c *fiber.Ctx) error {
	var req RunRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errorBody(c, fiber.StatusBadRequest, "corpo da requisição inválido"))
		}
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody(c, fiber.StatusBadRequest, "mês inválido (use YYYY-MM)", validationDetails(err)...))
	}

	month := req.Month
	if month == "" {
		month = domain.PreviousMonth(h.now())
	}

	h.mu.Lock()
	if h.current != nil && h.current.Status == domain.RunRunning {
		running := *h.current
		h.mu.Unlock()
		return c.Status(fiber.StatusConflict).JSON(errorBody(c, fiber.StatusConflict,
			fmt.Sprintf("execução para %s já em andamento", running.Month)))
	}
	state := &RunState{
		Month:     month,
		Status:    domain.RunRunning,
		StartedAt: h.now().UTC(),
	}
	h.current = state
	snapshot := *state
	h.mu.Unlock()

	logger.Info("Execução solicitada via API",
		zap.String("month", month),
		zap.String("request_id", requestID(c)))

	h.wg.Add(1)
	go h.run(month, state)

	return c.Status(fiber.StatusAccepted).JSON(snapshot)
}

func (h *Handler) run(month string, state *RunState) {
	defer h.wg.Done()

	result, err := h.runner.Run(h.baseCtx, month)

	h.mu.Lock()
	defer h.mu.Unlock()

	finished := h.now().UTC()
	state.FinishedAt = &finished
	if err != nil {
		state.Status = domain.RunFailed
		state.Error = err.Error()
		logger.Error("Execução via API falhou", zap.String("month", month), zap.Error(err))
		return
	}
	state.Status = domain.RunSucceeded
	state.Result = result
}

// Wait blocks until background runs started by this handler return.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// CurrentRun godoc
// @Summary Estado da última execução iniciada pela API
// @Tags runs
// @Produce json
// @Success 200 {object} RunState
// @Failure 404 {object} ErrorResponse
// @Router /runs/current [get]
func (h *Handler) CurrentRun(c *fiber.Ctx) error {
	h.mu.Lock()
	if h.current == nil {
		h.mu.Unlock()
		return c.Status(fiber.StatusNotFound).JSON(errorBody(c, fiber.StatusNotFound, "nenhuma execução iniciada"))
	}
	snapshot := *h.current
	h.mu.Unlock()

	return c.JSON(snapshot)
}

// ListRuns godoc
// @Summary Histórico de execuções
// @Tags runs
// @Produce json
// @Param month query string false "Mês (YYYY-MM)"
// @Param limit query int false "Limite (padrão: 50)"
// @Success 200 {object} RunsResponse
// @Failure 503 {object} ErrorResponse
// @Router /runs [get]
func (h *Handler) ListRuns(c *fiber.Ctx) error {
	if h.runs == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorBody(c, fiber.StatusServiceUnavailable, "histórico desabilitado (DATABASE_URL não definido)"))
	}

	query := RunsQuery{Month: c.Query("month")}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errorBody(c, fiber.StatusBadRequest, "limit inválido"))
		}
		query.Limit = n
	}
	if err := h.validate.Struct(query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody(c, fiber.StatusBadRequest, "parâmetros inválidos", validationDetails(err)...))
	}

	runs, err := h.runs.ListRuns(c.UserContext(), domain.RunFilter{Month: query.Month, Limit: query.Limit})
	if err != nil {
		logger.Error("Erro ao listar execuções", zap.Error(err), zap.String("request_id", requestID(c)))
		return fiber.NewError(fiber.StatusInternalServerError, "erro ao buscar histórico")
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}

	return c.JSON(RunsResponse{Runs: runs, Count: len(runs)})
}

// Transform godoc
// @Summary Converte um relatório CSV para o formato do rastreador
// @Tags transform
// @Accept text/csv
// @Produce text/csv
// @Success 200 {string} string
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /transform [post]
func (h *Handler) Transform(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody(c, fiber.StatusBadRequest, "corpo vazio"))
	}

	out, res, err := h.runner.Transform(body)
	if err != nil {
		code := fiber.StatusBadRequest
		if errors.Is(err, transform.ErrMissingColumn) || errors.Is(err, report.ErrEmptyReport) {
			code = fiber.StatusUnprocessableEntity
		}
		return c.Status(code).JSON(errorBody(c, code, err.Error()))
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set("X-Rows-In", strconv.Itoa(res.RowsIn))
	c.Set("X-Rows-Out", strconv.Itoa(res.RowsOut))
	return c.Send(out)
}

func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
	}
	return details
}
