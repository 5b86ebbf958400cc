package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	ierrors "tenant-task-manager/internal/errors"
)

// MetricsService - TaskService с RED-метриками: число вызовов, ошибки по
// коду, длительность.
type MetricsService struct {
	calls    *prometheus.CounterVec
	errs     *prometheus.CounterVec
	duration *prometheus.HistogramVec

	svc TaskService
}

var _ TaskService = (*MetricsService)(nil)

// NewMetricsService регистрирует метрики в reg и оборачивает svc.
func NewMetricsService(reg prometheus.Registerer, svc TaskService) *MetricsService {
	const namespace, subsystem = "tasks", "service"

	m := &MetricsService{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "call_total",
			Help:      "Number of calls",
		}, []string{"method"}),
		errs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "error_total",
			Help:      "Number of errors by code",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Duration of calls",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method"}),
		svc: svc,
	}
	reg.MustRegister(m.calls, m.errs, m.duration)
	return m
}

// record начинает замер; возвращённая функция закрывает его и пропускает err.
func (m *MetricsService) record(method string) func(error) error {
	start := time.Now()
	return func(err error) error {
		m.calls.WithLabelValues(method).Inc()
		m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		if err != nil {
			m.errs.WithLabelValues(method, ierrors.ErrorCode(err)).Inc()
		}
		return err
	}
}

func (m *MetricsService) List(ctx context.Context, page PageRequest) (Page, error) {
	rec := m.record("list")
	p, err := m.svc.List(ctx, page)
	return p, rec(err)
}

func (m *MetricsService) ListByStatus(ctx context.Context, status Status, page PageRequest) (Page, error) {
	rec := m.record("list_by_status")
	p, err := m.svc.ListByStatus(ctx, status, page)
	return p, rec(err)
}

func (m *MetricsService) Get(ctx context.Context, id uuid.UUID) (Task, error) {
	rec := m.record("get")
	t, err := m.svc.Get(ctx, id)
	return t, rec(err)
}

func (m *MetricsService) Create(ctx context.Context, req CreateTaskRequest) (Task, error) {
	rec := m.record("create")
	t, err := m.svc.Create(ctx, req)
	return t, rec(err)
}

func (m *MetricsService) Update(ctx context.Context, id uuid.UUID, req *UpdateTaskRequest) (Task, error) {
	rec := m.record("update")
	t, err := m.svc.Update(ctx, id, req)
	return t, rec(err)
}

func (m *MetricsService) Delete(ctx context.Context, id uuid.UUID) error {
	rec := m.record("delete")
	err := m.svc.Delete(ctx, id)
	return rec(err)
}
