package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/auth"
	"github.com/huanth/bi-a-manager/internal/platform/storage"
	"github.com/huanth/bi-a-manager/internal/services"
)

var (
	ownerActor    = domain.Actor{Username: "admin", Role: domain.UserRoleOwner}
	employeeActor = domain.Actor{Username: "thu.ngan", Role: domain.UserRoleEmployee}
)

type stubTableSessions struct {
	tables     []services.Table
	settlement services.Settlement
	result     services.CommitResult
	preview    services.TablePreview
	err        error

	started   []services.StartSessionCommand
	confirmed []domain.Actor
	cancelled []int64
}

func (s *stubTableSessions) ListTables(context.Context) ([]services.Table, error) {
	return s.tables, s.err
}

func (s *stubTableSessions) GetTable(_ context.Context, id int64) (services.Table, error) {
	if s.err != nil {
		return services.Table{}, s.err
	}
	for _, t := range s.tables {
		if t.ID == id {
			return t, nil
		}
	}
	return services.Table{}, services.ErrSessionNotFound
}

func (s *stubTableSessions) Preview(context.Context, int64) (services.TablePreview, error) {
	return s.preview, s.err
}

func (s *stubTableSessions) Start(_ context.Context, cmd services.StartSessionCommand) (services.Table, error) {
	s.started = append(s.started, cmd)
	if s.err != nil {
		return services.Table{}, s.err
	}
	return services.Table{ID: cmd.TableID, Status: domain.TableStatusPlaying, CurrentPlayer: cmd.Player, StartTime: "20:00"}, nil
}

func (s *stubTableSessions) EndSession(context.Context, int64) (services.Settlement, error) {
	return s.settlement, s.err
}

func (s *stubTableSessions) PendingSettlement(context.Context, int64) (services.Settlement, error) {
	return s.settlement, s.err
}

func (s *stubTableSessions) ConfirmSettlement(_ context.Context, _ int64, actor domain.Actor) (services.CommitResult, error) {
	s.confirmed = append(s.confirmed, actor)
	return s.result, s.err
}

func (s *stubTableSessions) CancelSettlement(_ context.Context, id int64) error {
	s.cancelled = append(s.cancelled, id)
	return s.err
}

func (s *stubTableSessions) BeginMaintenance(_ context.Context, id int64) (services.Table, error) {
	return services.Table{ID: id, Status: domain.TableStatusMaintenance}, s.err
}

func (s *stubTableSessions) EndMaintenance(_ context.Context, id int64) (services.Table, error) {
	return services.Table{ID: id, Status: domain.TableStatusEmpty}, s.err
}

type stubOrders struct {
	orders []services.Order
	err    error

	placed   []services.PlaceOrderCommand
	advanced []services.AdvanceOrderCommand
	filters  []services.OrderFilter
}

func (s *stubOrders) PlaceOrder(_ context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
	s.placed = append(s.placed, cmd)
	if s.err != nil {
		return services.Order{}, s.err
	}
	var total domain.Money
	for _, item := range cmd.Items {
		total += domain.Money(item.Quantity) * item.Price
	}
	return services.Order{ID: 100, TableID: cmd.TableID, Status: domain.OrderStatusPending, TotalAmount: total, CreatedBy: cmd.Actor.Name()}, nil
}

func (s *stubOrders) AdvanceOrder(_ context.Context, cmd services.AdvanceOrderCommand) (services.Order, error) {
	s.advanced = append(s.advanced, cmd)
	if s.err != nil {
		return services.Order{}, s.err
	}
	return services.Order{ID: cmd.OrderID, Status: cmd.Status}, nil
}

func (s *stubOrders) CancelOrder(_ context.Context, id int64, _ domain.Actor) (services.Order, error) {
	if s.err != nil {
		return services.Order{}, s.err
	}
	return services.Order{ID: id, Status: domain.OrderStatusCancelled}, nil
}

func (s *stubOrders) ListOrders(_ context.Context, filter services.OrderFilter) ([]services.Order, error) {
	s.filters = append(s.filters, filter)
	return s.orders, s.err
}

type stubRevenue struct {
	records []services.RevenueRecord
	summary services.RevenueSummary
	day     services.RevenuePeriod
	err     error

	filters []services.RevenueFilter
	days    []time.Time
}

func (s *stubRevenue) List(_ context.Context, filter services.RevenueFilter) ([]services.RevenueRecord, error) {
	s.filters = append(s.filters, filter)
	return s.records, s.err
}

func (s *stubRevenue) DailyTotals(_ context.Context, day time.Time) (services.RevenuePeriod, error) {
	s.days = append(s.days, day)
	return s.day, s.err
}

func (s *stubRevenue) LastSevenDays(context.Context) ([]services.RevenuePeriod, error) {
	return s.summary.LastSevenDays, s.err
}

func (s *stubRevenue) MonthToDate(context.Context) (services.RevenuePeriod, error) {
	return s.summary.MonthToDate, s.err
}

func (s *stubRevenue) Summary(context.Context) (services.RevenueSummary, error) {
	return s.summary, s.err
}

type stubAuth struct {
	session services.StaffSession
	err     error
	calls   int
}

func (s *stubAuth) Login(context.Context, services.LoginCommand) (services.StaffSession, error) {
	s.calls++
	return s.session, s.err
}

type stubExports struct {
	result storage.ExportResult
	err    error
	actors []domain.Actor
}

func (s *stubExports) Export(_ context.Context, actor domain.Actor) (storage.ExportResult, error) {
	s.actors = append(s.actors, actor)
	return s.result, s.err
}

func newTestIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer("test-secret-with-enough-entropy", auth.WithTokenTTL(time.Hour))
	require.NoError(t, err)
	return issuer
}

func bearer(t *testing.T, issuer *auth.TokenIssuer, actor domain.Actor) string {
	t.Helper()
	session, err := issuer.Issue(actor)
	require.NoError(t, err)
	return "Bearer " + session.Token
}

// serve mounts routes under a bare router with actor already on the context.
func serve(routes func(chi.Router), actor *domain.Actor, method, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	if actor != nil {
		a := *actor
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(auth.WithActor(req.Context(), a)))
			})
		})
	}
	routes(r)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}
