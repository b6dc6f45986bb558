package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/config"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/service"
)

// 修改班次模板和分配关系需要管理员权限
var managerRoles = []domain.Role{domain.RoleSuperAdmin, domain.RoleAdmin}

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	service    *service.Service
	translator ut.Translator
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer

	Mux *chi.Mux
}

// NewHandler 创建 handler。gatherer 为 nil 时不暴露 /metrics。
func NewHandler(cfg *config.Config, svc *service.Service, m *metrics.Metrics, gatherer prometheus.Gatherer) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		service:    svc,
		translator: trans,
		metrics:    m,
		gatherer:   gatherer,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Get("/healthz", h.Healthz)
	if h.gatherer != nil {
		h.Mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	// 以下 API 必须携带有效的令牌
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Route("/shift-templates", func(r chi.Router) {
			r.Get("/", h.GetAllShiftTemplates)
			r.With(h.RequiredRole(managerRoles)).Post("/", h.CreateShiftTemplate)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.shiftTemplateID)
				r.Get("/", h.GetShiftTemplate)
				r.With(h.RequiredRole(managerRoles)).Put("/", h.UpdateShiftTemplate)
				r.With(h.RequiredRole(managerRoles)).Delete("/", h.DeleteShiftTemplate)
				r.Get("/assignments", h.GetAssignedUsers)
				r.With(h.RequiredRole(managerRoles)).Post("/assign", h.AssignShift)
				r.With(h.RequiredRole(managerRoles)).Post("/assign-all", h.AssignShiftToAll)
				r.With(h.RequiredRole(managerRoles)).Delete("/assignments/{userId}", h.RemoveAssignment)
			})
		})

		r.Get("/my-shifts", h.GetMyShifts)
	})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "ok", nil)
}
