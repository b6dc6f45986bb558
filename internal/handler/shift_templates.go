package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/service"
)

func (h *Handler) GetAllShiftTemplates(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	sts, err := h.service.ListTemplates(r.Context(), actor.CompanyID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取所有班次模板成功", sts)
}

func (h *Handler) CreateShiftTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title     string `json:"title" validate:"required"`
		StartTime string `json:"startTime" validate:"required"`
		EndTime   string `json:"endTime" validate:"required"`
		Timezone  string `json:"timezone"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	st, err := h.service.CreateTemplate(r.Context(), actorFrom(r), service.TemplateInput{
		Title:     req.Title,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Timezone:  req.Timezone,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.createdResponse(w, r, "创建班次模板成功", st)
}

func (h *Handler) GetShiftTemplate(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.GetTemplate(r.Context(), actorFrom(r).CompanyID, shiftTemplateIDFrom(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取班次模板成功", st)
}

func (h *Handler) UpdateShiftTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title     *string `json:"title"`
		StartTime *string `json:"startTime"`
		EndTime   *string `json:"endTime"`
		Timezone  string  `json:"timezone"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	st, err := h.service.UpdateTemplate(r.Context(), actorFrom(r), shiftTemplateIDFrom(r), service.TemplatePatch{
		Title:     req.Title,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Timezone:  req.Timezone,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新班次模板成功", st)
}

func (h *Handler) DeleteShiftTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTemplate(r.Context(), actorFrom(r), shiftTemplateIDFrom(r)); err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除班次模板成功", nil)
}
