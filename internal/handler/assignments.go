package handler

import (
	"net/http"
)

func (h *Handler) GetAssignedUsers(w http.ResponseWriter, r *http.Request) {
	aus, err := h.service.Assignments.ListAssignedUsers(r.Context(), actorFrom(r).CompanyID, shiftTemplateIDFrom(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取已分配员工成功", aus)
}

func (h *Handler) AssignShift(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     int64  `json:"userId" validate:"required,gt=0"`
		Recurrence string `json:"recurrence" validate:"required,oneof=all weekdays weekends"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	a, created, err := h.service.Assignments.Assign(r.Context(), actorFrom(r), shiftTemplateIDFrom(r), req.UserID, req.Recurrence)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	if created {
		h.createdResponse(w, r, "分配班次成功", a)
		return
	}
	h.successResponse(w, r, "已更新班次的重复规则", a)
}

func (h *Handler) AssignShiftToAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recurrence string `json:"recurrence" validate:"required,oneof=all weekdays weekends"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	result, err := h.service.Assignments.AssignAll(r.Context(), actorFrom(r), shiftTemplateIDFrom(r), req.Recurrence)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	if !result.Complete() {
		// 部分员工分配失败时返回 207，成功的分配不会回滚
		h.writeJSON(w, r, http.StatusMultiStatus, Response{
			Success: false,
			Message: "部分员工分配失败",
			Data:    result,
		})
		return
	}
	h.successResponse(w, r, "批量分配班次成功", result)
}

func (h *Handler) RemoveAssignment(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseIDParam(r, "userId")
	if !ok {
		h.errorResponse(w, r, http.StatusBadRequest, "员工ID无效")
		return
	}

	if err := h.service.Assignments.Remove(r.Context(), actorFrom(r), shiftTemplateIDFrom(r), userID); err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "取消班次分配成功", nil)
}
