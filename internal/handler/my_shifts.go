package handler

import (
	"net/http"
)

// GetMyShifts 返回当前用户在某一天的班次，date 为空时取 timezone 时区的今天
func (h *Handler) GetMyShifts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	shifts, err := h.service.ShiftsOn(r.Context(), actorFrom(r), query.Get("date"), query.Get("timezone"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取班次成功", shifts)
}
