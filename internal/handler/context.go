package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
)

type ContextKey string

var (
	ActorCtxKey           ContextKey = "actor"
	ShiftTemplateIDCtxKey ContextKey = "shiftTemplateID"
)

func actorFrom(r *http.Request) domain.Actor {
	return r.Context().Value(ActorCtxKey).(domain.Actor)
}

func shiftTemplateIDFrom(r *http.Request) int64 {
	return r.Context().Value(ShiftTemplateIDCtxKey).(int64)
}
