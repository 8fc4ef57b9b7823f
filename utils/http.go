package utils

import (
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-cache-admin/types"
)

const internalErrorBody = `{"errorCode":"INTERNAL_ERROR","message":"An unexpected error occurred"}`

func setNoCacheHeaders(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	ctx.Response.Header.Set("Pragma", "no-cache")
	ctx.Response.Header.Set("Expires", "0")

	if requestID := ctx.Request.Header.Peek("X-Request-ID"); len(requestID) > 0 {
		ctx.Response.Header.SetBytesV("X-Request-ID", requestID)
	}
}

// WriteJSON encodes body with the given status. An encoding failure turns
// into a plain 500.
func WriteJSON(ctx *fasthttp.RequestCtx, status int, body interface{}) {
	data, err := Marshal(body)
	if err != nil {
		CreateErrorResponse(ctx)
		return
	}

	setNoCacheHeaders(ctx)
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(data)
}

func WriteError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	WriteJSON(ctx, status, types.ErrorResponse{ErrorCode: code, Message: message})
}

func CreateErrorResponse(ctx *fasthttp.RequestCtx) {
	setNoCacheHeaders(ctx)
	ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(internalErrorBody)
}
