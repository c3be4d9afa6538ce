package wazero

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/tsuki-dev/tsuki-host/hostfuncs"
)

// OutparamHandler returns the raw response-outparam.set import:
// (outparam i32, response i64 ptr+len) -> i32 status. It is raw because the
// guest passes a handle alongside the payload and expects a status code, not
// a JSON reply.
func OutparamHandler(maxRequestSize uint32) CustomHandler {
	return CustomHandler{
		Name: hostfuncs.FuncResponseOutparamSet,
		Handler: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			handle := api.DecodeU32(stack[0])
			payload, err := ReadGuestBytes(mod, stack[1], maxRequestSize)
			if err != nil {
				logger(ctx).ErrorContext(ctx, "wazero: "+err.Error(), "function", hostfuncs.FuncResponseOutparamSet)
				stack[0] = api.EncodeI32(hostfuncs.OutparamMalformed)
				return
			}
			stack[0] = api.EncodeI32(hostfuncs.SetResponseOutparam(ctx, handle, payload))
		}),
		ParamTypes:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI64},
		ResultTypes: []api.ValueType{api.ValueTypeI32},
	}
}
