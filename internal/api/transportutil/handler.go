package transportutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-kit/kit/endpoint"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/apierrors"
	"github.com/platformplatform/account-api/internal/api/endpointutil"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/pkg/api/request"
)

var (
	anonymousContextType  = reflect.TypeOf(&request.AnonymousContext{})
	authorizedContextType = reflect.TypeOf(&request.AuthorizedContext{})
	errorType             = reflect.TypeOf((*error)(nil)).Elem()
)

type logContextFiller interface {
	FillLogContext(lctx logutil.Context)
}

type handlerOptions struct {
	maxBodyBytes int64
}

type HandlerOption func(o *handlerOptions)

// WithMaxBodyBytes limits request body size.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(o *handlerOptions) {
		o.maxBodyBytes = n
	}
}

// RegisterHandler exposes a service method of form
// func(rc *request.XContext, args...) (*Response, error) or func(rc, args...) error.
// Every arg is a request.Body or a pointer to a struct filled from its `request` tags.
func RegisterHandler(hctx *endpointutil.HandlerRegContext, method, path string, handler interface{}, opts ...HandlerOption) {
	var o handlerOptions
	for _, opt := range opts {
		opt(&o)
	}

	hv := reflect.ValueOf(handler)
	ht := hv.Type()
	if err := checkHandlerType(ht); err != nil {
		panic(fmt.Sprintf("invalid handler for %s %s: %s", method, path, err))
	}

	var argTypes []reflect.Type
	for i := 1; i < ht.NumIn(); i++ {
		argTypes = append(argTypes, ht.In(i))
	}

	storeRequestContext := MakeStoreAnonymousRequestContext(*hctx)
	if ht.In(0) == authorizedContextType {
		storeRequestContext = MakeStoreAuthorizedRequestContext(*hctx)
	}

	route := method + " " + path
	server := httptransport.NewServer(
		makeEndpoint(hv),
		makeDecoder(argTypes, o),
		encodeResponse,
		httptransport.ServerBefore(StoreHTTPRequestToContext, storeRequestContext),
		httptransport.ServerAfter(FinalizeResponse),
		httptransport.ServerErrorEncoder(EncodeError),
		httptransport.ServerErrorLogger(AdaptErrorLogger(hctx.Log)),
		httptransport.ServerFinalizer(MakeFinalizeRequest(hctx, route)),
	)

	hctx.Router.Methods(method).Path(path).Handler(withRequestID(server))
}

func checkHandlerType(ht reflect.Type) error {
	if ht.Kind() != reflect.Func {
		return fmt.Errorf("func expected, got %s", ht.Kind())
	}

	if ht.NumIn() == 0 || (ht.In(0) != anonymousContextType && ht.In(0) != authorizedContextType) {
		return errors.New("first arg must be a request context")
	}

	for i := 1; i < ht.NumIn(); i++ {
		at := ht.In(i)
		isBody := at.Kind() == reflect.Slice && at.Elem().Kind() == reflect.Uint8
		isStructPtr := at.Kind() == reflect.Ptr && at.Elem().Kind() == reflect.Struct
		if !isBody && !isStructPtr {
			return fmt.Errorf("arg %d must be a pointer to struct or a body", i)
		}
	}

	switch ht.NumOut() {
	case 1:
		if ht.Out(0) != errorType {
			return errors.New("single return value must be an error")
		}
	case 2:
		if ht.Out(1) != errorType {
			return errors.New("second return value must be an error")
		}
	default:
		return errors.New("one or two return values expected")
	}

	return nil
}

func makeDecoder(argTypes []reflect.Type, o handlerOptions) httptransport.DecodeRequestFunc {
	return func(ctx context.Context, r *http.Request) (interface{}, error) {
		if o.maxBodyBytes != 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(nil, r.Body, o.maxBodyBytes)
		}

		args := make([]reflect.Value, 0, len(argTypes))
		for _, at := range argTypes {
			arg := reflect.New(at).Elem()
			if err := decodeRequestField(arg, r); err != nil {
				return nil, errors.Wrapf(apierrors.ErrBadRequest, "failed to decode request: %s", err)
			}
			args = append(args, arg)
		}

		return args, nil
	}
}

func makeEndpoint(hv reflect.Value) endpoint.Endpoint {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		if err := endpointutil.Error(ctx); err != nil {
			return nil, err
		}

		rc := endpointutil.RequestContext(ctx)
		if rc == nil {
			return nil, errors.New("no request context")
		}

		args := req.([]reflect.Value)
		for _, arg := range args {
			if f, ok := arg.Interface().(logContextFiller); ok {
				f.FillLogContext(rc.LogContext())
			}
		}

		out := hv.Call(append([]reflect.Value{reflect.ValueOf(rc)}, args...))
		errVal := out[len(out)-1]
		if !errVal.IsNil() {
			return nil, errVal.Interface().(error)
		}

		if len(out) == 1 {
			return nil, nil
		}
		return out[0].Interface(), nil
	}
}

func encodeResponse(ctx context.Context, w http.ResponseWriter, resp interface{}) error {
	if err := GetContextError(ctx); err != nil {
		return err
	}

	if resp == nil || (reflect.ValueOf(resp).Kind() == reflect.Ptr && reflect.ValueOf(resp).IsNil()) {
		resp = struct{}{}
	}

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	return json.NewEncoder(w).Encode(resp)
}
