package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/queue"
	redsync "gopkg.in/redsync.v1"
)

// ReflectConsumer decodes json message into the handler's second arg and calls the handler
// under a distributed lock by the message's LockID.
type ReflectConsumer struct {
	handler interface{}
	timeout time.Duration
	df      *redsync.Redsync
}

func NewReflectConsumer(handler interface{}, timeout time.Duration, df *redsync.Redsync) (*ReflectConsumer, error) {
	handlerType := reflect.TypeOf(handler)
	if handlerType == nil || handlerType.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler %#v is not a func", handler)
	}

	if handlerType.NumIn() != 2 {
		return nil, fmt.Errorf("args count %d must be two", handlerType.NumIn())
	}

	contextType := reflect.TypeOf((*context.Context)(nil)).Elem()
	firstArgType := handlerType.In(0)
	if !firstArgType.Implements(contextType) {
		return nil, fmt.Errorf("handler's first arg is not Context, it's %s", firstArgType.Kind())
	}

	secondArgType := handlerType.In(1)
	if secondArgType.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("handler's second arg is not pointer, it's %s", secondArgType.Kind())
	}
	secondArgPointedType := secondArgType.Elem()
	if secondArgPointedType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("handler's second arg's pointer points no to struct but to %s", secondArgPointedType.Kind())
	}

	if handlerType.NumOut() != 1 {
		return nil, fmt.Errorf("invalid output values count %d != 1", handlerType.NumOut())
	}
	errorType := reflect.TypeOf((*error)(nil)).Elem()
	if !handlerType.Out(0).Implements(errorType) {
		return nil, fmt.Errorf("return type is not error, it's %s", handlerType.Out(0).Kind())
	}

	return &ReflectConsumer{
		handler: handler,
		timeout: timeout,
		df:      df,
	}, nil
}

func (c ReflectConsumer) ConsumeMessage(ctx context.Context, message []byte) error {
	handlerType := reflect.TypeOf(c.handler)
	callArgValue := reflect.New(handlerType.In(1).Elem())
	callArg := callArgValue.Interface()

	if err := json.Unmarshal(message, callArg); err != nil {
		return errors.Wrap(errors.Wrap(ErrBadMessage, err.Error()), "json unmarshal failed")
	}

	if m, ok := callArg.(queue.Message); ok && c.df != nil {
		mutex := c.df.NewMutex(fmt.Sprintf("consumers/lock/%s", m.LockID()),
			redsync.SetExpiry(c.timeout+time.Second))
		if err := mutex.Lock(); err != nil {
			return errors.Wrap(ErrRetryLater, fmt.Sprintf("can't acquire lock %s: %s", m.LockID(), err))
		}
		defer mutex.Unlock()
	}

	if c.timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	handler := reflect.ValueOf(c.handler)
	retValues := handler.Call([]reflect.Value{reflect.ValueOf(ctx), callArgValue})
	if retVal := retValues[0].Interface(); retVal != nil {
		err := retVal.(error)
		if IsHandled(err) {
			return err
		}
		return errors.Wrap(ErrRetryLater, err.Error())
	}

	return nil
}
