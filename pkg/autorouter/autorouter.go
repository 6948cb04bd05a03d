// Package autorouter registers handler methods as JSON-RPC style routes:
// method Add on a handler registered under group "contact" is served at
// <prefix>contact.Add.
package autorouter

import (
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/danghamo/rescueme/pkg/logger"
)

// Middleware represents middleware function signature
type Middleware func(http.Handler) http.Handler

// RegistrationOptions configures how handlers are registered
type RegistrationOptions struct {
	Prefix     string       // URL prefix (e.g., "/api/v1/")
	Middleware []Middleware // applied to every registered route
	Logger     *logger.Logger
}

// AutoRouter handles automatic registration of HTTP handlers using reflection
type AutoRouter struct {
	mux     *http.ServeMux
	options RegistrationOptions
	logger  *logger.Logger
	routes  []string
}

// NewAutoRouter creates a new auto router
func NewAutoRouter(mux *http.ServeMux, options RegistrationOptions) *AutoRouter {
	log := options.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &AutoRouter{
		mux:     mux,
		options: options,
		logger:  log.WithComponent("autorouter"),
	}
}

var (
	responseWriterType = reflect.TypeOf((*http.ResponseWriter)(nil)).Elem()
	requestType        = reflect.TypeOf((*http.Request)(nil))
)

// Register exposes every exported method of handler with the
// func(http.ResponseWriter, *http.Request) signature under group.
// Methods named Handle* are skipped. extra middleware wraps only these
// routes, outside the router-wide chain.
func (ar *AutoRouter) Register(group string, handler interface{}, extra ...Middleware) error {
	if group == "" {
		return fmt.Errorf("group cannot be empty")
	}

	handlerType := reflect.TypeOf(handler)
	if handlerType == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	elem := handlerType
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return fmt.Errorf("handler must be a struct or pointer to struct")
	}

	handlerValue := reflect.ValueOf(handler)
	registered := 0
	for i := 0; i < handlerType.NumMethod(); i++ {
		name := handlerType.Method(i).Name
		if strings.HasPrefix(name, "Handle") {
			continue
		}

		method := handlerValue.Method(i)
		if !isHandlerFunc(method.Type()) {
			continue
		}

		path := ar.options.Prefix + group + "." + name
		var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method.Call([]reflect.Value{reflect.ValueOf(w), reflect.ValueOf(r)})
		})
		h = chain(h, ar.options.Middleware)
		h = chain(h, extra)

		ar.mux.Handle(path, h)
		ar.routes = append(ar.routes, path)
		registered++

		ar.logger.Debug("Route registered",
			zap.String("path", path),
			zap.String("method", name))
	}

	if registered == 0 {
		return fmt.Errorf("handler %s has no routable methods", elem.Name())
	}
	return nil
}

// Routes returns the registered paths, sorted
func (ar *AutoRouter) Routes() []string {
	out := append([]string(nil), ar.routes...)
	sort.Strings(out)
	return out
}

// isHandlerFunc reports whether t is func(http.ResponseWriter, *http.Request)
func isHandlerFunc(t reflect.Type) bool {
	if t.Kind() != reflect.Func || t.NumIn() != 2 || t.NumOut() != 0 {
		return false
	}
	return t.In(0) == responseWriterType && t.In(1) == requestType
}

// chain wraps h so that middlewares[0] runs first
func chain(h http.Handler, middlewares []Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
