package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dop251/goja"
)

// jsPrelude binds the allow-list (except print) as plain JS functions on the global object.
const jsPrelude = `(function (g) {
	var seq = function (x) { return x === undefined ? [] : Array.from(x); };
	var many = function (args) {
		return args.length === 1 && typeof args[0] === 'object' ? Array.from(args[0]) : Array.from(args);
	};
	g.range = function (a, b, s) {
		if (b === undefined) { b = a; a = 0; }
		if (s === undefined) { s = 1; }
		if (s === 0) { throw new RangeError('range() arg 3 must not be zero'); }
		var n = Math.max(0, Math.ceil((b - a) / s));
		if (n > %d) { throw new RangeError('range too large (' + n + ' items)'); }
		var out = new Array(n);
		for (var i = 0; i < n; i++) { out[i] = a + i * s; }
		return out;
	};
	g.len = function (x) {
		if (typeof x === 'string') { return Array.from(x).length; }
		if (x instanceof Set || x instanceof Map) { return x.size; }
		if (x !== null && typeof x === 'object') { return Array.isArray(x) ? x.length : Object.keys(x).length; }
		throw new TypeError("object of type '" + typeof x + "' has no len()");
	};
	g.str = function (x) { return x === undefined ? '' : String(x); };
	g.int = function (x) {
		var n = typeof x === 'string' ? parseInt(x, 10) : Math.trunc(Number(x === undefined ? 0 : x));
		if (isNaN(n)) { throw new TypeError('invalid literal for int(): ' + x); }
		return n;
	};
	g.float = function (x) {
		var n = Number(x === undefined ? 0 : x);
		if (isNaN(n) && String(x).trim().toLowerCase() !== 'nan') { throw new TypeError('could not convert to float: ' + x); }
		return n;
	};
	g.bool = function (x) { return Boolean(x); };
	g.list = function (x) { return seq(x); };
	g.tuple = function (x) { return Object.freeze(seq(x)); };
	g.set = function (x) { return new Set(seq(x)); };
	g.dict = function (x) { return x instanceof Map ? new Map(x) : Object.assign({}, x === undefined ? {} : x); };
	g.abs = function (x) { return Math.abs(x); };
	g.min = function () { var a = many(arguments); if (!a.length) { throw new TypeError('min() arg is an empty sequence'); } return Math.min.apply(null, a); };
	g.max = function () { var a = many(arguments); if (!a.length) { throw new TypeError('max() arg is an empty sequence'); } return Math.max.apply(null, a); };
})(this);`

// jsBlocked lists JS globals poisoned in addition to BlockList.
var jsBlocked = []string{"Function", "require"}

// newJSRuntime creates a goja runtime carrying the allow-list and the poisoned block-list.
func newJSRuntime() (*goja.Runtime, error) {
	vm := goja.New()
	if _, err := vm.RunString(fmt.Sprintf(jsPrelude, MaxRangeLen)); err != nil {
		return nil, fmt.Errorf("sandbox: js prelude: %w", err)
	}
	for _, name := range append(append([]string(nil), BlockList...), jsBlocked...) {
		name := name
		if err := vm.Set(name, func(goja.FunctionCall) goja.Value {
			panic(vm.NewGoError(&PermissionError{Name: name}))
		}); err != nil {
			return nil, err
		}
	}
	return vm, nil
}

// runJS executes code on vm, interrupting it once ctx is done.
func runJS(ctx context.Context, vm *goja.Runtime, code string, w io.Writer) error {
	vm.ClearInterrupt()
	if err := vm.Set("print", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		if _, err := fmt.Fprintln(w, strings.Join(parts, " ")); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}

	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
		close(interrupted)
	})
	defer func() {
		if !stop() {
			// the callback already started; let it land, then clear it for the next run
			<-interrupted
			vm.ClearInterrupt()
		}
	}()

	_, err := vm.RunString(code)
	if err == nil {
		return nil
	}

	var intErr *goja.InterruptedError
	if errors.As(err, &intErr) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("interrupted: %v", intErr.Value())
	}
	if goErr := goErrorOf(err); goErr != nil {
		var perm *PermissionError
		if errors.As(goErr, &perm) {
			return perm
		}
		if errors.Is(goErr, ErrOutputLimit) {
			return ErrOutputLimit
		}
	}
	return err
}

// goErrorOf returns the Go error carried by a thrown GoError, if any.
func goErrorOf(err error) error {
	var exc *goja.Exception
	if !errors.As(err, &exc) {
		return nil
	}
	obj, ok := exc.Value().(*goja.Object)
	if !ok {
		return nil
	}
	if v := obj.Get("value"); v != nil {
		if goErr, ok := v.Export().(error); ok {
			return goErr
		}
	}
	return nil
}
