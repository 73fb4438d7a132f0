package sandbox

import (
	"context"
	"fmt"
	"io"
	"sort"

	"xpp/internal/runtime"
)

// AllowList names the primitives snippets may call.
var AllowList = []string{
	"print", "range", "len", "str", "int", "float", "bool",
	"list", "dict", "set", "tuple", "abs", "min", "max",
}

// BlockList names the primitives that are bound to stand-ins failing with a PermissionError.
var BlockList = []string{
	"open", "exec", "eval", "compile", "__import__",
	"globals", "locals", "vars", "dir",
}

// Namespace is the fixed vocabulary of a Sandbox. It is built once and never written by snippets.
type Namespace struct {
	entries map[string]*runtime.BuiltinVal
	blocked map[string]bool
}

// NewNamespace builds the allow-list and the poisoned block-list entries.
func NewNamespace() *Namespace {
	ns := &Namespace{
		entries: make(map[string]*runtime.BuiltinVal),
		blocked: make(map[string]bool),
	}

	pure := runtime.Builtins()
	extra := map[string]runtime.BuiltinFn{
		"print": builtinPrint,
		"range": builtinRange,
		"list":  builtinList(false),
		"tuple": builtinList(true),
		"dict":  builtinDict,
		"set":   builtinSet,
	}
	for _, name := range AllowList {
		if fn, ok := extra[name]; ok {
			ns.entries[name] = &runtime.BuiltinVal{Name: name, Fn: fn}
			continue
		}
		if v, ok := pure[name]; ok {
			ns.entries[name] = v.(*runtime.BuiltinVal)
		}
	}

	for _, name := range BlockList {
		name := name
		ns.blocked[name] = true
		ns.entries[name] = &runtime.BuiltinVal{
			Name: name,
			Fn: func(context.Context, []runtime.Value) (runtime.Value, error) {
				return nil, &PermissionError{Name: name}
			},
		}
	}
	return ns
}

// Lookup implements runtime.Scope.
func (n *Namespace) Lookup(name string) (runtime.Value, bool) {
	v, ok := n.entries[name]
	if !ok {
		return nil, false
	}
	return v, true
}

// IsBlocked reports whether name is on the block-list.
func (n *Namespace) IsBlocked(name string) bool {
	return n.blocked[name]
}

// Names returns every bound name in sorted order.
func (n *Namespace) Names() []string {
	names := make([]string, 0, len(n.entries))
	for name := range n.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ---- output routing ----

type outputKey struct{}

// withOutput routes print() calls made under ctx to w.
func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, outputKey{}, w)
}

func outputOf(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(outputKey{}).(io.Writer); ok && w != nil {
		return w
	}
	return io.Discard
}

// ---- allow-listed primitives not shared with the line interpreter ----

func builtinPrint(ctx context.Context, args []runtime.Value) (runtime.Value, error) {
	if _, err := fmt.Fprintln(outputOf(ctx), runtime.ValuesString(args, " ")); err != nil {
		return nil, err
	}
	return runtime.NoneVal{}, nil
}

func builtinRange(_ context.Context, args []runtime.Value) (runtime.Value, error) {
	if err := runtime.ArgCount("range", args, 1, 3); err != nil {
		return nil, err
	}
	nums := make([]int64, len(args))
	for i, a := range args {
		n, ok := runtime.ToInt64(a)
		if !ok {
			return nil, fmt.Errorf("'%s' object cannot be interpreted as an integer", a.TypeName())
		}
		nums[i] = n
	}
	r := &runtime.RangeVal{Step: 1}
	switch len(nums) {
	case 1:
		r.Stop = nums[0]
	case 2:
		r.Start, r.Stop = nums[0], nums[1]
	default:
		r.Start, r.Stop, r.Step = nums[0], nums[1], nums[2]
		if r.Step == 0 {
			return nil, fmt.Errorf("range() arg 3 must not be zero")
		}
	}
	return r, nil
}

func builtinList(frozen bool) runtime.BuiltinFn {
	name := "list"
	if frozen {
		name = "tuple"
	}
	return func(_ context.Context, args []runtime.Value) (runtime.Value, error) {
		if err := runtime.ArgCount(name, args, 0, 1); err != nil {
			return nil, err
		}
		if len(args) == 0 {
			return &runtime.ListVal{Elements: []runtime.Value{}, Frozen: frozen}, nil
		}
		items, err := runtime.Iterate(args[0])
		if err != nil {
			return nil, err
		}
		return &runtime.ListVal{Elements: items, Frozen: frozen}, nil
	}
}

func builtinSet(_ context.Context, args []runtime.Value) (runtime.Value, error) {
	if err := runtime.ArgCount("set", args, 0, 1); err != nil {
		return nil, err
	}
	set := runtime.NewSet()
	if len(args) == 0 {
		return set, nil
	}
	items, err := runtime.Iterate(args[0])
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := set.Add(item); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func builtinDict(_ context.Context, args []runtime.Value) (runtime.Value, error) {
	if err := runtime.ArgCount("dict", args, 0, 1); err != nil {
		return nil, err
	}
	dict := runtime.NewDict()
	if len(args) == 0 {
		return dict, nil
	}
	if src, ok := args[0].(*runtime.DictVal); ok {
		for _, k := range src.Keys() {
			v, _, _ := src.Get(k)
			if err := dict.Set(k, v); err != nil {
				return nil, err
			}
		}
		return dict, nil
	}
	items, err := runtime.Iterate(args[0])
	if err != nil {
		return nil, err
	}
	for i, item := range items {
		pair, ok := item.(*runtime.ListVal)
		if !ok || len(pair.Elements) != 2 {
			return nil, fmt.Errorf("dictionary update sequence element #%d has wrong shape", i)
		}
		if err := dict.Set(pair.Elements[0], pair.Elements[1]); err != nil {
			return nil, err
		}
	}
	return dict, nil
}
