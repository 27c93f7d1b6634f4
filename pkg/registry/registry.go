// Package registry implements spec.md §4.10's query registry and entry
// point: it compiles HQL source into named, analyzed plans and executes
// them by name against msgpack-encoded parameter and result payloads.
// There is no teacher equivalent for a named-query catalog — the teacher
// dispatches a fixed, compiled-in gRPC method set — so the "decode
// request, dispatch by name, encode response" shape here is grounded on
// the teacher's pkg/api/server.go request handlers, generalized from a
// closed set of RPC methods to an open, runtime-registered one.
package registry

import (
	"context"
	"sync"

	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/executor"
	"github.com/helixdb/helix-core/pkg/herr"
	"github.com/helixdb/helix-core/pkg/hql/analyzer"
	"github.com/helixdb/helix-core/pkg/hql/ir"
	"github.com/helixdb/helix-core/pkg/hql/parser"
	"github.com/helixdb/helix-core/pkg/ids"
	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/metrics"
	"github.com/helixdb/helix-core/pkg/schema"
)

// entry is what spec.md §4.10 calls "{param schema, operator tree,
// read/write kind}" for one registered query.
type entry struct {
	plan    *ir.Plan
	isWrite bool
}

// Registry maps query_id (a QUERY declaration's name) to its compiled
// plan and serves Execute calls against it. Safe for concurrent use:
// Compile swaps in newly analyzed queries under a write lock, Execute
// looks one up under a read lock and runs independently of it.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry

	schema *schema.Registry
	exec   *executor.Executor
	env    kv.Env
}

// New returns a Registry that compiles against schemaReg and executes
// through exec, opening transactions on env.
func New(schemaReg *schema.Registry, exec *executor.Executor, env kv.Env) *Registry {
	return &Registry{
		entries: make(map[string]entry),
		schema:  schemaReg,
		exec:    exec,
		env:     env,
	}
}

// CompileResult reports what a Compile call registered.
type CompileResult struct {
	Queries     []string
	Diagnostics []analyzer.Diagnostic
}

// Compile parses source as zero or more QUERY declarations, analyzes
// each against the schema, and registers the resulting plans. It is
// all-or-nothing: if any query carries a fatal diagnostic, nothing in
// source is registered, though CompileResult.Diagnostics still reports
// every diagnostic collected so callers can surface them all at once.
func (r *Registry) Compile(source string) (CompileResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CompileDuration)

	queries, err := parser.Parse(source)
	if err != nil {
		return CompileResult{}, herr.CompileErrorf("parse: %v", err)
	}

	pending := make(map[string]entry, len(queries))
	var diags []analyzer.Diagnostic
	fatal := false

	for _, q := range queries {
		res := analyzer.Analyze(q, r.schema)
		diags = append(diags, res.Diagnostics...)
		if res.HasFatal() {
			fatal = true
			continue
		}
		pending[q.Name] = entry{plan: res.Plan, isWrite: executor.PlanIsWrite(res.Plan)}
	}
	if fatal {
		return CompileResult{Diagnostics: diags}, herr.CompileErrorf("source contains fatal diagnostics, no queries registered")
	}

	r.mu.Lock()
	names := make([]string, 0, len(pending))
	for name, e := range pending {
		r.entries[name] = e
		names = append(names, name)
	}
	r.mu.Unlock()

	return CompileResult{Queries: names, Diagnostics: diags}, nil
}

// Execute decodes params as a msgpack-encoded {name: value} map, binds
// it positionally against queryID's declared parameters (erroring on a
// missing name or an unconvertible value), runs the plan, and returns
// the RETURN tuple msgpack-encoded as {name: value}.
func (r *Registry) Execute(ctx context.Context, queryID string, params []byte) ([]byte, error) {
	r.mu.RLock()
	e, ok := r.entries[queryID]
	r.mu.RUnlock()
	if !ok {
		return nil, herr.InvalidArgumentf("registry: unknown query %q", queryID)
	}

	bound, err := bindParams(e.plan.Params, params)
	if err != nil {
		return nil, err
	}

	result, err := r.exec.Execute(ctx, r.env, e.plan, bound)
	if err != nil {
		return nil, err
	}

	out, err := codec.Msgpack(result)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// bindParams decodes raw (msgpack map[string]interface{}) and produces
// the positional []interface{} Plan.Params order requires, coercing
// each value to its declared type and erroring on shape mismatch.
func bindParams(decls []ir.ParamDecl, raw []byte) ([]interface{}, error) {
	named := make(map[string]interface{})
	if len(raw) > 0 {
		if err := codec.MsgpackDecode(raw, &named); err != nil {
			return nil, err
		}
	}

	bound := make([]interface{}, len(decls))
	for i, d := range decls {
		v, ok := named[d.Name]
		if !ok {
			return nil, herr.InvalidArgumentf("registry: missing parameter %q", d.Name)
		}
		coerced, err := coerceParam(d, v)
		if err != nil {
			return nil, err
		}
		bound[i] = coerced
	}
	return bound, nil
}

// coerceParam adapts a msgpack-decoded value to the Go representation
// the executor expects for d.Type: every numeric type as float64,
// "vector" as []float64, "id" as ids.ID, bool and string/date checked
// and passed through, anything else passed through unchecked.
func coerceParam(d ir.ParamDecl, v interface{}) (interface{}, error) {
	switch d.Type {
	case "vector":
		switch vv := v.(type) {
		case []float64:
			return vv, nil
		case []interface{}:
			out := make([]float64, len(vv))
			for i, e := range vv {
				f, ok := asFloat(e)
				if !ok {
					return nil, herr.InvalidArgumentf("registry: parameter %q: element %d is not numeric", d.Name, i)
				}
				out[i] = f
			}
			return out, nil
		default:
			return nil, herr.InvalidArgumentf("registry: parameter %q: expected a vector", d.Name)
		}

	case "id":
		switch vv := v.(type) {
		case string:
			id, err := ids.FromHex(vv)
			if err != nil {
				return nil, herr.InvalidArgumentf("registry: parameter %q: %v", d.Name, err)
			}
			return id, nil
		case ids.ID:
			return vv, nil
		default:
			return nil, herr.InvalidArgumentf("registry: parameter %q: expected an id string", d.Name)
		}

	case string(schema.FieldI8), string(schema.FieldI16), string(schema.FieldI32), string(schema.FieldI64),
		string(schema.FieldU8), string(schema.FieldU16), string(schema.FieldU32), string(schema.FieldU64), string(schema.FieldU128),
		string(schema.FieldF32), string(schema.FieldF64):
		f, ok := asFloat(v)
		if !ok {
			return nil, herr.InvalidArgumentf("registry: parameter %q: expected a number, got %T", d.Name, v)
		}
		return f, nil

	case string(schema.FieldBool):
		b, ok := v.(bool)
		if !ok {
			return nil, herr.InvalidArgumentf("registry: parameter %q: expected a bool, got %T", d.Name, v)
		}
		return b, nil

	case string(schema.FieldString), string(schema.FieldDate):
		s, ok := v.(string)
		if !ok {
			return nil, herr.InvalidArgumentf("registry: parameter %q: expected a string, got %T", d.Name, v)
		}
		return s, nil

	default:
		return v, nil
	}
}

// asFloat mirrors pkg/executor's numeric coercion so a decoded msgpack
// number (which may surface as any width) binds against any declared
// numeric parameter type.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
