package executor

import (
	"context"
	"time"

	"github.com/helixdb/helix-core/pkg/arena"
	"github.com/helixdb/helix-core/pkg/bm25"
	"github.com/helixdb/helix-core/pkg/config"
	"github.com/helixdb/helix-core/pkg/embed"
	"github.com/helixdb/helix-core/pkg/herr"
	"github.com/helixdb/helix-core/pkg/hnsw"
	"github.com/helixdb/helix-core/pkg/hql/ir"
	"github.com/helixdb/helix-core/pkg/ids"
	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/log"
	"github.com/helixdb/helix-core/pkg/metrics"
	"github.com/helixdb/helix-core/pkg/schema"
	"github.com/helixdb/helix-core/pkg/storage"
)

// Executor runs a lowered ir.Plan against a single database's storage,
// vector, and lexical layers. It owns no transaction itself — Execute
// opens one per call, sized (read vs write) by whether the plan carries
// a mutation — and holds one hnsw.Index per vector label, built lazily
// on first use since a label's HNSW parameters come from the schema, not
// from the executor's own config.
type Executor struct {
	store   *storage.GraphStore
	reg     *schema.Registry
	embed   embed.Provider
	indices map[string]*hnsw.Index
	util    *hnsw.Index // identity-addressed only; label-agnostic

	arenaBudget int
	timeout     time.Duration
	bm25Params  bm25.Params
}

// New returns an Executor bound to store/reg/embedder, sized by cfg.
func New(store *storage.GraphStore, reg *schema.Registry, embedder embed.Provider, cfg config.DatabaseConfig) *Executor {
	return &Executor{
		store:       store,
		reg:         reg,
		embed:       embedder,
		indices:     make(map[string]*hnsw.Index),
		util:        hnsw.New("", hnsw.DefaultConfig()),
		arenaBudget: cfg.ArenaBudget,
		timeout:     cfg.QueryTimeout,
		bm25Params:  bm25.Params{K1: cfg.BM25.K1, B: cfg.BM25.B},
	}
}

// indexFor returns (building if needed) the hnsw.Index for a vector
// label, configured from the label's schema entry when one exists.
func (e *Executor) indexFor(label string) *hnsw.Index {
	if idx, ok := e.indices[label]; ok {
		return idx
	}
	cfg := hnsw.DefaultConfig()
	if def, ok := e.reg.Vector(label); ok {
		if def.HNSW.M > 0 {
			cfg.M = def.HNSW.M
		}
		if def.HNSW.Mmax0 > 0 {
			cfg.Mmax0 = def.HNSW.Mmax0
		}
		if def.HNSW.EfConstruction > 0 {
			cfg.EfConstruction = def.HNSW.EfConstruction
		}
		if def.HNSW.EfSearch > 0 {
			cfg.EfSearch = def.HNSW.EfSearch
		}
	}
	idx := hnsw.New(label, cfg)
	e.indices[label] = idx
	return idx
}

// execState carries one Execute call's transaction, arena, and pipeline
// scope — everything a Pipeline/Expr evaluation needs, threaded
// explicitly rather than held on Executor so concurrent Execute calls
// never share mutable state.
type execState struct {
	ctx    context.Context
	reader kv.Reader
	writer kv.WriteTxn // nil for a read-only plan
	arena  *arena.Arena
	params []interface{}
	scope  map[string]scopeResult
	exec   *Executor
}

// scopeResult is what a bound pipeline name resolves to: its rows plus
// the carrier kind they were produced under, needed to shape a RETURN
// item that references the binding verbatim.
type scopeResult struct {
	rows    []Row
	carrier ir.CarrierKind
}

func (es *execState) reading() kv.Reader {
	if es.writer != nil {
		return es.writer
	}
	return es.reader
}

// checkCtx is called at every operator boundary so a cancelled or
// timed-out query stops promptly instead of running every remaining
// step.
func (es *execState) checkCtx() error {
	select {
	case <-es.ctx.Done():
		if es.ctx.Err() == context.DeadlineExceeded {
			return herr.TimedOutf("query exceeded its timeout")
		}
		return herr.Cancelledf("query cancelled")
	default:
		return nil
	}
}

// Execute runs plan with the given positional params under one
// transaction, returning the RETURN tuple as a name -> value map. The
// transaction is a write txn iff the plan contains an AddN/AddE/Update/
// Drop anywhere in its statement list; otherwise it runs under a
// snapshot read txn, mirroring the teacher's BoltStore View/Update split
// generalized from a fixed handler to an arbitrary compiled plan.
func (e *Executor) Execute(ctx context.Context, env kv.Env, plan *ir.Plan, params []interface{}) (result map[string]interface{}, err error) {
	timer := metrics.NewTimer()
	logger := log.WithQueryID(plan.Name)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	a := arena.New(e.arenaBudget)
	mutates := planHasMutation(plan)

	outcome := "success"
	defer func() {
		timer.ObserveDurationVec(metrics.QueryDuration, plan.Name)
		if err != nil {
			outcome = "error"
			if kind, ok := herr.Of(err); ok && kind == herr.ArenaExhausted {
				metrics.ArenaExhaustedTotal.Inc()
			}
		}
		metrics.QueriesTotal.WithLabelValues(plan.Name, outcome).Inc()
		metrics.ArenaHighWaterBytes.Observe(float64(a.Used()))
	}()

	var reader kv.Reader
	var writer kv.WriteTxn
	var readTxn kv.Txn

	if mutates {
		writer, err = env.BeginWrite()
		if err != nil {
			return nil, err
		}
		defer func() {
			if err != nil {
				_ = writer.Abort()
			}
		}()
	} else {
		readTxn, err = env.BeginRead()
		if err != nil {
			return nil, err
		}
		defer readTxn.Discard()
		reader = readTxn
	}

	es := &execState{
		ctx:    ctx,
		reader: reader,
		writer: writer,
		arena:  a,
		params: params,
		scope:  make(map[string]scopeResult),
		exec:   e,
	}

	for _, stmt := range plan.Stmts {
		if err = es.checkCtx(); err != nil {
			return nil, err
		}
		switch s := stmt.(type) {
		case ir.Assign:
			var rows []Row
			rows, err = es.runPipeline(s.Pipeline)
			if err != nil {
				return nil, err
			}
			es.scope[s.Name] = scopeResult{rows: rows, carrier: s.Pipeline.OutType()}
		case ir.DropStmt:
			var rows []Row
			rows, err = es.runPipeline(s.Pipeline)
			if err != nil {
				return nil, err
			}
			if err = es.dropRows(s.Pipeline.OutType(), rows); err != nil {
				return nil, err
			}
		default:
			err = herr.InvalidArgumentf("unrecognized statement %T", stmt)
			return nil, err
		}
	}

	result = make(map[string]interface{}, len(plan.Return))
	for _, item := range plan.Return {
		var v interface{}
		if item.Binding != "" {
			sr, ok := es.scope[item.Binding]
			if !ok {
				err = herr.CompileErrorf("return: unbound name %q", item.Binding)
				return nil, err
			}
			v = es.rowsToValue(sr.rows, sr.carrier)
		} else {
			v, err = es.evalExpr(item.Expr, nil)
			if err != nil {
				return nil, err
			}
		}
		result[item.Name] = v
	}

	if mutates {
		if err = writer.Commit(); err != nil {
			metrics.TxnCommitsTotal.WithLabelValues("write", "abort").Inc()
			return nil, err
		}
		metrics.TxnCommitsTotal.WithLabelValues("write", "commit").Inc()
	} else {
		metrics.TxnCommitsTotal.WithLabelValues("read", "commit").Inc()
	}

	logger.Debug().Msg("query executed")
	return result, nil
}

// PlanIsWrite reports whether plan carries any mutation, the same test
// Execute uses to choose a read or write transaction. Exported so
// pkg/registry can record a query's read/write kind at compile time
// without duplicating the IR walk.
func PlanIsWrite(plan *ir.Plan) bool { return planHasMutation(plan) }

func planHasMutation(plan *ir.Plan) bool {
	for _, stmt := range plan.Stmts {
		switch s := stmt.(type) {
		case ir.Assign:
			if pipelineHasMutation(s.Pipeline) {
				return true
			}
		case ir.DropStmt:
			return true
		}
	}
	return false
}

func pipelineHasMutation(p *ir.Pipeline) bool {
	for _, n := range p.Nodes {
		switch n.Op.(type) {
		case ir.AddN, ir.AddE, ir.Update, ir.Drop:
			return true
		}
	}
	return false
}

// runPipeline evaluates every node of p in order, threading the
// originating query vector (qv) through to a trailing RerankMMR step —
// MMR's IR node carries only Lambda, so the vector it reranks relative
// to must be remembered from the VectorSearch/HybridSearch source that
// produced the candidate set.
func (es *execState) runPipeline(p *ir.Pipeline) ([]Row, error) {
	if len(p.Nodes) == 0 {
		return nil, nil
	}
	rows, qv, err := es.evalSource(p.Nodes[0])
	if err != nil {
		return nil, err
	}
	for _, n := range p.Nodes[1:] {
		if err := es.checkCtx(); err != nil {
			return nil, err
		}
		rows, err = es.evalStep(n, rows, qv)
		if err != nil {
			return nil, err
		}
		if err := es.arena.Charge(len(rows) * 64); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// evalSource evaluates a pipeline's first node, returning its rows and
// (when the source is a vector-producing op) the query vector driving
// it, for later use by a trailing RerankMMR.
func (es *execState) evalSource(n *ir.Node) ([]Row, []float64, error) {
	reader := es.reading()
	switch op := n.Op.(type) {
	case ir.AllOf:
		switch n.OutType {
		case ir.CarrierNodeSet:
			nodeIDs, err := es.exec.store.NodesOfLabel(reader, op.Label)
			if err != nil {
				return nil, nil, err
			}
			rows := make([]Row, 0, len(nodeIDs))
			for _, id := range nodeIDs {
				node, err := es.exec.store.GetNode(reader, id)
				if err != nil {
					return nil, nil, err
				}
				rows = append(rows, Row{ID: id, Label: node.Label, Props: node.Properties})
			}
			return rows, nil, nil
		case ir.CarrierEdgeSet:
			edgeIDs, err := es.exec.store.EdgesOfLabel(reader, op.Label)
			if err != nil {
				return nil, nil, err
			}
			rows := make([]Row, 0, len(edgeIDs))
			for _, id := range edgeIDs {
				edge, err := es.exec.store.GetEdge(reader, id)
				if err != nil {
					return nil, nil, err
				}
				rows = append(rows, Row{ID: id, Label: edge.Label, From: edge.From, To: edge.To, Props: edge.Properties})
			}
			return rows, nil, nil
		default:
			idx := es.exec.indexFor(op.Label)
			metas, err := idx.All(reader)
			if err != nil {
				return nil, nil, err
			}
			rows := make([]Row, 0, len(metas))
			for _, m := range metas {
				rows = append(rows, Row{ID: m.ID, Label: m.Label, Props: m.Metadata})
			}
			return rows, nil, nil
		}

	case ir.NodeByID:
		id, err := es.evalID(op.ID, nil)
		if err != nil {
			return nil, nil, err
		}
		node, err := es.exec.store.GetNode(reader, id)
		if err != nil {
			return nil, nil, err
		}
		return []Row{{ID: id, Label: node.Label, Props: node.Properties}}, nil, nil

	case ir.EdgeByID:
		id, err := es.evalID(op.ID, nil)
		if err != nil {
			return nil, nil, err
		}
		edge, err := es.exec.store.GetEdge(reader, id)
		if err != nil {
			return nil, nil, err
		}
		return []Row{{ID: id, Label: edge.Label, From: edge.From, To: edge.To, Props: edge.Properties}}, nil, nil

	case ir.VectorByID:
		id, err := es.evalID(op.ID, nil)
		if err != nil {
			return nil, nil, err
		}
		idx := es.exec.indexFor(op.Label)
		vec, meta, err := idx.Get(reader, id)
		if err != nil {
			return nil, nil, err
		}
		return []Row{{ID: id, Label: meta.Label, Props: meta.Metadata, Vec: vec}}, nil, nil

	case ir.AddN:
		rows, err := es.addN(op, nil)
		return rows, nil, err

	case ir.AddE:
		rows, err := es.addE(op, nil)
		return rows, nil, err

	case ir.VectorSearch:
		vec, err := es.evalVector(op.Vec, nil)
		if err != nil {
			return nil, nil, err
		}
		k, err := es.evalInt(op.K, nil)
		if err != nil {
			return nil, nil, err
		}
		idx := es.exec.indexFor(op.Label)
		timer := metrics.NewTimer()
		hits, err := idx.Search(reader, vec, k, nil, es.arena)
		timer.ObserveDuration(metrics.HNSWSearchDuration)
		metrics.HNSWCandidatesVisited.Observe(float64(len(hits)))
		if err != nil {
			return nil, nil, err
		}
		rows := make([]Row, 0, len(hits))
		for _, h := range hits {
			hVec, meta, err := idx.Get(reader, h.ID)
			if err != nil {
				return nil, nil, err
			}
			rows = append(rows, Row{ID: h.ID, Label: meta.Label, Props: meta.Metadata, Vec: hVec, Dist: h.Distance, HasDist: true})
		}
		return rows, vec, nil

	case ir.HybridSearch:
		vec, err := es.evalVector(op.Vec, nil)
		if err != nil {
			return nil, nil, err
		}
		text, err := es.evalString(op.Text, nil)
		if err != nil {
			return nil, nil, err
		}
		k, err := es.evalInt(op.K, nil)
		if err != nil {
			return nil, nil, err
		}
		idx := es.exec.indexFor(op.Label)
		timer := metrics.NewTimer()
		hits, err := idx.Search(reader, vec, k, nil, es.arena)
		timer.ObserveDuration(metrics.HNSWSearchDuration)
		if err != nil {
			return nil, nil, err
		}
		bmTimer := metrics.NewTimer()
		bmHits, err := bm25.Query(reader, schema.LabelHash(op.Label), text, bm25.DefaultTokenizer, es.exec.bm25Params, k)
		bmTimer.ObserveDuration(metrics.BM25QueryDuration)
		if err != nil {
			return nil, nil, err
		}

		byID := make(map[ids.ID]*Row)
		var rows []Row
		for _, h := range hits {
			hVec, meta, err := idx.Get(reader, h.ID)
			if err != nil {
				return nil, nil, err
			}
			rows = append(rows, Row{ID: h.ID, Label: meta.Label, Props: meta.Metadata, Vec: hVec, Dist: h.Distance, HasDist: true})
			byID[h.ID] = &rows[len(rows)-1]
		}
		for _, bh := range bmHits {
			if r, ok := byID[bh.DocID]; ok {
				r.BM25 = bh.Score
				r.HasBM25 = true
				continue
			}
			vec2, meta, err := idx.Get(reader, bh.DocID)
			if err != nil {
				continue // a bm25 doc id outside this vector label's id space
			}
			rows = append(rows, Row{ID: bh.DocID, Label: meta.Label, Props: meta.Metadata, Vec: vec2, BM25: bh.Score, HasBM25: true})
		}
		return rows, vec, nil

	default:
		return nil, nil, herr.InvalidArgumentf("unrecognized source %T", op)
	}
}

// evalStep evaluates one non-source pipeline node against the rows
// flowing in from the previous step. qv is the query vector remembered
// from the pipeline's source, used only by RerankMMR.
func (es *execState) evalStep(n *ir.Node, rows []Row, qv []float64) ([]Row, error) {
	reader := es.reading()
	switch op := n.Op.(type) {
	case ir.Out:
		return es.hop(rows, op.Label, true, false)
	case ir.In:
		return es.hop(rows, op.Label, false, false)
	case ir.OutE:
		return es.hop(rows, op.Label, true, true)
	case ir.InE:
		return es.hop(rows, op.Label, false, true)

	case ir.FromV:
		out := make([]Row, 0, len(rows))
		for _, r := range rows {
			node, err := es.exec.store.GetNode(reader, r.From)
			if err != nil {
				return nil, err
			}
			out = append(out, Row{ID: r.From, Label: node.Label, Props: node.Properties})
		}
		return out, nil

	case ir.ToV:
		out := make([]Row, 0, len(rows))
		for _, r := range rows {
			node, err := es.exec.store.GetNode(reader, r.To)
			if err != nil {
				return nil, err
			}
			out = append(out, Row{ID: r.To, Label: node.Label, Props: node.Properties})
		}
		return out, nil

	case ir.Where:
		out := make([]Row, 0, len(rows))
		for i := range rows {
			v, err := es.evalExpr(op.Expr, &rows[i])
			if err != nil {
				return nil, err
			}
			if b, ok := v.(bool); ok && b {
				out = append(out, rows[i])
			}
		}
		return out, nil

	case ir.InRange:
		// Not reachable from the current grammar (only ir.Range is
		// lowered for pagination); kept for the IR's closed operator set.
		lo, err := es.evalFloat(op.Lo, nil)
		if err != nil {
			return nil, err
		}
		hi, err := es.evalFloat(op.Hi, nil)
		if err != nil {
			return nil, err
		}
		out := make([]Row, 0, len(rows))
		for i := range rows {
			if rows[i].HasDist && rows[i].Dist >= lo && rows[i].Dist <= hi {
				out = append(out, rows[i])
			}
		}
		return out, nil

	case ir.Count:
		return []Row{{Scalar: len(rows)}}, nil

	case ir.OrderBy:
		out := append([]Row(nil), rows...)
		vals := make([]interface{}, len(out))
		for i := range out {
			v, err := es.evalExpr(op.Expr, &out[i])
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		sortRowsBy(out, vals, op.Desc)
		return out, nil

	case ir.Range:
		lo, err := es.evalInt(op.Lo, nil)
		if err != nil {
			return nil, err
		}
		hi, err := es.evalInt(op.Hi, nil)
		if err != nil {
			return nil, err
		}
		if lo < 0 {
			lo = 0
		}
		if lo > len(rows) {
			lo = len(rows)
		}
		if hi > len(rows) {
			hi = len(rows)
		}
		if hi < lo {
			hi = lo
		}
		return rows[lo:hi], nil

	case ir.RerankRRF:
		k := defaultRRFConstant
		if op.K != nil {
			v, err := es.evalFloat(op.K, nil)
			if err != nil {
				return nil, err
			}
			k = v
		}
		return rrfCombine(rows, k), nil

	case ir.RerankMMR:
		lambda, err := es.evalFloat(op.Lambda, nil)
		if err != nil {
			return nil, err
		}
		if qv == nil {
			return rows, nil
		}
		return mmrReorder(rows, lambda, qv), nil

	case ir.PickFields:
		out := make([]Row, 0, len(rows))
		for i := range rows {
			m := make(map[string]interface{}, len(op.Fields))
			for _, f := range op.Fields {
				v, err := es.evalExpr(ir.PropertyAccess{Field: f}, &rows[i])
				if err != nil {
					return nil, err
				}
				m[f] = v
			}
			out = append(out, Row{Struct: m})
		}
		return out, nil

	case ir.AddFields:
		out := make([]Row, 0, len(rows))
		for i := range rows {
			base := rows[i].Struct
			m := make(map[string]interface{}, len(op.Fields)+len(base))
			for k, v := range base {
				m[k] = v
			}
			added, err := es.evalNamedExprs(op.Fields, &rows[i])
			if err != nil {
				return nil, err
			}
			for k, v := range added {
				m[k] = v
			}
			out = append(out, Row{Struct: m})
		}
		return out, nil

	case ir.AddN:
		return es.addN(op, rows)

	case ir.AddE:
		return es.addE(op, rows)

	case ir.Update:
		return es.update(n.InType, op, rows)

	case ir.Drop:
		if err := es.dropRows(n.InType, rows); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, herr.InvalidArgumentf("unrecognized step %T", op)
	}
}

func (es *execState) hop(rows []Row, label string, outward, edgeCarrier bool) ([]Row, error) {
	reader := es.reading()
	var out []Row
	for _, r := range rows {
		var neighbors []storage.NeighborEdge
		var err error
		if outward {
			neighbors, err = es.exec.store.OutNeighbors(reader, r.ID, label)
		} else {
			neighbors, err = es.exec.store.InNeighbors(reader, r.ID, label)
		}
		if err != nil {
			return nil, err
		}
		for _, nb := range neighbors {
			if edgeCarrier {
				edge, err := es.exec.store.GetEdge(reader, nb.EdgeID)
				if err != nil {
					return nil, err
				}
				out = append(out, Row{ID: nb.EdgeID, Label: edge.Label, From: edge.From, To: edge.To, Props: edge.Properties})
				continue
			}
			node, err := es.exec.store.GetNode(reader, nb.Other)
			if err != nil {
				return nil, err
			}
			out = append(out, Row{ID: nb.Other, Label: node.Label, Props: node.Properties})
		}
	}
	return out, nil
}

func sortRowsBy(rows []Row, vals []interface{}, desc bool) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0; j-- {
			c, ok := runtimeCompare(vals[j-1], vals[j])
			if !ok {
				break
			}
			swap := c > 0
			if desc {
				swap = c < 0
			}
			if !swap {
				break
			}
			rows[j-1], rows[j] = rows[j], rows[j-1]
			vals[j-1], vals[j] = vals[j], vals[j-1]
		}
	}
}

// addN evaluates op.Fields once per incoming row (or once, with no row,
// for a bare AddN source step invoked with no prior carrier) and inserts
// a new node per evaluation. AddN only ever appears as a pipeline's
// source in the current grammar, so rows is always nil here; the
// per-row form is kept for IR-set completeness.
func (es *execState) addN(op ir.AddN, rows []Row) ([]Row, error) {
	if es.writer == nil {
		return nil, herr.InvalidArgumentf("add_node requires a write transaction")
	}
	if len(rows) == 0 {
		rows = []Row{{}}
	}
	out := make([]Row, 0, len(rows))
	for i := range rows {
		props, err := es.evalNamedExprs(op.Fields, &rows[i])
		if err != nil {
			return nil, err
		}
		if err := es.materializeVectorRefs(op.Label, props); err != nil {
			return nil, err
		}
		id, err := es.exec.store.AddNode(es.writer, op.Label, props)
		if err != nil {
			return nil, err
		}
		out = append(out, Row{ID: id, Label: op.Label, Props: props})
	}
	return out, nil
}

func (es *execState) addE(op ir.AddE, rows []Row) ([]Row, error) {
	if es.writer == nil {
		return nil, herr.InvalidArgumentf("add_edge requires a write transaction")
	}
	if len(rows) == 0 {
		rows = []Row{{}}
	}
	out := make([]Row, 0, len(rows))
	for i := range rows {
		from, err := es.evalID(op.From, &rows[i])
		if err != nil {
			return nil, err
		}
		to, err := es.evalID(op.To, &rows[i])
		if err != nil {
			return nil, err
		}
		props, err := es.evalNamedExprs(op.Fields, &rows[i])
		if err != nil {
			return nil, err
		}
		id, err := es.exec.store.AddEdge(es.writer, op.Label, from, to, props)
		if err != nil {
			return nil, err
		}
		out = append(out, Row{ID: id, Label: op.Label, From: from, To: to, Props: props})
	}
	return out, nil
}

func (es *execState) update(carrier ir.CarrierKind, op ir.Update, rows []Row) ([]Row, error) {
	if es.writer == nil {
		return nil, herr.InvalidArgumentf("update requires a write transaction")
	}
	out := make([]Row, 0, len(rows))
	for i := range rows {
		changes, err := es.evalNamedExprs(op.Fields, &rows[i])
		if err != nil {
			return nil, err
		}
		for field, val := range changes {
			switch carrier {
			case ir.CarrierEdgeSet:
				err = es.exec.store.PutEdgeProperty(es.writer, rows[i].ID, field, val)
			default:
				if fieldType, ok := es.vectorRefField(rows[i].Label, field); ok && fieldType {
					val, err = es.materializeVectorRef(rows[i].Label, field, val)
					if err != nil {
						return nil, err
					}
				}
				err = es.exec.store.PutProperty(es.writer, rows[i].ID, field, val)
			}
			if err != nil {
				return nil, err
			}
			if rows[i].Props == nil {
				rows[i].Props = make(map[string]interface{})
			}
			rows[i].Props[field] = val
		}
		out = append(out, rows[i])
	}
	return out, nil
}

// dropRows deletes every row of the given carrier kind. This is the only
// place entity deletion actually happens — both ir.DropStmt (the only
// reachable form) and the practically-unreachable ir.Drop step funnel
// through it.
func (es *execState) dropRows(carrier ir.CarrierKind, rows []Row) error {
	if es.writer == nil {
		return herr.InvalidArgumentf("drop requires a write transaction")
	}
	switch carrier {
	case ir.CarrierEdgeSet:
		for _, r := range rows {
			if err := es.exec.store.DropEdge(es.writer, r.ID); err != nil {
				return err
			}
		}
	case ir.CarrierVectorSet:
		for _, r := range rows {
			idx := es.exec.indexFor(r.Label)
			if err := idx.Delete(es.writer, r.ID); err != nil {
				return err
			}
		}
	default:
		for _, r := range rows {
			if err := es.exec.store.DropNode(es.writer, r.ID, func(vecID ids.ID) error {
				return es.exec.util.Delete(es.writer, vecID)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// vectorRefField reports whether label.field is declared FieldVectorRef.
func (es *execState) vectorRefField(label, field string) (bool, bool) {
	def, ok := es.exec.reg.Node(label)
	if !ok {
		return false, false
	}
	fd, ok := def.Fields[field]
	if !ok {
		return false, false
	}
	return fd.Type == schema.FieldVectorRef, true
}

// materializeVectorRefs rewrites every FieldVectorRef property in props
// whose current value is a raw embedding ([]float64) into the hex id of
// a freshly-inserted hnsw vector, mutating props in place.
func (es *execState) materializeVectorRefs(nodeLabel string, props map[string]interface{}) error {
	def, ok := es.exec.reg.Node(nodeLabel)
	if !ok {
		return nil
	}
	for field, fd := range def.Fields {
		if fd.Type != schema.FieldVectorRef {
			continue
		}
		raw, present := props[field]
		if !present {
			continue
		}
		newVal, err := es.materializeVectorRef(nodeLabel, field, raw)
		if err != nil {
			return err
		}
		props[field] = newVal
	}
	return nil
}

// materializeVectorRef resolves the vector label backing a single
// FieldVectorRef field (by naming convention: a vector label equal to
// the field name, falling back to one equal to the owning node's label,
// since schema.FieldDef carries no direct pointer to a vector label) and
// inserts val if it is a raw embedding, returning the id reference to
// store. A value already in hex-id form passes through unchanged.
func (es *execState) materializeVectorRef(nodeLabel, field string, val interface{}) (interface{}, error) {
	vec, ok := val.([]float64)
	if !ok {
		if asIface, ok := val.([]interface{}); ok {
			converted := make([]float64, len(asIface))
			for i, elem := range asIface {
				f, ok := asFloat(elem)
				if !ok {
					return val, nil
				}
				converted[i] = f
			}
			vec = converted
		} else {
			return val, nil
		}
	}

	vectorLabel := field
	if _, ok := es.exec.reg.Vector(vectorLabel); !ok {
		vectorLabel = nodeLabel
	}
	idx := es.exec.indexFor(vectorLabel)
	id := ids.New()
	if err := idx.Insert(es.writer, id, vec, nil, es.arena); err != nil {
		return nil, err
	}
	return id.String(), nil
}

// rowsToValue shapes rows into the RETURN tuple's value for a bound
// pipeline, per its carrier kind.
func (es *execState) rowsToValue(rows []Row, carrier ir.CarrierKind) interface{} {
	switch carrier {
	case ir.CarrierScalar:
		if len(rows) == 0 {
			return nil
		}
		return rows[0].Scalar
	case ir.CarrierStruct:
		out := make([]map[string]interface{}, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.Struct)
		}
		return out
	default:
		out := make([]map[string]interface{}, 0, len(rows))
		for _, r := range rows {
			out = append(out, rowToEntityMap(r, carrier))
		}
		return out
	}
}

func rowToEntityMap(r Row, carrier ir.CarrierKind) map[string]interface{} {
	m := make(map[string]interface{}, len(r.Props)+4)
	for k, v := range r.Props {
		m[k] = v
	}
	m["id"] = r.ID.String()
	m["label"] = r.Label
	switch carrier {
	case ir.CarrierEdgeSet:
		m["from"] = r.From.String()
		m["to"] = r.To.String()
	case ir.CarrierVectorSet:
		if r.HasDist {
			m["distance"] = r.Dist
		}
		if r.HasBM25 {
			m["bm25_score"] = r.BM25
		}
	}
	return m
}
