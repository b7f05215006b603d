package php

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourbasic/graph"
	"go.uber.org/zap"

	"github.com/xkilldash9x/phpsca/internal/analysis/core"
)

func newTestAnalysis() *Analysis {
	return newAnalysis("scope.php", zap.NewNop(), core.DefaultTables())
}

func TestScope_GlobalHasBuiltins(t *testing.T) {
	a := newTestAnalysis()
	builtins := a.GlobalScope().Builtins()
	for _, sg := range core.DefaultTables().Superglobals() {
		require.Contains(t, builtins, sg)
		assert.Equal(t, KindBuiltin, builtins[sg].Kind)
		assert.True(t, builtins[sg].IsRoot())
		assert.True(t, builtins[sg].TaintedFor(core.ClassXSS))
	}
}

func TestScope_AddVarRejectsInvalid(t *testing.T) {
	s := newTestAnalysis().GlobalScope()
	assert.True(t, errors.Is(s.AddVar(nil), ErrInvalidVariable))
	assert.True(t, errors.Is(s.AddVar(&Variable{}), ErrInvalidVariable))
}

func TestScope_LookupStopsAtFunctionBoundary(t *testing.T) {
	a := newTestAnalysis()
	global := a.GlobalScope()
	g := a.newVariable("$g", 1, KindAssigned, global, nil)
	require.NoError(t, global.AddVar(g))

	fn := a.newScope(ScopeFunction, global, "f")
	branch := a.newScope(ScopeBranchThen, fn, "")

	assert.Nil(t, branch.lookup("$g", 0))
	assert.NotNil(t, branch.lookup("$_GET", 0), "builtins are visible everywhere")

	fn.imported["$g"] = true
	assert.Same(t, g, branch.lookup("$g", 0))
}

func TestScope_LookupPrefersNearestScope(t *testing.T) {
	a := newTestAnalysis()
	global := a.GlobalScope()
	outer := a.newVariable("$v", 1, KindAssigned, global, nil)
	require.NoError(t, global.AddVar(outer))

	arm := a.newScope(ScopeBranchThen, global, "")
	inner := a.newVariable("$v", 3, KindAssigned, arm, nil)
	require.NoError(t, arm.AddVar(inner))

	assert.Same(t, inner, arm.lookup("$v", 0))
	assert.Same(t, outer, global.lookup("$v", 0))
	assert.Same(t, outer, arm.lookup("$v", 2), "versions after the line are not visible")
}

func TestVariable_Compare(t *testing.T) {
	a := newTestAnalysis()
	global := a.GlobalScope()
	then := a.newScope(ScopeBranchThen, global, "")
	els := a.newScope(ScopeBranchElse, global, "")

	g1 := a.newVariable("$v", 5, KindAssigned, global, nil)
	g2 := a.newVariable("$v", 9, KindAssigned, global, nil)
	t1 := a.newVariable("$v", 6, KindAssigned, then, nil)
	e1 := a.newVariable("$v", 2, KindAssigned, els, nil)

	assert.Equal(t, 0, g1.Compare(g1))
	assert.Equal(t, -1, g1.Compare(g2), "same scope orders by line")
	assert.Equal(t, 1, g2.Compare(g1))
	assert.Equal(t, -1, g2.Compare(t1), "an enclosing scope is older than a nested one")
	assert.Equal(t, 1, t1.Compare(g2))
	assert.Equal(t, -1, t1.Compare(e1), "a later sibling arm wins over the line")
	assert.Equal(t, 1, e1.Compare(t1))
}

func TestVariable_LabelsAndSanitization(t *testing.T) {
	a := newTestAnalysis()
	global := a.GlobalScope()
	root := a.newRoot("$_GET", "q", 1, KindRoot, global)
	clean := a.sanitized("escapeshellarg()", 1, global, []*Variable{root}, core.NewClassSet(core.ClassOSCommanding))
	mixed := a.newVariable("$m", 2, KindAssigned, global, []*Variable{clean, a.newVariable("$lit", 2, KindAssigned, global, nil)})

	assert.True(t, mixed.ControlledByUser())
	assert.False(t, mixed.TaintedFor(core.ClassOSCommanding))
	assert.True(t, mixed.TaintedFor(core.ClassSQLInjection))
	assert.Nil(t, mixed.TaintPath(core.ClassOSCommanding))
	assert.Equal(t, []string{"q"}, mixed.VulnSources(core.ClassXSS))

	want := core.FullClassSet().Minus(core.NewClassSet(core.ClassOSCommanding)).Sorted()
	if diff := cmp.Diff(want, mixed.Labels().Sorted()); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

// TestVersions_ProvenanceIsAcyclic checks every predecessor edge of a
// realistic analysis with a cycle detector.
func TestVersions_ProvenanceIsAcyclic(t *testing.T) {
	a := analyze(t, functionsSrc)
	b := analyze(t, classesSrc)

	for _, res := range []*Analysis{a, b} {
		g := graph.New(len(res.vars))
		for _, v := range res.vars {
			for _, p := range v.preds {
				require.Less(t, int(p.ID), int(v.ID), "predecessors are created first")
				g.Add(int(p.ID), int(v.ID))
			}
		}
		assert.True(t, graph.Acyclic(g))
		assert.NotEmpty(t, res.Versions(true))
		for _, v := range res.Versions(false) {
			assert.NotEqual(t, KindArgument, v.Kind)
		}
	}
}

func TestObjectOf_FirstInstanceWinsOnDisagreement(t *testing.T) {
	a := newTestAnalysis()
	global := a.GlobalScope()
	first := &ObjectInstance{ID: 1, ClassName: "A"}
	second := &ObjectInstance{ID: 2, ClassName: "B"}

	plain := a.newVariable("$s", 1, KindAssigned, global, nil)
	x := a.newVariable("$x", 2, KindAssigned, global, nil)
	x.Object = first
	y := a.newVariable("$y", 3, KindAssigned, global, nil)
	y.Object = second

	assert.Nil(t, objectOf([]*Variable{plain}))
	assert.Same(t, first, objectOf([]*Variable{plain, x, y}))
	assert.Same(t, second, objectOf([]*Variable{y, x}))
}
