package php

// mergeArms joins the arms of a conditional into parent. A name gets a merged
// version only when every arm assigned it; otherwise the pre-conditional
// version stays visible because the assignment may not run. Callers pass the
// arms only when the conditional is exhaustive (it has an else or default).
func (a *Analysis) mergeArms(parent *Scope, arms []*Scope, line int) {
	if len(arms) == 0 {
		return
	}
	for _, name := range arms[0].Names() {
		preds := make([]*Variable, 0, len(arms))
		for _, arm := range arms {
			v := arm.Latest(name)
			if v == nil {
				preds = nil
				break
			}
			preds = append(preds, v)
		}
		if preds == nil {
			continue
		}
		_ = parent.AddVar(a.newVariable(name, line, KindMerged, parent, preds))
	}
}

// mergeLoop joins a loop body into parent. The body may run zero or more
// times, so every name it assigned gets a merged version of the pre-loop
// version (when there is one) and the body's final version.
func (a *Analysis) mergeLoop(parent, body *Scope, line int) {
	for _, name := range body.Names() {
		final := body.Latest(name)
		preds := []*Variable{final}
		if pre := parent.lookup(name, 0); pre != nil {
			preds = []*Variable{pre, final}
		}
		_ = parent.AddVar(a.newVariable(name, line, KindMerged, parent, preds))
	}
}
