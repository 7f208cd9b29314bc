package docmodel

import "log/slog"

// Merge folds master into a deep copy of slave and returns the result.
// Neither input is mutated.
//
// Rules, per key:
//   - both values are leaves: the master leaf replaces the slave leaf
//     wholesale (no value/confidence blending);
//   - both values are groups: merged recursively, so non-overridden
//     subtrees of slave survive untouched;
//   - both values are lists: merged element-wise by index, extra master
//     elements appended, extra slave elements retained;
//   - key present only in one input: retained as-is;
//   - kind mismatch: the master value replaces the slave value.
//
// The result therefore contains every key present in either input, and
// wherever both define a leaf the master's leaf wins. A failure inside the
// merge is recovered: the caller gets an unmodified copy of slave and the
// failure is logged.
func Merge(slave, master *Group) (out *Group) {
	if slave == nil {
		slave = NewGroup()
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("docmodel.merge.recovered", "panic", r)
			out = slave.CloneGroup()
		}
	}()
	if master == nil {
		return slave.CloneGroup()
	}
	return mergeGroups(slave, master)
}

func mergeGroups(slave, master *Group) *Group {
	out := slave.CloneGroup()
	for _, k := range master.Keys() {
		mv, _ := master.Get(k)
		sv, ok := out.Get(k)
		if !ok {
			out.Set(k, mv.Clone())
			continue
		}
		out.Set(k, mergeValues(sv, mv))
	}
	return out
}

func mergeValues(slave, master Value) Value {
	switch mv := master.(type) {
	case *Group:
		if sg, ok := slave.(*Group); ok {
			return mergeGroups(sg, mv)
		}
	case List:
		if sl, ok := slave.(List); ok {
			return mergeLists(sl, mv)
		}
	}
	// Leaf, or kind mismatch: master wins.
	return master.Clone()
}

func mergeLists(slave, master List) List {
	n := len(slave)
	if len(master) > n {
		n = len(master)
	}
	out := make(List, 0, n)
	for i := 0; i < n; i++ {
		switch {
		case i >= len(slave):
			out = append(out, master[i].Clone())
		case i >= len(master):
			out = append(out, slave[i].Clone())
		default:
			out = append(out, mergeValues(slave[i], master[i]))
		}
	}
	return out
}

// ApplyTemplate returns a copy of doc with the template's constants forced
// in. Neither input is mutated.
//
// Rules, per template key:
//   - template group onto target group: recurse;
//   - key absent in target: the template subtree is copied in;
//   - template list onto target list: the first template element is a
//     row-template applied to every target element (this forces constant
//     per-line fields onto every invoice line regardless of prediction);
//   - anything else (leaf, kind mismatch, list onto non-list): the template
//     value replaces the target value.
//
// Unlike Merge, the template always wins: template values are schema
// constants, not predictions. A failure is recovered by returning an
// unmodified copy of doc, logged.
func ApplyTemplate(doc, template *Group) (out *Group) {
	if doc == nil {
		doc = NewGroup()
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("docmodel.template.recovered", "panic", r)
			out = doc.CloneGroup()
		}
	}()
	if template == nil {
		return doc.CloneGroup()
	}
	return applyGroupTemplate(doc, template)
}

func applyGroupTemplate(doc, template *Group) *Group {
	out := doc.CloneGroup()
	for _, k := range template.Keys() {
		tv, _ := template.Get(k)
		dv, ok := out.Get(k)
		if !ok {
			out.Set(k, tv.Clone())
			continue
		}
		out.Set(k, applyValueTemplate(dv, tv))
	}
	return out
}

func applyValueTemplate(target, tmpl Value) Value {
	switch tv := tmpl.(type) {
	case *Group:
		if tg, ok := target.(*Group); ok {
			return applyGroupTemplate(tg, tv)
		}
	case List:
		if tl, ok := target.(List); ok && len(tv) > 0 {
			if row, ok := tv[0].(*Group); ok {
				out := make(List, len(tl))
				for i, el := range tl {
					if eg, ok := el.(*Group); ok {
						out[i] = applyGroupTemplate(eg, row)
					} else {
						out[i] = el.Clone()
					}
				}
				return out
			}
		}
	}
	return tmpl.Clone()
}
