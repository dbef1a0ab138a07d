package selector

// ResolveParentRefs resolves the parent references of child against parent.
//
// Each complex selector of child without a parent reference is nested in
// every complex selector of parent as a descendant (or using its leading
// combinator). Each parent reference is replaced by every complex selector
// of parent, producing the cartesian product. The results of the child
// complexes are interleaved so parents come first: ".a, .b" resolving
// ".c, .d" yields ".a .c, .a .d, .b .c, .b .d".
//
// A nil parent is only valid when child contains no parent reference.
func ResolveParentRefs(child, parent *List) (*List, error) {
	if parent.Len() == 0 {
		for _, c := range child.Complexes {
			if c.HasParent() {
				return nil, &Error{
					Text: child.String(),
					Msg: "top-level selectors may not contain " +
						"the parent selector \"&\"",
				}
			}

			if len(c.Steps) > 0 && c.Steps[0].Combinator != Descendant {
				return nil, &Error{
					Text: child.String(),
					Msg:  "top-level selectors may not begin with a combinator",
				}
			}
		}

		return child.Clone(), nil
	}

	groups := make([][]Complex, 0, len(child.Complexes))

	for _, c := range child.Complexes {
		if !c.HasParent() {
			nested := make([]Complex, len(parent.Complexes))
			for i, p := range parent.Complexes {
				nested[i] = nest(p, c)
			}

			groups = append(groups, nested)

			continue
		}

		resolved, err := substitute(c, parent)
		if err != nil {
			return nil, err
		}

		groups = append(groups, resolved)
	}

	return &List{Complexes: interleave(groups)}, nil
}

// interleave takes the first element of each group, then the second, and
// so on.
func interleave(groups [][]Complex) []Complex {
	var out []Complex

	for i := 0; ; i++ {
		taken := false

		for _, g := range groups {
			if i < len(g) {
				out = append(out, g[i])
				taken = true
			}
		}

		if !taken {
			return out
		}
	}
}

// nest appends the steps of child after those of parent.
func nest(parent, child Complex) Complex {
	steps := make([]Step, 0, len(parent.Steps)+len(child.Steps))
	steps = append(steps, cloneSteps(parent.Steps)...)
	steps = append(steps, cloneSteps(child.Steps)...)

	return Complex{Steps: steps}
}

// substitute replaces each parent reference in c by every complex selector
// of parent.
func substitute(c Complex, parent *List) ([]Complex, error) {
	paths := [][]Step{{}}

	for _, step := range c.Steps {
		if !step.Compound.HasParent() {
			for i := range paths {
				paths[i] = append(paths[i], cloneStep(step))
			}

			continue
		}

		next := make([][]Step, 0, len(paths)*len(parent.Complexes))

		for _, path := range paths {
			for _, p := range parent.Complexes {
				steps, err := expand(step, p)
				if err != nil {
					return nil, err
				}

				next = append(next, append(cloneSteps(path), steps...))
			}
		}

		paths = next
	}

	out := make([]Complex, len(paths))
	for i, path := range paths {
		out[i] = Complex{Steps: path}
	}

	return out, nil
}

// expand returns the steps that replace step, whose compound begins with a
// parent reference, when that reference resolves to p.
func expand(step Step, p Complex) ([]Step, error) {
	if len(p.Steps) == 0 {
		return nil, &Error{Msg: "empty parent selector"}
	}

	steps := cloneSteps(p.Steps)

	if step.Combinator != Descendant {
		steps[0].Combinator = step.Combinator
	}

	ref := step.Compound.Simples[0]
	last := &steps[len(steps)-1].Compound

	if ref.Suffix != "" {
		n := len(last.Simples)
		if n == 0 {
			return nil, &Error{Text: p.String(), Msg: "invalid parent selector"}
		}

		switch tail := &last.Simples[n-1]; tail.Kind {
		case Type, Class, ID, Placeholder:
			tail.Name += ref.Suffix
		default:
			return nil, &Error{
				Text: p.String(),
				Msg:  "invalid parent selector for suffix \"&" + ref.Suffix + "\"",
			}
		}
	}

	last.Simples = append(last.Simples, step.Compound.Simples[1:]...)

	return steps, nil
}

func cloneStep(s Step) Step {
	return Step{
		Combinator: s.Combinator,
		Compound:   Compound{Simples: append([]Simple(nil), s.Compound.Simples...)},
	}
}

func cloneSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = cloneStep(s)
	}

	return out
}
