package filter

// Compiled is a canonical tag filter: a global condition hoisted out of an OR of branches.
//
// A record matches when it satisfies the global condition and, if any branches
// remain, at least one branch in full. The global condition is always implied by
// every branch, so it acts as a cheap prefilter that stores can evaluate first.
type Compiled struct {
	GlobalAll  TagSet
	GlobalAny  TagSet
	GlobalNone TagSet
	Branches   []Branch
}

// Option configures Compile.
type Option func(*compileOptions)

type compileOptions struct {
	onMalformed func(raw string, err error)
}

// OnMalformed registers a callback for complex entries dropped during parsing.
func OnMalformed(fn func(raw string, err error)) Option {
	return func(o *compileOptions) { o.onMalformed = fn }
}

// Compile turns raw tag inputs into a size-minimized Compiled filter.
// Global inputs become one extra branch placed before the complex ones.
// Malformed complex entries are dropped.
func Compile(all, anyOf, none, complex []string, opts ...Option) Compiled {
	var o compileOptions
	for _, opt := range opts {
		opt(&o)
	}

	branches := make([]Branch, 0, len(complex)+1)
	if g := NewBranch(all, anyOf, none); !g.IsEmpty() {
		branches = append(branches, g)
	}
	for _, raw := range complex {
		b, err := ParseBranch(raw)
		if err != nil {
			if o.onMalformed != nil {
				o.onMalformed(raw, err)
			}
			continue
		}
		if b.IsEmpty() {
			continue
		}
		branches = append(branches, b)
	}
	return CompileBranches(branches)
}

// CompileBranches hoists conditions shared by the OR of branches into the global sets.
// Empty branches are ignored.
func CompileBranches(in []Branch) Compiled {
	branches := dedupe(in)
	if len(branches) == 0 {
		return Compiled{}
	}

	globalAll := branches[0].All
	globalNone := branches[0].None
	for _, b := range branches[1:] {
		globalAll = globalAll.Intersect(b.All)
		globalNone = globalNone.Intersect(b.None)
	}

	// Every matching record carries at least one residual tag of the branch it
	// matched, so the union is a valid prefilter only if no branch is left without one.
	var globalAny TagSet
	for _, b := range branches {
		residual := b.Any.Union(b.All.Minus(globalAll))
		if residual.IsEmpty() {
			globalAny = nil
			break
		}
		globalAny = globalAny.Union(residual)
	}

	c := Compiled{
		GlobalAll:  globalAll.clone(),
		GlobalAny:  globalAny,
		GlobalNone: globalNone.clone(),
		Branches:   branches,
	}
	if len(branches) == 1 && c.global().Equal(branches[0]) {
		c.Branches = nil
	}
	return c
}

// Recompile runs the compiled output through the compiler again.
// With no branches left the globals are fed back as a single branch.
func (c Compiled) Recompile() Compiled {
	if len(c.Branches) == 0 {
		return CompileBranches([]Branch{c.global()})
	}
	return CompileBranches(c.Branches)
}

// IsEmpty reports whether the filter places no restriction on tags.
func (c Compiled) IsEmpty() bool {
	return len(c.Branches) == 0 && c.global().IsEmpty()
}

// Match reports whether a record with the given tags passes the filter.
func (c Compiled) Match(has Lookup) bool {
	if !c.global().Match(has) {
		return false
	}
	if len(c.Branches) == 0 {
		return true
	}
	for _, b := range c.Branches {
		if b.Match(has) {
			return true
		}
	}
	return false
}

// MatchTags is Match over a plain tag list.
func (c Compiled) MatchTags(tags []string) bool {
	return c.Match(LookupSet(tags))
}

// Global returns the hoisted global condition as a branch.
func (c Compiled) Global() Branch { return c.global() }

// Equal reports whether both filters have identical globals and the same branch set.
func (c Compiled) Equal(o Compiled) bool {
	if !c.global().Equal(o.global()) || len(c.Branches) != len(o.Branches) {
		return false
	}
	for _, b := range c.Branches {
		found := false
		for _, ob := range o.Branches {
			if b.Equal(ob) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (c Compiled) global() Branch {
	return Branch{All: c.GlobalAll, Any: c.GlobalAny, None: c.GlobalNone}
}

func dedupe(in []Branch) []Branch {
	out := make([]Branch, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, b := range in {
		if b.IsEmpty() {
			continue
		}
		key := b.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}
	return out
}
