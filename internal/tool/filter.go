package tool

// Filter applies allow/deny rules to tool names.
type Filter struct {
	allowed map[string]bool // if non-empty, only these tools are allowed
	denied  map[string]bool // these tools are always denied
}

// NewFilter creates a filter from allow/deny lists.
// If allowed is non-empty, only those tools are permitted.
// Denied tools are always blocked regardless of the allow list.
func NewFilter(allowed, denied []string) *Filter {
	f := &Filter{
		allowed: make(map[string]bool),
		denied:  make(map[string]bool),
	}
	for _, t := range allowed {
		f.allowed[t] = true
	}
	for _, t := range denied {
		f.denied[t] = true
	}
	return f
}

// IsAllowed returns true if the tool name passes the filter.
func (f *Filter) IsAllowed(name string) bool {
	if f == nil {
		return true
	}
	// Deny list always wins.
	if f.denied[name] {
		return false
	}
	if len(f.allowed) > 0 {
		return f.allowed[name]
	}
	return true
}

// IsEmpty returns true if the filter has no rules.
func (f *Filter) IsEmpty() bool {
	return f == nil || (len(f.allowed) == 0 && len(f.denied) == 0)
}
