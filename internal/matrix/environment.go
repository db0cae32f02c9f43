package matrix

// Variable is one resolved name/value pair.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Environment is an ordered set of resolved variables. Absence of a name is
// meaningful: consumers apply their own default.
type Environment []Variable

// Lookup returns the value of name and whether it is present.
func (e Environment) Lookup(name string) (string, bool) {
	for _, v := range e {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// Names returns the variable names in order.
func (e Environment) Names() []string {
	names := make([]string, len(e))
	for i, v := range e {
		names[i] = v.Name
	}
	return names
}

// Map returns the variables as a map.
func (e Environment) Map() map[string]string {
	m := make(map[string]string, len(e))
	for _, v := range e {
		m[v.Name] = v.Value
	}
	return m
}

// Pairs returns NAME=value strings in order, the form container engines take.
func (e Environment) Pairs() []string {
	pairs := make([]string, len(e))
	for i, v := range e {
		pairs[i] = v.Name + "=" + v.Value
	}
	return pairs
}

// With returns a copy of e with name set to value, replacing any existing
// entry in place.
func (e Environment) With(name, value string) Environment {
	out := make(Environment, 0, len(e)+1)
	replaced := false
	for _, v := range e {
		if v.Name == name {
			out = append(out, Variable{Name: name, Value: value})
			replaced = true
			continue
		}
		out = append(out, v)
	}
	if !replaced {
		out = append(out, Variable{Name: name, Value: value})
	}
	return out
}
