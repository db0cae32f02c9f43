package topology

import (
	"fmt"
	"sort"
	"strings"
)

func sortDependencies(deps []Dependency) {
	sort.Slice(deps, func(i, j int) bool { return deps[i].Service < deps[j].Service })
}

// StartOrder returns the services in an order where every service follows
// all of its dependencies. Ties are broken by name so the order is stable.
func (d *Descriptor) StartOrder() ([]string, error) {
	indegree := make(map[string]int, len(d.Services))
	dependents := make(map[string][]string, len(d.Services))

	for _, name := range d.Names() {
		svc := d.Services[name]
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, dep := range svc.DependsOn {
			if _, ok := d.Services[dep.Service]; !ok {
				return nil, fmt.Errorf("service %q depends on %q, but %q does not exist", name, dep.Service, dep.Service)
			}
			indegree[name]++
			dependents[dep.Service] = append(dependents[dep.Service], name)
		}
	}

	var ready []string
	for name, n := range indegree {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(d.Services))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
				sort.Strings(ready)
			}
		}
	}

	if len(order) != len(d.Services) {
		var cyclic []string
		for name, n := range indegree {
			if n > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		return nil, fmt.Errorf("circular dependency between services: %s", strings.Join(cyclic, ", "))
	}
	return order, nil
}

// Dependents returns the services that depend directly on name, sorted.
func (d *Descriptor) Dependents(name string) []string {
	var out []string
	for _, svc := range d.Services {
		for _, dep := range svc.DependsOn {
			if dep.Service == name {
				out = append(out, svc.Name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
