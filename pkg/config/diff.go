package config

import "reflect"

// DiffKind identifies the structural shape of a single config change.
type DiffKind int

const (
	GlobalConfigModified DiffKind = iota
	ServiceAdded
	ServiceRemoved
	ServiceModified
)

func (k DiffKind) String() string {
	switch k {
	case GlobalConfigModified:
		return "GlobalConfigModified"
	case ServiceAdded:
		return "ServiceAdded"
	case ServiceRemoved:
		return "ServiceRemoved"
	case ServiceModified:
		return "ServiceModified"
	default:
		return "Unknown"
	}
}

// Diff is one entry in the ordered sequence of structural changes between
// two validated configs. Old/New are populated for ServiceModified only;
// for ServiceAdded only New is set; for ServiceRemoved only Name is set.
type Diff struct {
	Kind DiffKind
	Name string
	Old  *ServiceConfig
	New  *ServiceConfig
}

// ComputeDiff computes the ordered sequence of differences between old and
// new, per spec §4.4: GlobalConfigModified first (if any), then
// ServiceAdded for names new to new, ServiceRemoved for names missing from
// new, ServiceModified for names present in both with unequal value.
func ComputeDiff(old, new *Config) []Diff {
	var diffs []Diff

	if !reflect.DeepEqual(old.Global, new.Global) {
		diffs = append(diffs, Diff{Kind: GlobalConfigModified})
	}

	oldByName := make(map[string]ServiceConfig, len(old.Services))
	for _, svc := range old.Services {
		oldByName[svc.Name] = svc
	}
	newByName := make(map[string]ServiceConfig, len(new.Services))
	for _, svc := range new.Services {
		newByName[svc.Name] = svc
	}

	for _, svc := range new.Services {
		if _, ok := oldByName[svc.Name]; !ok {
			svc := svc
			diffs = append(diffs, Diff{Kind: ServiceAdded, Name: svc.Name, New: &svc})
		}
	}
	for _, svc := range old.Services {
		if _, ok := newByName[svc.Name]; !ok {
			diffs = append(diffs, Diff{Kind: ServiceRemoved, Name: svc.Name})
		}
	}
	for _, newSvc := range new.Services {
		oldSvc, ok := oldByName[newSvc.Name]
		if !ok {
			continue
		}
		if !reflect.DeepEqual(oldSvc, newSvc) {
			o, n := oldSvc, newSvc
			diffs = append(diffs, Diff{Kind: ServiceModified, Name: newSvc.Name, Old: &o, New: &n})
		}
	}

	return diffs
}

// RequiresRestart reports whether any diff changes a parameter that
// requires restarting the affected probe task to take effect: the global
// block, or a service's url/method/expected-status-codes/interval.
func RequiresRestart(diffs []Diff) bool {
	for _, d := range diffs {
		switch d.Kind {
		case GlobalConfigModified:
			return true
		case ServiceModified:
			if d.Old.URL != d.New.URL ||
				d.Old.HTTPMethod != d.New.HTTPMethod ||
				!reflect.DeepEqual(d.Old.ExpectedStatusCodes, d.New.ExpectedStatusCodes) ||
				!intPtrEqual(d.Old.OverrideCheckIntervalSec, d.New.OverrideCheckIntervalSec) {
				return true
			}
		}
	}
	return false
}

// intPtrEqual compares two optional int fields by value rather than by
// pointer identity.
func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
