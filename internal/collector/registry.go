package collector

import (
	"fmt"
	"sort"

	"sysotel-agent/internal/envdetect"
	"sysotel-agent/internal/strategy"
)

type factory func(s strategy.CollectionStrategy, labels map[string]string) Collector

// factories is the static collector registry. Adding a domain means adding
// one entry here.
var factories = map[string]factory{
	"memory": func(s strategy.CollectionStrategy, l map[string]string) Collector {
		return NewMemoryCollector(s, l)
	},
	"cpu": func(s strategy.CollectionStrategy, l map[string]string) Collector {
		return NewCPUCollector(s, l)
	},
	"filesystem": func(s strategy.CollectionStrategy, l map[string]string) Collector {
		return NewFilesystemCollector(s, l)
	},
	"network": func(s strategy.CollectionStrategy, l map[string]string) Collector {
		return NewNetworkCollector(s, l)
	},
	"process": func(s strategy.CollectionStrategy, l map[string]string) Collector {
		return NewProcessCollector(s, l)
	},
	"zfs": func(s strategy.CollectionStrategy, l map[string]string) Collector {
		return NewZFSCollector(s, l)
	},
	"sensors_cpu": func(s strategy.CollectionStrategy, l map[string]string) Collector {
		return NewSensorsCollector(s, l)
	},
	"sensors_nvme": func(s strategy.CollectionStrategy, l map[string]string) Collector {
		return NewNVMeCollector(s, l)
	},
	"hypervisor": func(s strategy.CollectionStrategy, l map[string]string) Collector {
		return NewHypervisorCollector(s, l)
	},
}

// coreCollectors run everywhere. The host-only set depends on tooling that
// the strategies probe for, so enabling them on any host is safe: a missing
// tool degrades to a silent not-supported result.
var (
	coreCollectors     = []string{"memory", "cpu", "filesystem", "network", "process"}
	hostOnlyCollectors = []string{"zfs", "sensors_cpu", "sensors_nvme", "hypervisor"}
)

// DefaultNames returns the collectors enabled by default for an environment.
func DefaultNames(env envdetect.EnvironmentType) []string {
	switch env {
	case envdetect.EnvProxmoxHost, envdetect.EnvGenericHost:
		return append(append([]string{}, coreCollectors...), hostOnlyCollectors...)
	default:
		return append([]string{}, coreCollectors...)
	}
}

// Build instantiates the named collectors against one strategy. Unknown
// names are a configuration error, not a skip.
func Build(names []string, s strategy.CollectionStrategy, labels map[string]string) ([]Collector, error) {
	out := make([]Collector, 0, len(names))
	for _, name := range names {
		f, ok := factories[name]
		if !ok {
			return nil, fmt.Errorf("unknown collector %q (known: %v)", name, KnownNames())
		}
		out = append(out, f(s, labels))
	}
	return out, nil
}

// KnownNames lists every registered collector, sorted.
func KnownNames() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
