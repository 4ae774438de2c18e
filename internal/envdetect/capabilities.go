package envdetect

// CollectionMethod names a primitive data-gathering mechanism. It doubles as
// a capability-table key and as provenance metadata on strategy results.
type CollectionMethod string

const (
	MethodCgroupV1        CollectionMethod = "cgroup_v1"
	MethodCgroupV2        CollectionMethod = "cgroup_v2"
	MethodProcFilesystem  CollectionMethod = "proc_filesystem"
	MethodHardwareAccess  CollectionMethod = "hardware_access"
	MethodSystemdServices CollectionMethod = "systemd_services"
	MethodContainerLimits CollectionMethod = "container_limits"
	MethodNetworkNS       CollectionMethod = "network_namespaces"
	MethodFilesystemFull  CollectionMethod = "filesystem_full"
	MethodProcessTreeFull CollectionMethod = "process_tree_full"
	MethodVendorAPI       CollectionMethod = "vendor_api"
	MethodVendorCLI       CollectionMethod = "vendor_cli"
)

type capability struct {
	available map[CollectionMethod]bool
	preferred []CollectionMethod
	fallback  []CollectionMethod
}

func methodSet(methods ...CollectionMethod) map[CollectionMethod]bool {
	out := make(map[CollectionMethod]bool, len(methods))
	for _, m := range methods {
		out[m] = true
	}
	return out
}

var capabilities = map[EnvironmentType]capability{
	EnvContainer: {
		available: methodSet(MethodCgroupV1, MethodCgroupV2, MethodProcFilesystem,
			MethodContainerLimits, MethodNetworkNS),
		preferred: []CollectionMethod{MethodCgroupV2, MethodCgroupV1, MethodContainerLimits},
		fallback:  []CollectionMethod{MethodProcFilesystem, MethodNetworkNS},
	},
	EnvProxmoxHost: {
		available: methodSet(MethodCgroupV1, MethodCgroupV2, MethodProcFilesystem,
			MethodHardwareAccess, MethodSystemdServices, MethodFilesystemFull,
			MethodProcessTreeFull, MethodVendorAPI, MethodVendorCLI),
		preferred: []CollectionMethod{MethodHardwareAccess, MethodProcFilesystem, MethodVendorCLI},
		fallback:  []CollectionMethod{MethodCgroupV2, MethodCgroupV1},
	},
	EnvGenericHost: {
		available: methodSet(MethodCgroupV1, MethodCgroupV2, MethodProcFilesystem,
			MethodHardwareAccess, MethodSystemdServices, MethodFilesystemFull,
			MethodProcessTreeFull),
		preferred: []CollectionMethod{MethodHardwareAccess, MethodProcFilesystem, MethodSystemdServices},
		fallback:  []CollectionMethod{MethodCgroupV2, MethodCgroupV1},
	},
	EnvUnknown: {
		available: methodSet(MethodProcFilesystem),
		preferred: []CollectionMethod{MethodProcFilesystem},
	},
}

// domainPreferences overrides the environment-wide preference order for
// specific metric domains.
var domainPreferences = map[string]map[EnvironmentType][]CollectionMethod{
	"memory": {
		EnvContainer:   {MethodCgroupV2, MethodCgroupV1, MethodContainerLimits, MethodProcFilesystem},
		EnvProxmoxHost: {MethodProcFilesystem, MethodHardwareAccess, MethodCgroupV2},
		EnvGenericHost: {MethodProcFilesystem, MethodHardwareAccess, MethodCgroupV2},
	},
	"cpu": {
		EnvContainer:   {MethodCgroupV2, MethodCgroupV1, MethodProcFilesystem},
		EnvProxmoxHost: {MethodHardwareAccess, MethodProcFilesystem, MethodCgroupV2},
		EnvGenericHost: {MethodHardwareAccess, MethodProcFilesystem, MethodCgroupV2},
	},
	"filesystem": {
		EnvContainer:   {MethodProcFilesystem, MethodCgroupV2, MethodCgroupV1},
		EnvProxmoxHost: {MethodFilesystemFull, MethodHardwareAccess, MethodProcFilesystem},
		EnvGenericHost: {MethodFilesystemFull, MethodHardwareAccess, MethodProcFilesystem},
	},
	"network": {
		EnvContainer:   {MethodNetworkNS, MethodProcFilesystem},
		EnvProxmoxHost: {MethodProcFilesystem, MethodHardwareAccess, MethodNetworkNS},
		EnvGenericHost: {MethodProcFilesystem, MethodHardwareAccess, MethodNetworkNS},
	},
	"process": {
		EnvContainer:   {MethodProcFilesystem, MethodCgroupV2, MethodCgroupV1},
		EnvProxmoxHost: {MethodProcessTreeFull, MethodProcFilesystem, MethodSystemdServices},
		EnvGenericHost: {MethodProcessTreeFull, MethodProcFilesystem, MethodSystemdServices},
	},
	"zfs": {
		EnvProxmoxHost: {MethodVendorCLI, MethodHardwareAccess},
		EnvGenericHost: {MethodHardwareAccess},
	},
	"hypervisor": {
		EnvProxmoxHost: {MethodVendorAPI, MethodVendorCLI},
	},
}

// OptimalMethods returns the ordered collection methods for a domain in an
// environment: the per-domain preference list filtered by the environment's
// available set, or the environment's generic fallback list when the
// filtered list is empty. Pure lookup, no side effects.
func OptimalMethods(env EnvironmentType, domain string) []CollectionMethod {
	c, ok := capabilities[env]
	if !ok {
		c = capabilities[EnvUnknown]
	}

	preferred := c.preferred
	if byEnv, ok := domainPreferences[domain]; ok {
		if methods, ok := byEnv[env]; ok {
			preferred = methods
		}
	}

	out := make([]CollectionMethod, 0, len(preferred))
	for _, m := range preferred {
		if c.available[m] {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		for _, m := range c.fallback {
			if c.available[m] {
				out = append(out, m)
			}
		}
	}
	return out
}

// HasMethod reports whether an environment supports a collection method.
func HasMethod(env EnvironmentType, method CollectionMethod) bool {
	c, ok := capabilities[env]
	if !ok {
		c = capabilities[EnvUnknown]
	}
	return c.available[method]
}
