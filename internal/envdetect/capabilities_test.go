package envdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptimalMethodsUsesDomainPreference(t *testing.T) {
	methods := OptimalMethods(EnvContainer, "memory")

	assert.Equal(t, []CollectionMethod{
		MethodCgroupV2, MethodCgroupV1, MethodContainerLimits, MethodProcFilesystem,
	}, methods)
}

func TestOptimalMethodsFiltersUnavailable(t *testing.T) {
	// The zfs preference for a generic host names hardware access only;
	// vendor CLI methods are reserved for the hypervisor environment.
	methods := OptimalMethods(EnvGenericHost, "zfs")

	assert.Equal(t, []CollectionMethod{MethodHardwareAccess}, methods)
	for _, m := range methods {
		assert.True(t, HasMethod(EnvGenericHost, m))
	}
}

func TestOptimalMethodsFallsBackForUnknownDomain(t *testing.T) {
	methods := OptimalMethods(EnvContainer, "gpu")

	// No domain preference: the environment-wide preferred list applies.
	assert.Equal(t, []CollectionMethod{
		MethodCgroupV2, MethodCgroupV1, MethodContainerLimits,
	}, methods)
}

func TestOptimalMethodsUnknownEnvironment(t *testing.T) {
	methods := OptimalMethods(EnvironmentType("weird"), "memory")

	assert.Equal(t, []CollectionMethod{MethodProcFilesystem}, methods)
}

func TestHasMethod(t *testing.T) {
	assert.True(t, HasMethod(EnvProxmoxHost, MethodVendorCLI))
	assert.False(t, HasMethod(EnvContainer, MethodVendorCLI))
	assert.False(t, HasMethod(EnvUnknown, MethodHardwareAccess))
}
