//go:build cuda

package checks

func optionalConstructors() []Constructor {
	return []Constructor{newGPUFromConfig}
}
