//go:build !cuda

package checks

// optionalConstructors returns no extra checkers when built without CUDA support
func optionalConstructors() []Constructor {
	return nil
}
