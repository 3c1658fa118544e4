//go:build !linux

package runbox

import "fmt"

func nsjailProviderConfig(NsjailConfig) (any, error) {
	return nil, fmt.Errorf("%w: nsjail requires linux", ErrProviderUnavailable)
}
