// Package version pins the library version exported through the C ABI.
package version

import "fmt"

const (
	Major = 0
	Minor = 1
	Patch = 0
)

// String is the dotted form, e.g. "0.1.0".
var String = fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
