package ids

import "github.com/segmentio/ksuid"

// New returns a sortable opaque identifier, used for generated object keys.
func New() string {
	return ksuid.New().String()
}
