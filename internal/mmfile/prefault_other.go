//go:build !linux

package mmfile

// PreFault faults in every page of data, reporting an inaccessible page as
// an error.
func PreFault(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return touchPages(data)
}
