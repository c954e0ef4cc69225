package geo

import "fmt"

// GeometryLoadError is returned when a boundary cannot be loaded, parsed or
// reprojected to WGS84, or when no grid can be built from it.
type GeometryLoadError struct {
	Source string
	Reason string
	Err    error
}

func (e *GeometryLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geometry load failed for %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("geometry load failed for %s: %s", e.Source, e.Reason)
}

func (e *GeometryLoadError) Unwrap() error {
	return e.Err
}
