//go:build !windows

package fileicon

// NewSystemSource returns ErrUnsupportedPlatform on platforms without an icon
// binding. Use WithPlatform to supply one.
func NewSystemSource() (Platform, error) {
	return nil, ErrUnsupportedPlatform
}
