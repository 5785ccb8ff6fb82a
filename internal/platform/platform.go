// Package platform isolates the platform-variant naming and fixup decisions
// behind pure lookups keyed by an OS identifier, so the build and load logic
// stays free of conditional compilation.
package platform

// FileStem returns the on-disk stem of a built dynamic library.
// Unix-family toolchains prefix the library name with "lib"; Windows does not.
func FileStem(goos, libName string) string {
	if goos == "windows" {
		return libName
	}

	return "lib" + libName
}

// DylibExt returns the dynamic-library filename extension for the OS,
// without a leading dot.
func DylibExt(goos string) string {
	switch goos {
	case "darwin", "ios":
		return "dylib"
	case "windows":
		return "dll"
	default:
		return "so"
	}
}

// FixupCommand returns the post-copy fixup command for a freshly copied
// library file, or nil when the OS needs none.
//
// On macOS the loader identifies libraries by their embedded install name,
// so a copy keeping the original id would alias the file it was copied from.
// Blanking the id with install_name_tool makes the copy reloadable.
func FixupCommand(goos, fileName string) []string {
	if goos == "darwin" {
		return []string{"install_name_tool", "-id", "''", fileName}
	}

	return nil
}
