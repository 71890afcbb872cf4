package hub

import (
	"fmt"
	"regexp"
	"strings"
)

// DataCite schema namespaces.
const (
	NamespaceKernel3 = "http://datacite.org/schema/kernel-3"
	NamespaceKernel4 = "http://datacite.org/schema/kernel-4"
)

// Kernel generations understood by the adapters.
const (
	Kernel3 = "kernel-3"
	Kernel4 = "kernel-4"
)

// CurrentKernelVersion is the kernel-4 minor version written on output.
const CurrentKernelVersion = "4.6"

var kernelNamespaceRegex = regexp.MustCompile(`^https?://datacite\.org/schema/kernel-(\d+)(?:\.(\d+))?/?$`)

// UnsupportedSchemaError reports a schema version that can no longer be
// read or written. It is fatal: no partial processing follows it.
type UnsupportedSchemaError struct {
	Schema string
}

func (e *UnsupportedSchemaError) Error() string {
	return fmt.Sprintf("Schema %s is no longer supported", e.Schema)
}

// KernelOf maps a schema namespace (or a bare version such as "4.5") to its
// kernel generation. Namespaces below kernel-3 and the versioned kernel-3.0
// and kernel-3.1 namespace URIs are rejected with *UnsupportedSchemaError.
// An empty namespace means the current kernel-4.
func KernelOf(schema string) (string, error) {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		return Kernel4, nil
	}

	if m := kernelNamespaceRegex.FindStringSubmatch(schema); m != nil {
		major, minor := m[1], m[2]
		switch {
		case major == "4":
			return Kernel4, nil
		case major == "3" && minor == "":
			return Kernel3, nil
		}
		return "", &UnsupportedSchemaError{Schema: schema}
	}

	// Bare version numbers, as found in xsi:schemaLocation or schemaVersion.
	major, minor, _ := strings.Cut(strings.TrimPrefix(schema, "kernel-"), ".")
	switch major {
	case "4":
		switch minor {
		case "", "0", "1", "2", "3", "4", "5", "6", "7":
			return Kernel4, nil
		}
	case "3":
		switch minor {
		case "", "0", "1":
			return Kernel3, nil
		}
	}
	return "", &UnsupportedSchemaError{Schema: schema}
}

// NamespaceFor returns the canonical namespace of a kernel generation.
func NamespaceFor(kernel string) string {
	if kernel == Kernel3 {
		return NamespaceKernel3
	}
	return NamespaceKernel4
}
