package gojaelm

import (
	"maps"
	"path/filepath"
	"strings"

	"github.com/go-openapi/inflect"
)

// ArtifactExt is the extension of the compiled artifact.
const ArtifactExt = ".js"

// RunConfig describes a single run. Use [NewRunConfig] to derive the paths
// and module name from a source file.
type RunConfig struct {
	// InitialValues are passed to the module as its flags.
	InitialValues map[string]any

	SourcePath string

	// OutputPath is where the artifact is written, a sibling of SourcePath.
	OutputPath string

	// ModuleName is the key looked up in the Elm registry. Dots address
	// nested modules, e.g. "Pages.Home".
	ModuleName string
}

// NewRunConfig derives a [RunConfig] from a source path. Given
// "app/counter.elm", OutputPath is "app/counter.js", and ModuleName is
// "Counter". The initial values are copied.
func NewRunConfig(sourcePath string, initialValues map[string]any) RunConfig {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	cfg := RunConfig{
		SourcePath: sourcePath,
		OutputPath: filepath.Join(filepath.Dir(sourcePath), base+ArtifactExt),
		ModuleName: ModuleIdentifier(base),
	}
	if initialValues != nil {
		cfg.InitialValues = maps.Clone(initialValues)
	} else {
		cfg.InitialValues = make(map[string]any)
	}
	return cfg
}

// ModuleIdentifier converts a file base name into the identifier of the
// module it defines, e.g. "counter_app" becomes "CounterApp".
//
// The conversion singularizes, like a class name derived from a table
// name, so "Stats" maps to "Stat". Use [WithModuleName] when that is wrong.
func ModuleIdentifier(baseName string) string {
	return inflect.Typeify(baseName)
}
