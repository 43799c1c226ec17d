package action

import (
	"context"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/projectconfig"
)

// saveConfig writes cubepio.toml: tool defaults, then the existing file, then
// key=value overrides from the arguments.
func saveConfig(_ context.Context, env *Env) error {
	existing, _, err := projectconfig.Load(env.Location)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "cannot read project config").Build()
	}
	file := projectconfig.Merge(env.Defaults, existing)
	if file.Project.CubeMXScriptContent == "" {
		file.Project.CubeMXScriptContent = projectconfig.DefaultCubeMXScript
	}
	if file.Project.PlatformIOINIPatchContent == "" {
		file.Project.PlatformIOINIPatchContent = projectconfig.DefaultPlatformIOPatch
	}

	file, err = projectconfig.ApplyOverrides(file, env.Args)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "invalid config override").Build()
	}
	if err := projectconfig.Save(env.Location, file); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot save project config").Build()
	}
	env.Log("config saved to %s", projectconfig.Path(env.Location))
	return nil
}
