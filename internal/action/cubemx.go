package action

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/projectconfig"
)

// Markers printed by STM32CubeMX in headless mode. The spelling of the
// success marker is the tool's own.
const (
	CubeMXSuccessMarker = "Code succesfully generated"
	CubeMXErrorMarker   = "Exception in code generation"
)

// cubemxCommand invokes CubeMX directly, or through java -jar when a Java
// command is configured.
func cubemxCommand(app projectconfig.App, script, dir string) Command {
	if app.JavaCmd != "" {
		return Command{Name: app.JavaCmd, Args: []string{"-jar", app.CubeMXCmd, "-q", script}, Dir: dir}
	}
	return Command{Name: app.CubeMXCmd, Args: []string{"-q", script}, Dir: dir}
}

// expandScript substitutes ${ioc_file_absolute_path} and
// ${project_dir_absolute_path}. Unknown placeholders are left as written.
func expandScript(script, ioc, dir string) string {
	return os.Expand(script, func(key string) string {
		switch key {
		case "ioc_file_absolute_path":
			return ioc
		case "project_dir_absolute_path":
			return dir
		default:
			return "${" + key + "}"
		}
	})
}

func generateCode(ctx context.Context, env *Env) error {
	cfg, err := env.Settings()
	if err != nil {
		return err
	}
	dir, err := filepath.Abs(env.Location)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot resolve project directory").Build()
	}
	ioc, err := projectconfig.ResolveIOC(dir, cfg.Project)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryAction, "no CubeMX project file").Build()
	}

	script := cfg.Project.CubeMXScriptContent
	if strings.TrimSpace(script) == "" {
		script = projectconfig.DefaultCubeMXScript
	}
	tmp, err := os.CreateTemp("", "cubepio-cubemx-*.txt")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot create CubeMX script").Build()
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	_, werr := tmp.WriteString(expandScript(script, ioc, dir) + "\n")
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return ferrors.WrapError(werr, ferrors.CategoryFileSystem, "cannot write CubeMX script").Build()
	}

	var succeeded, failed bool
	cmd := cubemxCommand(cfg.App, tmp.Name(), dir)
	env.Log("$ %s", cmd)
	runErr := env.Runner.Run(ctx, cmd, func(line string) {
		if strings.Contains(line, CubeMXSuccessMarker) {
			succeeded = true
		}
		if strings.Contains(line, CubeMXErrorMarker) {
			failed = true
		}
		env.toolLine(line)
	})
	if runErr != nil {
		return runErr
	}
	if failed || !succeeded {
		return ferrors.ActionError("CubeMX did not report successful code generation").Build()
	}
	env.Log("code generated in %s", dir)
	return nil
}
