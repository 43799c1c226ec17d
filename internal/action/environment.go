package action

import (
	"context"
	"os"
	"strings"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
)

// validateEnvironment checks that every configured tool command resolves.
func validateEnvironment(_ context.Context, env *Env) error {
	cfg, err := env.Settings()
	if err != nil {
		return err
	}
	checks := []struct{ key, cmd string }{
		{"platformio_cmd", cfg.App.PlatformIOCmd},
		{"cubemx_cmd", cfg.App.CubeMXCmd},
	}
	if cfg.App.JavaCmd != "" {
		checks = append(checks, struct{ key, cmd string }{"java_cmd", cfg.App.JavaCmd})
	}

	var missing []string
	for _, c := range checks {
		path, err := resolveTool(env.Runner, c.cmd)
		if err != nil {
			env.Log("%s: %q not found", c.key, c.cmd)
			missing = append(missing, c.key)
			continue
		}
		env.Log("%s: ok (%s)", c.key, path)
	}
	if len(missing) > 0 {
		return ferrors.ActionError("environment validation failed").
			WithContext("missing", strings.Join(missing, ",")).
			Build()
	}
	return nil
}

// resolveTool stats commands given as paths and looks bare names up on PATH.
func resolveTool(r ToolRunner, cmd string) (string, error) {
	if strings.TrimSpace(cmd) == "" {
		return "", os.ErrNotExist
	}
	if strings.ContainsRune(cmd, os.PathSeparator) || strings.ContainsRune(cmd, '/') {
		info, err := os.Stat(cmd)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", os.ErrNotExist
		}
		return cmd, nil
	}
	return r.LookPath(cmd)
}

// startEditor launches the editor named by the arguments on the project
// directory and returns without waiting for it.
func startEditor(ctx context.Context, env *Env) error {
	fields := strings.Fields(strings.Join(env.Args, " "))
	if len(fields) == 0 {
		return ferrors.ValidationError("editor command required").Build()
	}
	cmd := Command{Name: fields[0], Args: append(fields[1:], env.Location), Dir: env.Location}
	if err := env.Runner.Start(ctx, cmd); err != nil {
		return err
	}
	env.Log("started %s", cmd)
	return nil
}
