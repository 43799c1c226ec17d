package action

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
	"git.home.luguber.info/inful/cubepio/internal/pioini"
	"git.home.luguber.info/inful/cubepio/internal/projectconfig"
	"git.home.luguber.info/inful/cubepio/internal/testutil"
)

func runAction(t *testing.T, e *Executor, dir, name string, args ...string) ([]string, Message) {
	t.Helper()
	ch, err := e.Execute(t.Context(), Request{Location: dir, Action: name, Args: args})
	require.NoError(t, err)
	return collect(t, ch)
}

func TestSaveConfig_MergesDefaultsAndOverrides(t *testing.T) {
	dir := newProject(t)
	e := NewExecutor(testDefaults, WithRunner(newFakeRunner()))

	_, term := runAction(t, e, dir, SaveConfig, "board=nucleo_f031k6")
	require.True(t, term.Success)

	file, found, err := projectconfig.Load(dir)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "nucleo_f031k6", file.Project.Board)
	require.Equal(t, "platformio", file.App.PlatformIOCmd)
	require.Equal(t, projectconfig.DefaultCubeMXScript, file.Project.CubeMXScriptContent)

	// Existing values survive a save without overrides.
	_, term = runAction(t, e, dir, SaveConfig)
	require.True(t, term.Success)
	file, _, err = projectconfig.Load(dir)
	require.NoError(t, err)
	require.Equal(t, "nucleo_f031k6", file.Project.Board)
}

func TestSaveConfig_BadOverrideFails(t *testing.T) {
	dir := newProject(t)
	e := NewExecutor(testDefaults, WithRunner(newFakeRunner()))
	_, term := runAction(t, e, dir, SaveConfig, "colour=blue")
	require.False(t, term.Success)
	require.False(t, projectconfig.Exists(dir))
}

func TestGenerateCode_SuccessMarker(t *testing.T) {
	dir := newProject(t)
	r := newFakeRunner()
	var script string
	r.onRun = func(c Command) {
		data, err := os.ReadFile(c.Args[len(c.Args)-1])
		require.NoError(t, err)
		script = string(data)
	}
	r.output["cubemx"] = []string{"Starting", CubeMXSuccessMarker}
	e := NewExecutor(testDefaults, WithRunner(r))

	lines, term := runAction(t, e, dir, GenerateCode)
	require.True(t, term.Success, lines)
	require.Contains(t, lines, CubeMXSuccessMarker)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	require.Contains(t, script, "config load "+filepath.Join(abs, "board.ioc"))
	require.Contains(t, script, "generate code "+abs)
	require.NotContains(t, script, "${")
}

func TestGenerateCode_MarkerMissingOrError(t *testing.T) {
	for name, output := range map[string][]string{
		"no marker":  {"Starting"},
		"exception":  {CubeMXSuccessMarker, CubeMXErrorMarker},
		"only error": {CubeMXErrorMarker},
	} {
		t.Run(name, func(t *testing.T) {
			dir := newProject(t)
			r := newFakeRunner()
			r.output["cubemx"] = output
			_, term := runAction(t, NewExecutor(testDefaults, WithRunner(r)), dir, GenerateCode)
			require.False(t, term.Success)
		})
	}
}

func TestGenerateCode_ThroughJava(t *testing.T) {
	dir := newProject(t)
	r := newFakeRunner()
	r.output["java"] = []string{CubeMXSuccessMarker}
	defaults := testDefaults
	defaults.App.JavaCmd = "java"
	defaults.App.CubeMXCmd = "/opt/cubemx/STM32CubeMX.jar"

	_, term := runAction(t, NewExecutor(defaults, WithRunner(r)), dir, GenerateCode)
	require.True(t, term.Success)
	calls := r.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, []string{"-jar", "/opt/cubemx/STM32CubeMX.jar", "-q"}, calls[0].Args[:3])
}

func TestGenerateCode_NoIOC(t *testing.T) {
	r := newFakeRunner()
	_, term := runAction(t, NewExecutor(testDefaults, WithRunner(r)), t.TempDir(), GenerateCode)
	require.False(t, term.Success)
	require.Empty(t, r.Calls())
}

func TestPIOInit(t *testing.T) {
	dir := newProject(t)
	r := newFakeRunner()
	e := NewExecutor(testDefaults, WithRunner(r))

	lines, term := runAction(t, e, dir, PIOInit)
	require.False(t, term.Success)
	require.True(t, strings.Contains(strings.Join(lines, "\n"), "no PlatformIO board specified"))
	require.Empty(t, r.Calls())

	_, term = runAction(t, e, dir, PIOInit, "nucleo_f031k6")
	require.True(t, term.Success)
	calls := r.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "platformio", calls[0].Name)
	require.Equal(t, []string{"project", "init", "-d", dir, "-b", "nucleo_f031k6", "-O", "framework=stm32cube", "-s"}, calls[0].Args)
}

func TestBuild_ToolFailure(t *testing.T) {
	dir := newProject(t)
	r := newFakeRunner()
	r.output["platformio"] = []string{"Compiling .pio/build/main.o", "*** [firmware.elf] Error 1"}
	r.fail["platformio"] = errors.New("exit status 1")

	lines, term := runAction(t, NewExecutor(testDefaults, WithRunner(r)), dir, Build)
	require.False(t, term.Success)
	require.Equal(t, "$ platformio run -d "+dir, lines[0])
	require.Equal(t, "*** [firmware.elf] Error 1", lines[2])
	require.True(t, strings.HasPrefix(lines[len(lines)-1], "build failed: "))
}

func TestPatch(t *testing.T) {
	dir := newProject(t)
	e := NewExecutor(testDefaults, WithRunner(newFakeRunner()))

	_, term := runAction(t, e, dir, Patch)
	require.False(t, term.Success, "patch without platformio.ini")

	ini := filepath.Join(dir, "platformio.ini")
	require.NoError(t, os.WriteFile(ini, []byte("; generated\n[env:nucleo]\nboard = nucleo\n"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "include"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "include", "README"), []byte("x"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o750))

	lines, term := runAction(t, e, dir, Patch)
	require.True(t, term.Success, lines)
	require.NoDirExists(t, filepath.Join(dir, "include"))
	require.NoDirExists(t, filepath.Join(dir, "src"))

	data, err := os.ReadFile(ini)
	require.NoError(t, err)
	doc, err := pioini.Parse(string(data))
	require.NoError(t, err)
	want, err := pioini.Parse(projectconfig.DefaultPlatformIOPatch)
	require.NoError(t, err)
	require.True(t, doc.Contains(want))
	v, ok := doc.Get("env:nucleo", "board")
	require.True(t, ok)
	require.Equal(t, "nucleo", v)

	// Already patched: the file stays as is, the notice is logged and the
	// default folders recreated by pio_init are still removed.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "include"), 0o750))
	lines, term = runAction(t, e, dir, Patch)
	require.True(t, term.Success)
	require.Contains(t, lines, "platformio.ini already patched")
	require.NoDirExists(t, filepath.Join(dir, "include"))
	again, err := os.ReadFile(ini)
	require.NoError(t, err)
	require.Equal(t, string(data), string(again))
}

func TestClean_KeepsSourcesAndIgnored(t *testing.T) {
	dir := newProject(t)
	require.NoError(t, projectconfig.Save(dir, projectconfig.File{Project: projectconfig.Project{
		CleanupIgnore: "notes.md\nkeep/\n",
	}}))
	for _, p := range []string{"Inc/main.h", "Src/main.c", "platformio.ini", "notes.md", "keep/a.txt", "docs/keep/b.txt"} {
		testutil.WriteFile(t, dir, p, "x")
	}

	_, term := runAction(t, NewExecutor(testDefaults, WithRunner(newFakeRunner())), dir, Clean)
	require.True(t, term.Success)

	testutil.AssertPresent(t, dir, "board.ioc", projectconfig.FileName, "notes.md", "keep/a.txt", "docs/keep/b.txt")
	testutil.AssertAbsent(t, dir, "Inc", "Src", "platformio.ini")
}

func TestClean_RefusesWithoutIOC(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "important.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))

	_, term := runAction(t, NewExecutor(testDefaults, WithRunner(newFakeRunner())), dir, Clean)
	require.False(t, term.Success)
	require.FileExists(t, f)
}

func TestClean_Git(t *testing.T) {
	dir := newProject(t)
	require.NoError(t, projectconfig.Save(dir, projectconfig.File{Project: projectconfig.Project{CleanupUseGit: true}}))

	testutil.CommitAll(t, dir, "board.ioc", projectconfig.FileName)

	testutil.WriteFile(t, dir, "Src/main.c", "x")

	lines, term := runAction(t, NewExecutor(testDefaults, WithRunner(newFakeRunner())), dir, Clean)
	require.True(t, term.Success, lines)
	testutil.AssertPresent(t, dir, "board.ioc", projectconfig.FileName)
	testutil.AssertAbsent(t, dir, "Src/main.c")
}

func TestClean_GitRefusesUntrackedProjectFiles(t *testing.T) {
	dir := newProject(t)
	require.NoError(t, projectconfig.Save(dir, projectconfig.File{Project: projectconfig.Project{CleanupUseGit: true}}))
	testutil.CommitAll(t, dir, "board.ioc")
	testutil.WriteFile(t, dir, "Src/main.c", "x")

	lines, term := runAction(t, NewExecutor(testDefaults, WithRunner(newFakeRunner())), dir, Clean)
	require.False(t, term.Success)
	require.True(t, ferrors.HasCategory(term.Err, ferrors.CategoryGit))
	require.Contains(t, lines, "refusing git clean: "+projectconfig.FileName+" not committed")
	testutil.AssertPresent(t, dir, "board.ioc", projectconfig.FileName, "Src/main.c")
}

func TestValidateEnvironment(t *testing.T) {
	dir := newProject(t)
	r := newFakeRunner()
	r.paths["platformio"] = "/usr/bin/platformio"
	e := NewExecutor(testDefaults, WithRunner(r))

	lines, term := runAction(t, e, dir, ValidateEnvironment)
	require.False(t, term.Success)
	require.Contains(t, lines, "platformio_cmd: ok (/usr/bin/platformio)")
	require.Contains(t, lines, `cubemx_cmd: "cubemx" not found`)

	r.paths["cubemx"] = "/opt/cubemx"
	_, term = runAction(t, e, dir, ValidateEnvironment)
	require.True(t, term.Success)
}

func TestStartEditor(t *testing.T) {
	dir := newProject(t)
	r := newFakeRunner()
	e := NewExecutor(testDefaults, WithRunner(r))

	_, term := runAction(t, e, dir, StartEditor)
	require.False(t, term.Success)

	_, term = runAction(t, e, dir, StartEditor, "code -n")
	require.True(t, term.Success)
	require.Len(t, r.started, 1)
	require.Equal(t, "code", r.started[0].Name)
	require.Equal(t, []string{"-n", dir}, r.started[0].Args)
}

func TestExecRunner_StreamsLines(t *testing.T) {
	if _, err := (ExecRunner{}).LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var lines []string
	err := ExecRunner{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo one; echo two 1>&2; exit 3"}}, func(l string) {
		lines = append(lines, l)
	})
	require.Error(t, err)
	require.ElementsMatch(t, []string{"one", "two"}, lines)
}

func TestExecRunner_SplitsOversizedLines(t *testing.T) {
	for _, tool := range []string{"sh", "head", "tr"} {
		if _, err := (ExecRunner{}).LookPath(tool); err != nil {
			t.Skipf("%s not available", tool)
		}
	}
	var lines []string
	err := ExecRunner{}.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", `head -c 2000000 /dev/zero | tr '\0' a; echo; echo after`},
	}, func(l string) { lines = append(lines, l) })
	require.NoError(t, err)

	require.Len(t, lines, 3)
	require.Len(t, lines[0], maxLineBytes)
	require.Len(t, lines[1], 2000000-maxLineBytes)
	require.Equal(t, "after", lines[2])
}

func TestReadLines(t *testing.T) {
	var got []string
	require.NoError(t, readLines(strings.NewReader("abcdefg\nhi\r\n\nxyz"), 3, func(l string) { got = append(got, l) }))
	require.Equal(t, []string{"abc", "def", "g", "hi", "", "xyz"}, got)

	got = nil
	long := strings.Repeat("a", 70000) + "\nend\n"
	require.NoError(t, readLines(strings.NewReader(long), 50000, func(l string) { got = append(got, l) }))
	require.Len(t, got, 3)
	require.Len(t, got[0], 50000)
	require.Len(t, got[1], 20000)
	require.Equal(t, "end", got[2])
}
