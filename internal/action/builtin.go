package action

// Built-in action names.
const (
	SaveConfig          = "save_config"
	GenerateCode        = "generate_code"
	PIOInit             = "pio_init"
	Patch               = "patch"
	Build               = "build"
	Clean               = "clean"
	ValidateEnvironment = "validate_environment"
	StartEditor         = "start_editor"
)

func builtins() map[string]Func {
	return map[string]Func{
		SaveConfig:          saveConfig,
		GenerateCode:        generateCode,
		PIOInit:             pioInit,
		Patch:               patch,
		Build:               build,
		Clean:               clean,
		ValidateEnvironment: validateEnvironment,
		StartEditor:         startEditor,
	}
}
